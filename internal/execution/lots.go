package execution

// lot is one unsold slice of a prior buy
type lot struct {
	amount float64 // base units remaining
	price  float64 // entry price of the slice
}

// LotQueue holds open buy lots in fill order for FIFO cost-basis
// matching. Sells consume from the head, splitting a lot when they take
// only part of it.
type LotQueue struct {
	lots []lot
	head int
}

// Push appends a freshly bought lot
func (q *LotQueue) Push(amount, price float64) {
	if amount <= 0 {
		return
	}
	q.lots = append(q.lots, lot{amount: amount, price: price})
}

// Consume takes amount base units off the oldest lots and returns their
// combined cost basis. When the queue holds less than requested, the
// shortfall is priced at fallbackPrice so a sell of untracked inventory
// still carries a defined basis.
func (q *LotQueue) Consume(amount, fallbackPrice float64) float64 {
	var basis float64
	remaining := amount
	for remaining > 0 && q.head < len(q.lots) {
		current := &q.lots[q.head]
		take := current.amount
		if take > remaining {
			take = remaining
		}
		basis += take * current.price
		current.amount -= take
		remaining -= take
		if current.amount <= 0 {
			q.head++
		}
	}
	if remaining > 0 {
		basis += remaining * fallbackPrice
	}

	// Drop fully consumed head lots once they dominate the slice
	if q.head > 0 && q.head*2 >= len(q.lots) {
		q.lots = append(q.lots[:0], q.lots[q.head:]...)
		q.head = 0
	}
	return basis
}

// Open reports the total unsold base units across all lots
func (q *LotQueue) Open() float64 {
	var total float64
	for _, l := range q.lots[q.head:] {
		total += l.amount
	}
	return total
}

// Reset empties the queue
func (q *LotQueue) Reset() {
	q.lots = q.lots[:0]
	q.head = 0
}
