package models

// CandlesForWindow estimates how many candles cover the given number of
// days at an interval, padded slightly so indicator warm-up does not eat
// into the requested window. Unknown intervals assume daily bars.
func CandlesForWindow(interval string, days int) int {
	if days < 1 {
		days = 1
	}

	perDay := 1
	switch interval {
	case "1min":
		perDay = 24 * 60
	case "5min":
		perDay = 24 * 12
	case "15min":
		perDay = 24 * 4
	case "30min":
		perDay = 24 * 2
	case "1h":
		perDay = 24
	case "2h":
		perDay = 12
	case "4h":
		perDay = 6
	case "8h":
		perDay = 3
	case "1day":
		perDay = 1
	case "1week":
		days = days / 7
		if days < 1 {
			days = 1
		}
	case "1month":
		days = days / 30
		if days < 1 {
			days = 1
		}
	}

	return int(float64(perDay*days) * 1.1)
}
