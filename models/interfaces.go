package models

import "context"

// CandleProvider fetches OHLCV series from one market data source.
// Implementations must return candles sorted oldest first.
type CandleProvider interface {
	Name() string
	Candles(ctx context.Context, symbol, interval string, count int) ([]Candle, error)
}
