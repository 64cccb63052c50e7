package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/quantisle/papertrader/models"
)

// Client fetches OHLCV candles from a JSON time-series API, with rate
// limiting and retried requests. It satisfies models.CandleProvider.
type Client struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetry   time.Duration
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a candle API client
type ClientOptions struct {
	Name            string
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a candle API client with rate limiting and retries
func NewClient(options ClientOptions) *Client {
	if options.RequestTimeout == 0 {
		options.RequestTimeout = 30 * time.Second
	}
	if options.RequestsPerSec == 0 {
		options.RequestsPerSec = 5
	}
	if options.MaxRetryTimeout == 0 {
		options.MaxRetryTimeout = 30 * time.Second
	}
	if options.Name == "" {
		options.Name = "candles"
	}

	return &Client{
		name:       options.Name,
		apiKey:     options.APIKey,
		baseURL:    options.BaseURL,
		httpClient: &http.Client{Timeout: options.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second), options.RequestsPerSec),
		maxRetry:   options.MaxRetryTimeout,
		logger:     log.With().Str("component", "marketdata_client").Str("provider", options.Name).Logger(),
	}
}

// Name identifies the provider in logs and fallback chains
func (c *Client) Name() string {
	return c.name
}

// timeSeriesResponse is the wire shape of the time-series endpoint
type timeSeriesResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Values  []wireValue `json:"values"`
}

type wireValue struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// Candles fetches the latest count candles for a symbol/interval,
// returned oldest first and validated before the engine sees them.
func (c *Client) Candles(ctx context.Context, symbol, interval string, count int) ([]models.Candle, error) {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", interval)
	query.Set("outputsize", strconv.Itoa(count))
	if c.apiKey != "" {
		query.Set("apikey", c.apiKey)
	}
	requestURL := c.baseURL + "/time_series?" + query.Encode()

	c.logger.Debug().Str("symbol", symbol).Str("interval", interval).Int("count", count).Msg("Fetching candles")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	// Use exponential backoff for retries
	var resp *http.Response
	operation := func() error {
		var err error
		resp, err = c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return fmt.Errorf("non-200 status code: %d", resp.StatusCode)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.MaxElapsedTime = c.maxRetry

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, fmt.Errorf("after retries: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		c.logger.Error().Str("message", data.Message).Msg("Provider API error")
		return nil, fmt.Errorf("provider error: %s", data.Message)
	}
	if len(data.Values) == 0 {
		c.logger.Warn().Msg("No candles in response")
		return nil, fmt.Errorf("empty data returned")
	}

	candles, err := parseCandles(data.Values)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

// candleTimeLayouts are tried in order when parsing provider timestamps
var candleTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

func parseCandles(values []wireValue) ([]models.Candle, error) {
	candles := make([]models.Candle, 0, len(values))
	for _, v := range values {
		ts, err := parseCandleTime(v.Datetime)
		if err != nil {
			return nil, fmt.Errorf("parsing datetime %q: %w", v.Datetime, err)
		}
		candle := models.Candle{Timestamp: ts}
		if candle.Open, err = strconv.ParseFloat(v.Open, 64); err != nil {
			return nil, fmt.Errorf("parsing open: %w", err)
		}
		if candle.High, err = strconv.ParseFloat(v.High, 64); err != nil {
			return nil, fmt.Errorf("parsing high: %w", err)
		}
		if candle.Low, err = strconv.ParseFloat(v.Low, 64); err != nil {
			return nil, fmt.Errorf("parsing low: %w", err)
		}
		if candle.Close, err = strconv.ParseFloat(v.Close, 64); err != nil {
			return nil, fmt.Errorf("parsing close: %w", err)
		}
		if v.Volume != "" {
			if candle.Volume, err = strconv.ParseFloat(v.Volume, 64); err != nil {
				return nil, fmt.Errorf("parsing volume: %w", err)
			}
		}
		candles = append(candles, candle)
	}

	// Sort candles oldest first for proper calculations
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	return candles, ValidateCandles(candles)
}

func parseCandleTime(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range candleTimeLayouts {
		ts, err := time.Parse(layout, value)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ValidateCandles enforces what the engine assumes about its input:
// strictly ascending timestamps and positive prices.
func ValidateCandles(candles []models.Candle) error {
	for i, candle := range candles {
		if candle.Open <= 0 || candle.High <= 0 || candle.Low <= 0 || candle.Close <= 0 {
			return fmt.Errorf("candle %d has non-positive price", i)
		}
		if i > 0 && !candle.Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("candle %d timestamp not ascending", i)
		}
	}
	return nil
}
