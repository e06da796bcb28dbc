package providers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	xhttp "ForexPulse/pkg/http"
	"ForexPulse/pkg/logger"
	"ForexPulse/pkg/util"
)

const (
	avInterval  = "1min"
	avSeriesKey = "Time Series FX (1min)"
)

// ErrMissingSeries is returned when the response has no time series, which
// Alpha Vantage does for throttling notes and unknown symbols.
var ErrMissingSeries = errors.New("alphavantage: response has no time series")

type avCandle struct {
	Open  string `json:"1. open"`
	High  string `json:"2. high"`
	Low   string `json:"3. low"`
	Close string `json:"4. close"`
}

type avResponse struct {
	Series map[string]avCandle `json:"Time Series FX (1min)"`
	Note   string              `json:"Note"`
	Info   string              `json:"Information"`
}

// AlphaVantage fetches FX_INTRADAY 1min bars behind a circuit breaker and a client-side rate limit.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
	l       *logger.Logger
}

func NewAlphaVantage(apiKey, baseURL string, timeout time.Duration, rps float64, l *logger.Logger) *AlphaVantage {
	st := gobreaker.Settings{
		Name:     "alphavantage",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	}
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithRateLimit(rps, 1)),
		breaker: gobreaker.NewCircuitBreaker(st),
		l:       l,
	}
}

func (p *AlphaVantage) Name() string { return "alphavantage" }

func (p *AlphaVantage) Fetch(ctx context.Context, instrument string, since time.Time) ([]models.Bar, error) {
	if len(instrument) != 6 {
		return nil, fmt.Errorf("alphavantage: instrument %q is not a 6-letter pair", instrument)
	}
	res, err := p.breaker.Execute(func() (interface{}, error) {
		var body avResponse
		err := p.client.GetJSON(ctx, p.baseURL, url.Values{
			"function":    {"FX_INTRADAY"},
			"from_symbol": {instrument[:3]},
			"to_symbol":   {instrument[3:]},
			"interval":    {avInterval},
			"outputsize":  {"compact"},
			"apikey":      {p.apiKey},
		}, &body)
		return &body, err
	})
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", instrument, err)
	}
	body := res.(*avResponse)
	if body.Series == nil {
		if note := body.Note + body.Info; note != "" {
			p.l.Warn("alphavantage returned no series", logger.String("instrument", instrument), logger.String("note", note))
		}
		return nil, ErrMissingSeries
	}

	out := make([]models.Bar, 0, len(body.Series))
	for tsStr, c := range body.Series {
		ts, ok := util.ParseTime(tsStr)
		if !ok {
			return nil, fmt.Errorf("alphavantage: bad timestamp %q", tsStr)
		}
		if !since.IsZero() && !ts.After(since) {
			continue
		}
		b := models.Bar{Instrument: instrument, Timeframe: string(domrepo.TF1m), Timestamp: ts}
		for _, f := range []struct {
			s   string
			dst *float64
		}{{c.Open, &b.Open}, {c.High, &b.High}, {c.Low, &b.Low}, {c.Close, &b.Close}} {
			v, err := strconv.ParseFloat(f.s, 64)
			if err != nil {
				return nil, fmt.Errorf("alphavantage: %s at %s: %w", instrument, tsStr, err)
			}
			*f.dst = v
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

var _ domrepo.PriceProvider = (*AlphaVantage)(nil)
