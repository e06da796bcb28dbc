package providers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/pkg/util"
)

// Demo data file names under the demo directory.
const (
	DemoPricesFile = "prices.csv"
	DemoNewsFile   = "news.csv"
	DemoMacroFile  = "macro_events.csv"
)

// DemoPrices serves 1m bars from prices.csv (symbol,ts,open,high,low,close,volume[,bid,ask]).
type DemoPrices struct {
	path string
}

func NewDemoPrices(dir string) *DemoPrices {
	return &DemoPrices{path: filepath.Join(dir, DemoPricesFile)}
}

func (p *DemoPrices) Name() string { return "demo_prices" }

func (p *DemoPrices) Fetch(_ context.Context, instrument string, since time.Time) ([]models.Bar, error) {
	rows, err := csvRecords(p.path)
	if err != nil {
		return nil, err
	}
	var out []models.Bar
	for i, row := range rows {
		if !strings.EqualFold(row["symbol"], instrument) {
			continue
		}
		if tf := row["timeframe"]; tf != "" && tf != string(domrepo.TF1m) {
			continue
		}
		b, err := barFromRow(row, instrument)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", p.path, i+2, err)
		}
		if !since.IsZero() && !b.Timestamp.After(since) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func barFromRow(row map[string]string, instrument string) (models.Bar, error) {
	ts, ok := util.ParseTime(row["ts"])
	if !ok {
		return models.Bar{}, fmt.Errorf("bad ts %q", row["ts"])
	}
	b := models.Bar{Instrument: instrument, Timeframe: string(domrepo.TF1m), Timestamp: ts}
	var err error
	for _, f := range []struct {
		col string
		dst *float64
	}{{"open", &b.Open}, {"high", &b.High}, {"low", &b.Low}, {"close", &b.Close}, {"volume", &b.Volume}} {
		if *f.dst, err = parseFloat(row, f.col); err != nil {
			return models.Bar{}, err
		}
	}
	for _, f := range []struct {
		col string
		dst **float64
	}{{"bid", &b.Bid}, {"ask", &b.Ask}} {
		if row[f.col] == "" {
			continue
		}
		v, err := parseFloat(row, f.col)
		if err != nil {
			return models.Bar{}, err
		}
		*f.dst = &v
	}
	return b, nil
}

// DemoNews serves items from news.csv (published_at,source,url,title,summary).
type DemoNews struct {
	path string
}

func NewDemoNews(dir string) *DemoNews {
	return &DemoNews{path: filepath.Join(dir, DemoNewsFile)}
}

func (p *DemoNews) Name() string { return "demo_news" }

func (p *DemoNews) Fetch(_ context.Context, since time.Time) ([]models.NewsItem, error) {
	rows, err := csvRecords(p.path)
	if err != nil {
		return nil, err
	}
	var out []models.NewsItem
	for i, row := range rows {
		ts, ok := util.ParseTime(row["published_at"])
		if !ok {
			return nil, fmt.Errorf("%s row %d: bad published_at %q", p.path, i+2, row["published_at"])
		}
		if !since.IsZero() && !ts.After(since) {
			continue
		}
		out = append(out, models.NewsItem{
			Source:      orDefault(row["source"], "unknown"),
			URL:         row["url"],
			PublishedAt: ts,
			Title:       row["title"],
			Summary:     row["summary"],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out, nil
}

// CSVMacro serves calendar events from a CSV file
// (time,currency,impact,name,forecast,previous,actual[,source]).
type CSVMacro struct {
	name string
	path string
}

// NewDemoMacro reads the bundled demo calendar.
func NewDemoMacro(dir string) *CSVMacro {
	return &CSVMacro{name: "demo_macro", path: filepath.Join(dir, DemoMacroFile)}
}

// NewCSVMacro reads an operator-supplied calendar.
func NewCSVMacro(path string) *CSVMacro {
	return &CSVMacro{name: "csv_macro", path: path}
}

func (p *CSVMacro) Name() string { return p.name }

// Missing fields take the defaults currency USD, impact medium, name "Event", source "demo".
func (p *CSVMacro) Fetch(_ context.Context, since time.Time) ([]models.MacroEvent, error) {
	rows, err := csvRecords(p.path)
	if err != nil {
		return nil, err
	}
	var out []models.MacroEvent
	for i, row := range rows {
		ts, ok := util.ParseTime(row["time"])
		if !ok {
			return nil, fmt.Errorf("%s row %d: bad time %q", p.path, i+2, row["time"])
		}
		if !since.IsZero() && !ts.After(since) {
			continue
		}
		out = append(out, models.MacroEvent{
			Time:     ts,
			Currency: strings.ToUpper(orDefault(row["currency"], "USD")),
			Impact:   strings.ToLower(orDefault(row["impact"], models.ImpactMedium)),
			Name:     orDefault(row["name"], "Event"),
			Forecast: row["forecast"],
			Previous: row["previous"],
			Actual:   row["actual"],
			Source:   orDefault(row["source"], "demo"),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

var (
	_ domrepo.PriceProvider = (*DemoPrices)(nil)
	_ domrepo.NewsProvider  = (*DemoNews)(nil)
	_ domrepo.MacroProvider = (*CSVMacro)(nil)
)
