package providers

import (
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/pkg/config"
	"ForexPulse/pkg/logger"
)

func policy(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) RetryPolicy {
	return RetryPolicy{
		Attempts: cfg.Providers.RetryAttempts,
		Base:     cfg.Providers.RetryBackoff,
		Max:      10 * cfg.Providers.RetryBackoff,
		Metrics:  m,
		Logger:   l,
	}
}

// NewPriceProvider selects the configured price source. Alpha Vantage without an API key degrades to demo data.
func NewPriceProvider(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) domrepo.PriceProvider {
	pc := cfg.Providers
	if pc.Price == "alphavantage" && pc.AlphaVantage.APIKey != "" {
		av := NewAlphaVantage(pc.AlphaVantage.APIKey, pc.AlphaVantage.BaseURL, pc.AlphaVantage.Timeout, pc.AlphaVantage.RateLimit, l)
		return WithPriceRetry(av, policy(cfg, m, l))
	}
	if pc.Price == "alphavantage" {
		l.Warn("alphavantage selected without api key, using demo prices")
	}
	return NewDemoPrices(pc.DemoDir)
}

// NewNewsProvider selects the configured news source; RSS falls back to the demo feed on failure.
func NewNewsProvider(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) domrepo.NewsProvider {
	pc := cfg.Providers
	demo := NewDemoNews(pc.DemoDir)
	if pc.News == "rss" && len(pc.RSSFeeds) > 0 {
		return NewNewsFallback(WithNewsRetry(NewRSS(pc.RSSFeeds), policy(cfg, m, l)), demo, l)
	}
	return demo
}

// NewMacroProvider selects the configured macro calendar.
func NewMacroProvider(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) domrepo.MacroProvider {
	pc := cfg.Providers
	if pc.Macro == "csv" && pc.MacroCSVPath != "" {
		return WithMacroRetry(NewCSVMacro(pc.MacroCSVPath), policy(cfg, m, l))
	}
	return NewDemoMacro(pc.DemoDir)
}
