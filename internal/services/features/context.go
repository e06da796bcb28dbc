package features

import (
	"sort"
	"strings"
	"time"

	"ForexPulse/internal/domain/models"
)

// SentimentWindow is the trailing window averaged into news_sentiment_24h.
const SentimentWindow = 24 * time.Hour

// JoinContext fills news_sentiment_24h and minutes_to_high_impact_usd on an
// ascending feature table. It merge-joins the rows against the news and macro
// streams sorted by time, so the inputs may arrive in any order.
//
// news_sentiment_24h(ts) averages sentiment over (ts-24h, ts], 0 when empty.
// minutes_to_high_impact_usd(ts) is the distance to the first USD high-impact
// event at or after ts, 0 when none exists.
func JoinContext(rows []models.FeatureRow, news []models.NewsItem, macro []models.MacroEvent) []models.FeatureRow {
	out := make([]models.FeatureRow, len(rows))
	copy(out, rows)

	sortedNews := make([]models.NewsItem, len(news))
	copy(sortedNews, news)
	sort.SliceStable(sortedNews, func(i, j int) bool {
		return sortedNews[i].PublishedAt.Before(sortedNews[j].PublishedAt)
	})

	var events []time.Time
	for _, e := range macro {
		if IsHighImpactUSD(e) {
			events = append(events, e.Time)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Before(events[j]) })

	lo, hi, next := 0, 0, 0
	for i := range out {
		ts := out[i].Timestamp

		for hi < len(sortedNews) && !sortedNews[hi].PublishedAt.After(ts) {
			hi++
		}
		floor := ts.Add(-SentimentWindow)
		for lo < hi && !sortedNews[lo].PublishedAt.After(floor) {
			lo++
		}
		out[i].NewsSentiment24h = meanSentiment(sortedNews[lo:hi])

		for next < len(events) && events[next].Before(ts) {
			next++
		}
		if next < len(events) {
			out[i].MinutesToHighImpactUSD = events[next].Sub(ts).Minutes()
		} else {
			out[i].MinutesToHighImpactUSD = 0
		}
	}
	return out
}

// IsHighImpactUSD reports whether e counts toward minutes_to_high_impact_usd.
func IsHighImpactUSD(e models.MacroEvent) bool {
	return strings.EqualFold(e.Currency, "USD") && strings.EqualFold(e.Impact, models.ImpactHigh)
}

// RecentHeadlines returns up to n of the newest items published in (ts-24h, ts].
func RecentHeadlines(news []models.NewsItem, ts time.Time, n int) []models.NewsHeadline {
	floor := ts.Add(-SentimentWindow)
	var in []models.NewsItem
	for _, item := range news {
		if item.PublishedAt.After(floor) && !item.PublishedAt.After(ts) {
			in = append(in, item)
		}
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].PublishedAt.After(in[j].PublishedAt) })
	if len(in) > n {
		in = in[:n]
	}
	out := make([]models.NewsHeadline, 0, len(in))
	for _, item := range in {
		out = append(out, models.NewsHeadline{
			Title:          item.Title,
			PublishedAt:    item.PublishedAt,
			SentimentLabel: item.Analysis.SentimentLabel,
			URL:            item.URL,
		})
	}
	return out
}

func meanSentiment(items []models.NewsItem) float64 {
	if len(items) == 0 {
		return 0
	}
	s := 0.0
	for _, it := range items {
		s += it.Analysis.SentimentScore
	}
	return s / float64(len(items))
}
