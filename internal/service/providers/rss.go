package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
)

// RSS reads every configured feed. Entries without a parseable date are stamped with the fetch time.
type RSS struct {
	urls   []string
	parser *gofeed.Parser
	now    func() time.Time
}

func NewRSS(urls []string) *RSS {
	return &RSS{urls: urls, parser: gofeed.NewParser(), now: time.Now}
}

func (p *RSS) Name() string { return "rss" }

func (p *RSS) Fetch(ctx context.Context, since time.Time) ([]models.NewsItem, error) {
	var out []models.NewsItem
	for _, url := range p.urls {
		feed, err := p.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			return nil, fmt.Errorf("rss %s: %w", url, err)
		}
		source := strings.TrimSpace(feed.Title)
		if source == "" {
			source = url
		}
		for _, e := range feed.Items {
			published := p.now().UTC()
			switch {
			case e.PublishedParsed != nil:
				published = e.PublishedParsed.UTC()
			case e.UpdatedParsed != nil:
				published = e.UpdatedParsed.UTC()
			}
			if !since.IsZero() && !published.After(since) {
				continue
			}
			out = append(out, models.NewsItem{
				Source:      source,
				URL:         e.Link,
				PublishedAt: published,
				Title:       e.Title,
				Summary:     e.Description,
			})
		}
	}
	return out, nil
}

var _ domrepo.NewsProvider = (*RSS)(nil)
