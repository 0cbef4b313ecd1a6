package lifts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"

	"github.com/Gavlarad/nozawa-backend-sub001/internal/common"
	"github.com/Gavlarad/nozawa-backend-sub001/internal/provider"
)

// ScrapeProvider is the secondary lift-status source: the resort's public
// status page, scraped from HTML. Row ids come from the page's data
// attributes when present and a slugified name otherwise, so renamed lifts
// keep their identity.
type ScrapeProvider struct {
	name    string
	pageURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

func NewScrapeProvider(client *http.Client, pageURL string) *ScrapeProvider {
	return &ScrapeProvider{
		name:    "status-page",
		pageURL: pageURL,
		client:  client,
		circuit: provider.NewBreaker("lift-scrape"),
		now:     time.Now,
	}
}

func (p *ScrapeProvider) Name() string { return p.name }

func (p *ScrapeProvider) Configured() bool { return p.pageURL != "" }

func (p *ScrapeProvider) Fetch(ctx context.Context) (Payload, error) {
	if p.pageURL == "" {
		return Payload{}, provider.ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pageURL, nil)
	if err != nil {
		return Payload{}, err
	}

	resp, err := provider.DoRequest(p.client, p.circuit, req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	payload, err := parseStatusPage(resp.Body, p.now())
	if err != nil {
		return Payload{}, err
	}
	return payload, nil
}

// parseStatusPage extracts lift rows from the status page table. Expected
// shape: <tr class="lift-row" data-lift-id="..."><td class="lift-name">...
// </td><td class="lift-status">...</td></tr>.
func parseStatusPage(body io.Reader, scrapedAt time.Time) (Payload, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", provider.ErrMalformedBody, err)
	}

	var lifts []Entry
	doc.Find("tr.lift-row").Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find("td.lift-name").Text())
		statusText := strings.TrimSpace(row.Find("td.lift-status").Text())
		if name == "" {
			return
		}

		id, ok := row.Attr("data-lift-id")
		if !ok || id == "" {
			id = common.Slug(name)
		}

		lifts = append(lifts, Entry{
			ID:        id,
			Name:      name,
			Status:    parseStatus(statusText),
			ScrapedAt: scrapedAt,
		})
	})

	if len(lifts) == 0 {
		return Payload{}, fmt.Errorf("%w: no lift rows found in status page", provider.ErrMalformedBody)
	}

	return Payload{Lifts: lifts}, nil
}
