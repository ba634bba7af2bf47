package therapist

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const practoOrigin = "https://www.practo.com"

// PractoSource scrapes the first doctor cards of a Practo listing page.
type PractoSource struct {
	httpClient *http.Client
	url        string
	limit      int
}

func NewPractoSource(url string, limit int) *PractoSource {
	if limit <= 0 {
		limit = 3
	}
	return &PractoSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        url,
		limit:      limit,
	}
}

func (p *PractoSource) Name() string { return "practo" }

func (p *PractoSource) Fetch(ctx context.Context) ([]Therapist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listing: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var out []Therapist
	doc.Find(".doctor-card").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		name := strings.TrimSpace(card.Find(".info-section h2").First().Text())
		if name == "" {
			return true
		}

		clinic := strings.TrimSpace(card.Find(".clinic-name").First().Text())
		if clinic == "" {
			clinic = "N/A"
		}

		t := Therapist{
			Name:       name,
			Source:     p.Name(),
			Experience: strings.TrimSpace(card.Find(".uv2-spacer--xs").First().Text()),
			Clinic:     clinic,
		}
		if href, ok := card.Find("a").First().Attr("href"); ok {
			t.Link = absoluteLink(href)
		}

		out = append(out, t)
		return len(out) < p.limit
	})
	return out, nil
}

func absoluteLink(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return practoOrigin + href
}
