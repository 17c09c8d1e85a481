package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/strata-search/strata/internal/config"
)

const maxPageBytes = 512 * 1024

// FetchedItem is one raw external result before it enters the
// knowledge cache.
type FetchedItem struct {
	URL   string
	Title string
	Text  string
}

// LiveFetcher is the tier-3 source: it queries a SearxNG-compatible
// search endpoint and optionally pulls each result page for fuller
// text. A rate limiter keeps it polite toward the search backend.
type LiveFetcher struct {
	endpoint   string
	client     *http.Client
	limiter    *rate.Limiter
	maxResults int
	fetchPages bool
}

type searchResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

func NewLiveFetcher(cfg config.FetcherConfig) *LiveFetcher {
	return &LiveFetcher{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		client:     &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		maxResults: cfg.MaxResults,
		fetchPages: cfg.FetchPages,
	}
}

// Fetch runs the external search and returns up to maxResults items.
// A failed page download falls back to the search snippet; only a
// failed search call itself is an error.
func (f *LiveFetcher) Fetch(ctx context.Context, queryText string) ([]FetchedItem, error) {
	if f.endpoint == "" {
		return nil, fmt.Errorf("fetcher endpoint not configured")
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json", f.endpoint, url.QueryEscape(queryText))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}

	logger := logutil.GetLogger(ctx).With(zap.String("query", queryText))
	items := make([]FetchedItem, 0, f.maxResults)
	for _, r := range out.Results {
		if len(items) >= f.maxResults {
			break
		}
		if r.URL == "" {
			continue
		}
		text := strings.TrimSpace(r.Content)
		if f.fetchPages {
			page, err := f.fetchPage(ctx, r.URL)
			if err != nil {
				logger.Error("page fetch failed, keeping snippet", zap.String("url", r.URL), zap.Error(err))
			} else if page != "" {
				text = page
			}
		}
		if text == "" {
			continue
		}
		items = append(items, FetchedItem{URL: r.URL, Title: r.Title, Text: text})
	}
	return items, nil
}

func (f *LiveFetcher) fetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page fetch failed: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return ExtractText(string(body)), nil
}

var (
	scriptRegex = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRegex    = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRegex  = regexp.MustCompile(`[ \t]+`)
	blankRegex  = regexp.MustCompile(`\n{3,}`)
)

// ExtractText strips markup from an HTML page, leaving readable text.
func ExtractText(page string) string {
	text := scriptRegex.ReplaceAllString(page, " ")
	text = tagRegex.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = spaceRegex.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")
	text = blankRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
