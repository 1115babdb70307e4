// Package prefill suggests listing fields from the listing's web page.
package prefill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend-flathunt/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 5 << 20
	maxImages      = 10
	minImageWidth  = 300
	userAgent      = "Mozilla/5.0 (compatible; flathunt/1.0)"
)

var (
	ErrUnsupportedURL = errors.New("url must be http or https")
	ErrFetch          = errors.New("listing page could not be fetched")
)

// Suggestion holds the values found on a listing page. Empty fields were
// not found.
type Suggestion struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
	Price       *float64 `json:"price"`
}

type Extractor struct {
	client *http.Client
	log    logger.Logger
}

func NewExtractor(log logger.Logger, timeout time.Duration) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Extractor{client: &http.Client{Timeout: timeout}, log: log}
}

// Extract fetches pageURL and reads its OpenGraph and standard meta tags.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (Suggestion, error) {
	parsed, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Suggestion{}, ErrUnsupportedURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), http.NoBody)
	if err != nil {
		return Suggestion{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Suggestion{}, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Suggestion{}, fmt.Errorf("parse html: %w", err)
	}

	s := Suggestion{
		URL:         parsed.String(),
		Title:       title(doc, parsed),
		Description: description(doc),
		Images:      images(doc, parsed),
		Price:       price(doc),
	}
	e.log.Info("listing page prefilled",
		logger.String("url", s.URL),
		logger.Int("images", len(s.Images)),
		logger.Bool("price", s.Price != nil))
	return s, nil
}

func meta(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

func title(doc *goquery.Document, pageURL *url.URL) string {
	if v := meta(doc, "meta[property='og:title']"); v != "" {
		return v
	}
	if v := strings.TrimSpace(doc.Find("title").First().Text()); v != "" {
		return v
	}
	return pageURL.Host
}

func description(doc *goquery.Document) string {
	if v := meta(doc, "meta[property='og:description']"); v != "" {
		return v
	}
	return meta(doc, "meta[name='description']")
}

// images collects og:image tags first, then sufficiently wide <img>
// sources, resolved against the page URL.
func images(doc *goquery.Document, pageURL *url.URL) []string {
	found := []string{}
	seen := map[string]bool{}
	add := func(raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "data:") || len(found) >= maxImages {
			return
		}
		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		abs := pageURL.ResolveReference(ref).String()
		if seen[abs] {
			return
		}
		seen[abs] = true
		found = append(found, abs)
	}

	doc.Find("meta[property='og:image']").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("content")
		add(v)
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if w, ok := s.Attr("width"); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(w, "px")); err == nil && n < minImageWidth {
				return
			}
		}
		v, _ := s.Attr("src")
		add(v)
	})
	return found
}

func price(doc *goquery.Document) *float64 {
	raw := meta(doc, "meta[property='product:price:amount']")
	if raw == "" {
		raw = meta(doc, "meta[itemprop='price']")
	}
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, " ", "")
	raw = strings.Replace(raw, ",", ".", 1)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
