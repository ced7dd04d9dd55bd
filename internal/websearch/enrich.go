package websearch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"veritas-backend/internal/logger"
)

// enrichment caps: one page fetch, bounded extract size
const maxEnrichChars = 2500

// EnrichTopSource fetches the highest-ranked source page and extracts its
// paragraph text, so thin snippets can be backed by real page content. Returns
// "" on any failure; enrichment is strictly best-effort.
func EnrichTopSource(ctx context.Context, sources []Source) string {
	if len(sources) == 0 {
		return ""
	}
	link := sources[0].Link
	if !strings.HasPrefix(link, "http") {
		return ""
	}

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VeritasBot/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		logger.Debug("Source enrichment fetch failed", "link", link, "error", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return ""
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}
	doc.Find("script, style, nav, footer, header").Remove()

	var b strings.Builder
	doc.Find("article p, main p, p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) < 40 {
			return true // skip boilerplate fragments
		}
		b.WriteString(text)
		b.WriteString("\n\n")
		return b.Len() < maxEnrichChars
	})

	extracted := strings.TrimSpace(b.String())
	if len(extracted) > maxEnrichChars {
		extracted = extracted[:maxEnrichChars]
	}
	return extracted
}
