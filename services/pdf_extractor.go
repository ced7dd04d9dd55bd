package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"veritas-backend/internal/logger"
)

// PageContent is the extraction output for one PDF page.
type PageContent struct {
	Page      int
	Text      string
	HasImages bool
}

// ExtractPages extracts per-page text and flags pages that embed images.
// Primary extraction is in-process; pages that come back empty fall through
// to poppler's pdftotext when it is installed.
func ExtractPages(ctx context.Context, filePath string) ([]PageContent, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	popplerOK := hasBinary("pdftotext")
	pages := make([]PageContent, 0, total)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, PageContent{Page: i})
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			logger.Debug("In-process extraction failed for page", "page", i, "error", err)
			text = ""
		}
		text = normalizeWhitespace(text)

		if text == "" && popplerOK {
			text = extractPageWithPoppler(ctx, filePath, i)
		}

		pages = append(pages, PageContent{
			Page:      i,
			Text:      text,
			HasImages: pageHasImages(p),
		})
	}

	return pages, nil
}

// pageHasImages inspects the page's XObject resources for image subtypes.
func pageHasImages(p pdf.Page) bool {
	xobjects := p.V.Key("Resources").Key("XObject")
	if xobjects.IsNull() || xobjects.Kind() != pdf.Dict {
		return false
	}
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}

func extractPageWithPoppler(ctx context.Context, filePath string, page int) string {
	pageArg := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, "pdftotext", "-f", pageArg, "-l", pageArg, "-layout", filePath, "-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		logger.Debug("pdftotext fallback failed", "page", page, "error", err)
		return ""
	}
	return normalizeWhitespace(out.String())
}

// RenderPageImages rasterizes every page to PNG under outDir using poppler's
// pdftoppm and returns page number to image path. Rendering is best-effort:
// without the binary it returns an empty map and text-only answering
// continues.
func RenderPageImages(ctx context.Context, filePath, outDir, documentID string) (map[int]string, error) {
	if !hasBinary("pdftoppm") {
		logger.Warn("pdftoppm not found, page images disabled")
		return map[int]string{}, nil
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image dir: %w", err)
	}

	prefix := filepath.Join(outDir, documentID)
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", "120", filePath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list image dir: %w", err)
	}

	// pdftoppm zero-pads page numbers depending on page count, so parse the
	// suffix instead of reconstructing names.
	images := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, documentID+"-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		numPart := strings.TrimSuffix(strings.TrimPrefix(name, documentID+"-"), ".png")
		page, err := strconv.Atoi(numPart)
		if err != nil {
			continue
		}
		images[page] = filepath.Join(outDir, name)
	}

	logger.Info("Rendered page images", "document_id", documentID, "pages", len(images))
	return images, nil
}

func hasBinary(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
