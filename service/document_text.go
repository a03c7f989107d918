package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/storage"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	"github.com/ledongthuc/pdf"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

var supportedExtensions = map[string]bool{
	"pdf":  true,
	"xlsx": true,
	"txt":  true,
	"md":   true,
	"csv":  true,
}

func IsSupportedFile(fileName string) bool {
	return supportedExtensions[utils.FileExt(fileName)]
}

type DocumentTextService interface {
	// ExtractPages returns the text of every page. Pages that could not be read are empty and listed in failed pages.
	ExtractPages(ctx context.Context, key string, fileName string) ([]string, []view.FailedPage, error)
}

func NewDocumentTextService(fileStore storage.FileStore, cache TextCache, settings RuntimeSettings) DocumentTextService {
	return &documentTextServiceImpl{fileStore: fileStore, cache: cache, settings: settings}
}

type documentTextServiceImpl struct {
	fileStore storage.FileStore
	cache     TextCache
	settings  RuntimeSettings
}

func (d documentTextServiceImpl) ExtractPages(ctx context.Context, key string, fileName string) ([]string, []view.FailedPage, error) {
	ext := utils.FileExt(fileName)
	if !supportedExtensions[ext] {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, fileName)
	}
	data, err := d.fileStore.Open(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	hash := utils.ContentHash(data)
	if cached, ok := d.cache.Get(ctx, hash); ok {
		log.Debugf("Text of %s is taken from cache", fileName)
		return cached.Pages, cached.FailedPages, nil
	}

	start := time.Now()
	var pages []string
	var failed []view.FailedPage
	switch ext {
	case "pdf":
		pages, failed, err = d.extractPdf(ctx, data)
	case "xlsx":
		pages, err = extractXlsx(data)
	default:
		pages = extractPlainText(data)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract text from %s: %w", fileName, err)
	}
	log.Infof("Extracted %d pages from %s in %dms, %d failed", len(pages), fileName, time.Since(start).Milliseconds(), len(failed))

	if len(failed) == 0 {
		d.cache.Put(ctx, hash, DocumentText{Pages: pages})
	}
	return pages, failed, nil
}

func (d documentTextServiceImpl) extractPdf(ctx context.Context, data []byte) ([]string, []view.FailedPage, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, err
	}
	total := reader.NumPage()
	return extractPagesParallel(ctx, total, d.settings, func(page int) (string, error) {
		// the pdf reader is not safe for concurrent use, every page gets its own
		r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return "", err
		}
		p := r.Page(page)
		if p.V.IsNull() {
			return "", nil
		}
		return p.GetPlainText(nil)
	})
}

const noExtractableText = "no extractable text"

// extractPagesParallel runs extract for pages 1..total with a bounded number of workers.
// A page that fails, exceeds the page timeout or has no text (scanned image) is left empty and reported.
func extractPagesParallel(ctx context.Context, total int, settings RuntimeSettings, extract func(page int) (string, error)) ([]string, []view.FailedPage, error) {
	docCtx, cancel := context.WithTimeout(ctx, settings.DocumentTimeout(total))
	defer cancel()

	pages := make([]string, total)
	pageErrors := make([]string, total)
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(docCtx)
	g.SetLimit(settings.PageMaxWorkers)
	for i := 0; i < total; i++ {
		page := i + 1
		g.Go(func() error {
			text, err := extractPageWithTimeout(gCtx, settings.PageTimeout(), page, extract)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				pageErrors[page-1] = err.Error()
				return nil
			}
			text = strings.TrimSpace(text)
			if text == "" {
				pageErrors[page-1] = noExtractableText
				return nil
			}
			pages[page-1] = text
			return nil
		})
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	var failed []view.FailedPage
	for i, e := range pageErrors {
		if e != "" {
			failed = append(failed, view.FailedPage{Page: i + 1, Error: e})
		}
	}
	return pages, failed, nil
}

func extractPageWithTimeout(ctx context.Context, timeout time.Duration, page int, extract func(page int) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("page %d extraction panicked: %v", page, r)}
			}
		}()
		text, err := extract(page)
		done <- result{text: text, err: err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-pageCtx.Done():
		return "", fmt.Errorf("page %d extraction timed out", page)
	}
}

func extractXlsx(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages, nil
}

func extractPlainText(data []byte) []string {
	text := strings.TrimPrefix(string(data), "\ufeff")
	pages := strings.Split(text, "\f")
	for i := range pages {
		pages[i] = strings.TrimSpace(pages[i])
	}
	return pages
}
