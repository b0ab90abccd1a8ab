// Package ocr extracts text from deed documents, either from the PDF's
// embedded text layer (pdftotext) or by running tesseract over rendered
// page images.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
)

// PageText is the recognized text of a single page.
type PageText struct {
	Number int
	Text   string
}

// Engine recognizes text on rendered page images.
type Engine interface {
	Recognize(ctx context.Context, pages []deed.PageImage) ([]PageText, error)
}

// JoinPages assembles per-page text into the single document text used
// downstream, with page markers preserved so fee heuristics can reason
// about page boundaries.
func JoinPages(pages []PageText) string {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })

	var b strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&b, "--- Page %d ---\n", p.Number)
		b.WriteString(strings.TrimSpace(p.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// Native reads a PDF's embedded text layer through pdftotext. It is far
// cheaper than OCR and is tried first; scanned documents yield little
// or nothing here and fall through to tesseract.
type Native struct {
	// Binary is the pdftotext executable name or path.
	Binary string

	output func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewNative builds a Native extractor with the standard binary name.
func NewNative() *Native {
	return &Native{Binary: "pdftotext"}
}

// Extract returns the embedded text of up to maxPages pages of source,
// already joined with page markers. Missing pdftotext is not fatal;
// callers fall back to OCR.
func (n *Native) Extract(ctx context.Context, source string, maxPages int) (string, error) {
	var binary = n.Binary
	if binary == "" {
		binary = "pdftotext"
	}
	var args = []string{"-f", "1"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, "-layout", source, "-")

	var out []byte
	var err error
	if n.output != nil {
		out, err = n.output(ctx, binary, args...)
	} else {
		out, err = exec.CommandContext(ctx, binary, args...).Output()
	}
	if err != nil {
		return "", fmt.Errorf("extracting embedded text from %s: %w", source, err)
	}

	// pdftotext separates pages with form feeds.
	var pages = strings.Split(string(out), "\f")
	var texts = make([]PageText, 0, len(pages))
	for i, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		texts = append(texts, PageText{Number: i + 1, Text: p})
	}
	return JoinPages(texts), nil
}

// Tesseract recognizes page images via the tesseract binary.
type Tesseract struct {
	// Binary is the tesseract executable name or path.
	Binary string
	// Languages is the tesseract -l argument, eng+kan for deeds.
	Languages string
	// PSM is the page segmentation mode.
	PSM int
	// OEM is the OCR engine mode.
	OEM int
	// Concurrency bounds how many pages are recognized at once.
	Concurrency int

	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewTesseract builds a Tesseract engine with deed-tuned settings.
func NewTesseract(concurrency int) *Tesseract {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Tesseract{
		Binary:      "tesseract",
		Languages:   "eng+kan",
		PSM:         4,
		OEM:         1,
		Concurrency: concurrency,
	}
}

// Recognize runs tesseract over each page image, bounded by
// Concurrency, and returns per-page text in page order. A page that
// fails to recognize fails the whole document.
func (t *Tesseract) Recognize(ctx context.Context, pages []deed.PageImage) ([]PageText, error) {
	var dir, err = os.MkdirTemp("", "deedflow-ocr-")
	if err != nil {
		return nil, fmt.Errorf("creating ocr scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var (
		mu       sync.Mutex
		texts    = make([]PageText, 0, len(pages))
		firstErr error
		sem      = make(chan struct{}, t.Concurrency)
		wg       sync.WaitGroup
	)

	for _, page := range pages {
		wg.Add(1)
		go func(page deed.PageImage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var text, err = t.recognizePage(ctx, dir, page)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			texts = append(texts, PageText{Number: page.Number, Text: text})
		}(page)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	sort.Slice(texts, func(i, j int) bool { return texts[i].Number < texts[j].Number })
	return texts, nil
}

func (t *Tesseract) recognizePage(ctx context.Context, dir string, page deed.PageImage) (string, error) {
	var imgPath = filepath.Join(dir, fmt.Sprintf("page-%d.png", page.Number))
	if err := os.WriteFile(imgPath, page.PNG, 0600); err != nil {
		return "", fmt.Errorf("writing page image: %w", err)
	}
	defer os.Remove(imgPath)

	var binary = t.Binary
	if binary == "" {
		binary = "tesseract"
	}
	var args = []string{
		imgPath, "stdout",
		"-l", t.Languages,
		"--oem", strconv.Itoa(t.OEM),
		"--psm", strconv.Itoa(t.PSM),
	}

	var out []byte
	var err error
	if t.run != nil {
		out, err = t.run(ctx, binary, args...)
	} else {
		var cmd = exec.CommandContext(ctx, binary, args...)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err = cmd.Output()
		if err != nil && stderr.Len() != 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
	}
	if err != nil {
		return "", fmt.Errorf("recognizing page %d: %w", page.Number, err)
	}

	log.WithFields(log.Fields{"page": page.Number, "chars": len(out)}).
		Debug("page recognized")
	return string(out), nil
}
