// Package raster converts PDF documents into normalized page images by
// driving the poppler pdftoppm binary.
package raster

import (
	"context"
	"fmt"
	"image"
	_ "image/png" // Decode registration for page size probing.
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
)

// Rasterizer converts a PDF into an ordered sequence of page images.
type Rasterizer interface {
	ToPages(ctx context.Context, source string, maxPages int) ([]deed.PageImage, error)
}

// Poppler rasterizes through pdftoppm. Pages wider than 1.2x the target
// width are re-rendered at the target width; narrower pages pass
// through unchanged.
type Poppler struct {
	// Binary is the pdftoppm executable name or path.
	Binary string
	// DPI is the initial render resolution.
	DPI int
	// TargetWidth is the normalized page width in pixels; 0 disables
	// normalization.
	TargetWidth int

	// Test seams over the external binary.
	lookPath func(string) (string, error)
	run      func(ctx context.Context, name string, args ...string) error
}

// NewPoppler builds a Poppler rasterizer with standard settings.
func NewPoppler(dpi, targetWidth int) *Poppler {
	if dpi <= 0 {
		dpi = 300
	}
	return &Poppler{Binary: "pdftoppm", DPI: dpi, TargetWidth: targetWidth}
}

// NeedsResample reports whether a page of the given width must be
// re-rendered to the target width. The 20% slack avoids churning pages
// that are already close.
func NeedsResample(width, target int) bool {
	return target > 0 && width*10 > target*12
}

// ToPages renders up to maxPages pages of source as PNG images in
// ascending page order. It fails loudly when pdftoppm is unavailable.
func (p *Poppler) ToPages(ctx context.Context, source string, maxPages int) ([]deed.PageImage, error) {
	var lookPath = p.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var binary = p.Binary
	if binary == "" {
		binary = "pdftoppm"
	}
	if _, err := lookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", deed.ErrRasterizerMissing, binary)
	}

	var dir, err = os.MkdirTemp("", "deedflow-raster-")
	if err != nil {
		return nil, fmt.Errorf("creating raster scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var prefix = filepath.Join(dir, "page")
	if err = p.render(ctx, binary, source, prefix, maxPages, 0); err != nil {
		return nil, fmt.Errorf("rasterizing %s: %w", source, err)
	}

	files, err := pageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("rasterizing %s: no pages produced", source)
	}

	// Probe the first page; pdftoppm renders every page of a document
	// at the same scale, so one probe decides for all of them.
	if width, _, err := probeSize(files[0]); err != nil {
		return nil, err
	} else if NeedsResample(width, p.TargetWidth) {
		log.WithFields(log.Fields{
			"source": source,
			"width":  width,
			"target": p.TargetWidth,
		}).Debug("re-rendering pages at target width")

		if err = p.render(ctx, binary, source, prefix, maxPages, p.TargetWidth); err != nil {
			return nil, fmt.Errorf("re-rasterizing %s: %w", source, err)
		}
		if files, err = pageFiles(dir); err != nil {
			return nil, err
		}
	}

	var pages = make([]deed.PageImage, 0, len(files))
	for _, f := range files {
		var png, err = os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading rendered page: %w", err)
		}
		width, height, err := probeSize(f)
		if err != nil {
			return nil, err
		}
		pages = append(pages, deed.PageImage{
			Number: pageNumber(f),
			PNG:    png,
			Width:  width,
			Height: height,
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// render invokes pdftoppm once. A scaleTo of 0 renders at DPI; a
// positive scaleTo pins the page width instead.
func (p *Poppler) render(ctx context.Context, binary, source, prefix string, maxPages, scaleTo int) error {
	var args = []string{"-png", "-f", "1"}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	if scaleTo > 0 {
		args = append(args, "-scale-to-x", strconv.Itoa(scaleTo), "-scale-to-y", "-1")
	} else {
		args = append(args, "-r", strconv.Itoa(p.DPI))
	}
	args = append(args, source, prefix)

	if p.run != nil {
		return p.run(ctx, binary, args...)
	}
	var cmd = exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func pageFiles(dir string) ([]string, error) {
	var files, err = filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, fmt.Errorf("listing rendered pages: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return pageNumber(files[i]) < pageNumber(files[j]) })
	return files, nil
}

// pageNumber parses the page index that pdftoppm embeds in the output
// filename (page-01.png, page-1.png, ...).
func pageNumber(path string) int {
	var name = strings.TrimSuffix(filepath.Base(path), ".png")
	var idx = strings.LastIndexByte(name, '-')
	if idx < 0 {
		return 0
	}
	var n, err = strconv.Atoi(strings.TrimLeft(name[idx+1:], "0"))
	if err != nil {
		// A page numbered 000...0.
		return 0
	}
	return n
}

func probeSize(path string) (width, height int, err error) {
	var f *os.File
	if f, err = os.Open(path); err != nil {
		return 0, 0, fmt.Errorf("opening rendered page: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding rendered page %s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}
