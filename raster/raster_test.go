package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deedworks/deedflow/deed"
)

func TestNeedsResample(t *testing.T) {
	require.False(t, NeedsResample(2000, 2000))
	require.False(t, NeedsResample(2400, 2000)) // exactly 1.2x
	require.True(t, NeedsResample(2401, 2000))
	require.True(t, NeedsResample(4000, 2000))
	require.False(t, NeedsResample(4000, 0)) // normalization disabled
}

func TestToPagesMissingBinary(t *testing.T) {
	var p = NewPoppler(300, 2000)
	p.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := p.ToPages(context.Background(), "deed.pdf", 30)
	require.ErrorIs(t, err, deed.ErrRasterizerMissing)
}

func TestToPagesOrdersAndProbesPages(t *testing.T) {
	var p = NewPoppler(300, 2000)
	p.lookPath = func(string) (string, error) { return "/usr/bin/pdftoppm", nil }
	p.run = func(ctx context.Context, name string, args ...string) error {
		// pdftoppm writes page-N.png files under the prefix directory.
		var dir = filepath.Dir(args[len(args)-1])
		writePNG(t, filepath.Join(dir, "page-2.png"), 1000, 1400)
		writePNG(t, filepath.Join(dir, "page-10.png"), 1000, 1400)
		writePNG(t, filepath.Join(dir, "page-1.png"), 1000, 1400)
		return nil
	}

	pages, err := p.ToPages(context.Background(), "deed.pdf", 30)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	require.Equal(t, []int{1, 2, 10}, []int{pages[0].Number, pages[1].Number, pages[2].Number})
	require.Equal(t, 1000, pages[0].Width)
	require.Equal(t, 1400, pages[0].Height)
	require.NotEmpty(t, pages[0].PNG)
}

func TestToPagesRerendersWidePages(t *testing.T) {
	var p = NewPoppler(300, 2000)
	p.lookPath = func(string) (string, error) { return "/usr/bin/pdftoppm", nil }

	var calls [][]string
	p.run = func(ctx context.Context, name string, args ...string) error {
		calls = append(calls, args)
		var dir = filepath.Dir(args[len(args)-1])
		var width = 3000
		if len(calls) > 1 {
			width = 2000
		}
		writePNG(t, filepath.Join(dir, "page-1.png"), width, width*7/5)
		return nil
	}

	pages, err := p.ToPages(context.Background(), "deed.pdf", 30)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	require.Contains(t, calls[1], "-scale-to-x")
	require.Contains(t, calls[1], "2000")
	require.Equal(t, 2000, pages[0].Width)
}

func TestToPagesPassesPageLimit(t *testing.T) {
	var p = NewPoppler(300, 0)
	p.lookPath = func(string) (string, error) { return "/usr/bin/pdftoppm", nil }

	var args []string
	p.run = func(ctx context.Context, name string, a ...string) error {
		args = a
		writePNG(t, filepath.Join(filepath.Dir(a[len(a)-1]), "page-1.png"), 800, 1100)
		return nil
	}

	_, err := p.ToPages(context.Background(), "deed.pdf", 30)
	require.NoError(t, err)
	require.Contains(t, args, "-l")
	require.Contains(t, args, strconv.Itoa(30))
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, width, height))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}
