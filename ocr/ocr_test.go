package ocr

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deedworks/deedflow/deed"
)

func TestJoinPagesOrdersAndMarksPages(t *testing.T) {
	var got = JoinPages([]PageText{
		{Number: 2, Text: "second\n"},
		{Number: 1, Text: "first"},
	})
	require.Equal(t, "--- Page 1 ---\nfirst\n--- Page 2 ---\nsecond\n", got)
}

func TestNativeSplitsFormFeeds(t *testing.T) {
	var n = NewNative()
	n.output = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		require.Equal(t, "pdftotext", name)
		require.Contains(t, args, "-layout")
		return []byte("page one text\fpage two text\f"), nil
	}

	text, err := n.Extract(context.Background(), "deed.pdf", 30)
	require.NoError(t, err)
	require.Equal(t, "--- Page 1 ---\npage one text\n--- Page 2 ---\npage two text\n", text)
}

func TestNativeSkipsBlankPages(t *testing.T) {
	var n = NewNative()
	n.output = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("\f  \fthird"), nil
	}

	text, err := n.Extract(context.Background(), "deed.pdf", 30)
	require.NoError(t, err)
	require.Equal(t, "--- Page 3 ---\nthird\n", text)
}

func TestTesseractRecognizesInPageOrder(t *testing.T) {
	var eng = NewTesseract(2)
	eng.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		require.Contains(t, args, "eng+kan")
		// args[0] is the image path, page-N.png.
		return []byte("text of " + args[0]), nil
	}

	var pages = []deed.PageImage{
		{Number: 3, PNG: []byte{1}},
		{Number: 1, PNG: []byte{1}},
		{Number: 2, PNG: []byte{1}},
	}
	texts, err := eng.Recognize(context.Background(), pages)
	require.NoError(t, err)
	require.Len(t, texts, 3)
	for i, pt := range texts {
		require.Equal(t, i+1, pt.Number)
		require.Contains(t, pt.Text, "page-")
	}
}

func TestTesseractBoundsConcurrency(t *testing.T) {
	var eng = NewTesseract(2)
	var active, peak int32
	var mu sync.Mutex

	eng.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		var n = atomic.AddInt32(&active, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		defer atomic.AddInt32(&active, -1)
		return []byte("ok"), nil
	}

	var pages = make([]deed.PageImage, 10)
	for i := range pages {
		pages[i] = deed.PageImage{Number: i + 1, PNG: []byte{1}}
	}
	_, err := eng.Recognize(context.Background(), pages)
	require.NoError(t, err)
	require.LessOrEqual(t, peak, int32(2))
}

func TestTesseractPageFailureFailsDocument(t *testing.T) {
	var eng = NewTesseract(2)
	eng.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, errors.New("boom")
	}

	_, err := eng.Recognize(context.Background(), []deed.PageImage{{Number: 1, PNG: []byte{1}}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "page 1")
}
