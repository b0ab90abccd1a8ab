package deed

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDocumentIDIsStable(t *testing.T) {
	require.Equal(t, "SALE_DEED_4421", DocumentIDFromFilename("SALE_DEED_4421.pdf"))
	require.Equal(t, "SALE_DEED_4421", DocumentIDFromFilename("/data/incoming/SALE_DEED_4421.pdf"))
	require.Equal(t, DocumentIDFromFilename("x y.PDF"), DocumentIDFromFilename("x y.PDF"))
	require.Equal(t, "x_y", DocumentIDFromFilename("x  y.pdf"))
	require.Equal(t, "noext", DocumentIDFromFilename("noext"))
}

func TestIsPDF(t *testing.T) {
	require.True(t, IsPDF("a.pdf"))
	require.True(t, IsPDF("a.PDF"))
	require.False(t, IsPDF("a.png"))
	require.False(t, IsPDF("pdf"))
}

func TestErrorCategories(t *testing.T) {
	var cases = []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrStopped, "Cancelled"},
		{fmt.Errorf("stage 1: %w", ErrInsufficientText), "InsufficientText"},
		{fmt.Errorf("raster: %w", ErrRasterizerMissing), "RasterizationMissing"},
		{fmt.Errorf("llm: %w", ErrModelInvocation), "ModelInvocation"},
		{ErrValidation, "Validation"},
		{fmt.Errorf("commit: %w", ErrPersistence), "Persistence"},
		{errors.New("boom"), "Unknown"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Category(tc.err))
	}
}

func TestDirMover(t *testing.T) {
	var root = t.TempDir()
	var src = filepath.Join(root, "incoming", "doc.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4"), 0o644))

	var m = DirMover{
		ProcessedDir: filepath.Join(root, "processed"),
		FailedDir:    filepath.Join(root, "failed"),
	}
	require.NoError(t, m.MoveTo(AreaFailed, src))

	_, err := os.Stat(src)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "failed", "doc.pdf"))
	require.NoError(t, err)

	require.Error(t, m.MoveTo(Area("elsewhere"), src))
}
