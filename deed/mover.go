package deed

import (
	"fmt"
	"os"
	"path/filepath"
)

// Area is a terminal filesystem destination for an input document.
type Area string

const (
	AreaProcessed Area = "processed"
	AreaFailed    Area = "failed"
)

// Mover relocates an input file to a terminal area. Moves happen after
// the database commit and are best-effort from the caller's view.
type Mover interface {
	MoveTo(area Area, path string) error
}

// DirMover moves files between sibling directories under a data root.
type DirMover struct {
	// ProcessedDir receives documents with an Ok outcome.
	ProcessedDir string
	// FailedDir receives documents with a Failed outcome.
	FailedDir string
}

// MoveTo moves path into the directory for area, creating it if needed.
// An existing file at the destination is overwritten.
func (m DirMover) MoveTo(area Area, path string) error {
	var dir string
	switch area {
	case AreaProcessed:
		dir = m.ProcessedDir
	case AreaFailed:
		dir = m.FailedDir
	default:
		return fmt.Errorf("unknown area %q", area)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s area: %w", area, err)
	}
	var dst = filepath.Join(dir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("moving %s to %s area: %w", path, area, err)
	}
	return nil
}
