package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Batch session lifecycle states.
const (
	SessionPending    = "Pending"
	SessionProcessing = "Processing"
	SessionCompleted  = "Completed"
)

// Session is one batch run's bookkeeping row.
type Session struct {
	ID         string
	Name       string
	Status     string
	Total      int
	Processed  int
	Successful int
	Failed     int
	Stopped    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewSessionID mints a batch session identifier. The timestamp makes
// IDs sortable in ad-hoc queries; the UUID suffix makes them unique.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("BATCH_%s_%s", now.UTC().Format("20060102T150405"),
		strings.Split(uuid.NewString(), "-")[0])
}

// CreateSession inserts a Pending session for a batch of total
// documents.
func (s *Store) CreateSession(ctx context.Context, id, name string, total int) error {
	var now = time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, s.sql(`
		INSERT INTO batch_sessions (id, name, status, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		id, name, SessionPending, total, now, now,
	); err != nil {
		return fmt.Errorf("creating batch session: %w", err)
	}
	log.WithFields(log.Fields{"session": id, "total": total}).Info("batch session created")
	return nil
}

// MarkProcessing transitions a session to Processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.sql(`
		UPDATE batch_sessions SET status = ?, updated_at = ? WHERE id = ?`),
		SessionProcessing, time.Now().UTC(), id,
	); err != nil {
		return fmt.Errorf("marking session processing: %w", err)
	}
	return nil
}

// MarkCompleted transitions a session to Completed with its final
// tallies. Stopped batches complete too; the stopped tally records how
// far they got.
func (s *Store) MarkCompleted(ctx context.Context, id string, processed, successful, failed, stopped int) error {
	if _, err := s.db.ExecContext(ctx, s.sql(`
		UPDATE batch_sessions
		SET status = ?, processed = ?, successful = ?, failed = ?, stopped = ?, updated_at = ?
		WHERE id = ?`),
		SessionCompleted, processed, successful, failed, stopped, time.Now().UTC(), id,
	); err != nil {
		return fmt.Errorf("marking session completed: %w", err)
	}
	log.WithFields(log.Fields{
		"session": id, "processed": processed, "successful": successful,
		"failed": failed, "stopped": stopped,
	}).Info("batch session completed")
	return nil
}

// GetSession loads one session row.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var err = s.db.QueryRowContext(ctx, s.sql(`
		SELECT id, name, status, total, processed, successful, failed, stopped, created_at, updated_at
		FROM batch_sessions WHERE id = ?`), id).
		Scan(&sess.ID, &sess.Name, &sess.Status, &sess.Total, &sess.Processed,
			&sess.Successful, &sess.Failed, &sess.Stopped, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("loading batch session %s: %w", id, err)
	}
	return &sess, nil
}
