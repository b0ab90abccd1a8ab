package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Notification severities.
const (
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Notification is one user-facing event row.
type Notification struct {
	ID         string
	BatchID    string
	DocumentID string
	Severity   string
	Message    string
	CreatedAt  time.Time
}

// Notifier writes user-facing events to the notifications table.
type Notifier struct {
	store *Store
}

// NewNotifier builds a notifier over the store.
func NewNotifier(store *Store) *Notifier { return &Notifier{store: store} }

// Emit records one notification. Notification failures are logged, not
// propagated; a missed toast must never fail a document.
func (n *Notifier) Emit(ctx context.Context, batchID, docID, severity, message string) {
	if _, err := n.store.db.ExecContext(ctx, n.store.sql(`
		INSERT INTO notifications (id, batch_id, document_id, severity, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), nullable(&batchID), nullable(&docID), severity, message, time.Now().UTC(),
	); err != nil {
		log.WithFields(log.Fields{"doc": docID, "severity": severity, "error": err}).
			Warn("dropping notification")
	}
}

// BatchSeverity picks the severity of a batch-completion notification
// from its tallies: clean runs are success, total failures are error,
// partial failures are warning.
func BatchSeverity(successful, failed int) string {
	switch {
	case failed == 0:
		return SeveritySuccess
	case successful == 0:
		return SeverityError
	default:
		return SeverityWarning
	}
}

// Recent returns the newest notifications, newest first.
func (n *Notifier) Recent(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows, err = n.store.db.QueryContext(ctx, n.store.sql(`
		SELECT id, COALESCE(batch_id, ''), COALESCE(document_id, ''), severity, message, created_at
		FROM notifications ORDER BY created_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var note Notification
		if err = rows.Scan(&note.ID, &note.BatchID, &note.DocumentID, &note.Severity, &note.Message, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		out = append(out, note)
	}
	return out, rows.Err()
}
