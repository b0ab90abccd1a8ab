package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
)

// Party roles as persisted.
const (
	RoleSeller     = "S"
	RoleBuyer      = "B"
	RoleConfirming = "C"
)

// Extraction is one committed stage-2 outcome.
type Extraction struct {
	DocumentID  string
	SourcePath  string
	ContentHash string
	BatchID     string
	// FeeSource names the arbitration rung that produced the fee:
	// text, table, llm, or empty when no fee was found.
	FeeSource string
	Record    *deed.Record
}

// UpsertExtraction commits a document's record in a single transaction:
// the document row and the property row are upserted, the party rows
// are deleted and reinserted. A failure rolls everything back and is
// classified as a persistence error.
func (s *Store) UpsertExtraction(ctx context.Context, x Extraction) error {
	if err := s.upsertExtraction(ctx, x); err != nil {
		return fmt.Errorf("%w: %s", deed.ErrPersistence, err)
	}
	return nil
}

func (s *Store) upsertExtraction(ctx context.Context, x Extraction) error {
	var tx, err = s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rec = x.Record
	var now = time.Now().UTC()

	if _, err = tx.ExecContext(ctx, s.sql(`
		INSERT INTO documents (id, source_path, content_hash, batch_id, status, error_category, registration_fee, fee_source, processed_at)
		VALUES (?, ?, ?, ?, 'ok', NULL, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			source_path = excluded.source_path,
			content_hash = excluded.content_hash,
			batch_id = excluded.batch_id,
			status = excluded.status,
			error_category = excluded.error_category,
			registration_fee = excluded.registration_fee,
			fee_source = excluded.fee_source,
			processed_at = excluded.processed_at`),
		x.DocumentID, x.SourcePath, nullable(&x.ContentHash), nullable(&x.BatchID),
		rec.Property.RegistrationFee, nullable(&x.FeeSource), now,
	); err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	if _, err = tx.ExecContext(ctx, s.sql(`
		INSERT INTO properties (document_id, schedule_b_area, schedule_c_name, schedule_c_address, schedule_c_area,
			pincode, state, sale_consideration, stamp_duty_fee, registration_fee, guidance_value, cash_payment_mode,
			transaction_date, registration_office)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (document_id) DO UPDATE SET
			schedule_b_area = excluded.schedule_b_area,
			schedule_c_name = excluded.schedule_c_name,
			schedule_c_address = excluded.schedule_c_address,
			schedule_c_area = excluded.schedule_c_area,
			pincode = excluded.pincode,
			state = excluded.state,
			sale_consideration = excluded.sale_consideration,
			stamp_duty_fee = excluded.stamp_duty_fee,
			registration_fee = excluded.registration_fee,
			guidance_value = excluded.guidance_value,
			cash_payment_mode = excluded.cash_payment_mode,
			transaction_date = excluded.transaction_date,
			registration_office = excluded.registration_office`),
		x.DocumentID, rec.Property.ScheduleBArea, rec.Property.ScheduleCName, rec.Property.ScheduleCAddress,
		rec.Property.ScheduleCArea, rec.Property.Pincode, rec.Property.State, rec.Property.SaleConsideration,
		rec.Property.StampDutyFee, rec.Property.RegistrationFee, rec.Property.GuidanceValue,
		rec.Property.CashPaymentMode, rec.Document.TransactionDate, rec.Document.RegistrationOffice,
	); err != nil {
		return fmt.Errorf("upserting property: %w", err)
	}

	// Parties have no stable identity across runs; replace wholesale.
	if _, err = tx.ExecContext(ctx, s.sql(`DELETE FROM parties WHERE document_id = ?`), x.DocumentID); err != nil {
		return fmt.Errorf("clearing parties: %w", err)
	}
	if err = insertParties(ctx, tx, s, x.DocumentID, RoleSeller, rec.Sellers); err != nil {
		return err
	}
	if err = insertParties(ctx, tx, s, x.DocumentID, RoleBuyer, rec.Buyers); err != nil {
		return err
	}
	if err = insertParties(ctx, tx, s, x.DocumentID, RoleConfirming, rec.ConfirmingParties); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing extraction: %w", err)
	}

	log.WithFields(log.Fields{"doc": x.DocumentID, "feeSource": x.FeeSource}).
		Debug("extraction committed")
	return nil
}

func insertParties(ctx context.Context, tx *sql.Tx, s *Store, docID, role string, parties []deed.Party) error {
	for i, p := range parties {
		if _, err := tx.ExecContext(ctx, s.sql(`
			INSERT INTO parties (document_id, role, ordinal, name, gender, father_name, date_of_birth,
				national_id, tax_id, address, pincode, state, phone, secondary_phone, email, share)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			docID, role, i, p.Name, p.Gender, p.FatherName, p.DateOfBirth,
			p.NationalID, p.TaxID, p.Address, p.Pincode, p.State, p.Phone,
			p.SecondaryPhone, p.Email, p.Share,
		); err != nil {
			return fmt.Errorf("inserting %s party %d: %w", role, i, err)
		}
	}
	return nil
}

// MarkDocumentFailed records a terminal failure for a document without
// touching any previously committed record.
func (s *Store) MarkDocumentFailed(ctx context.Context, docID, sourcePath, batchID, category string) error {
	var now = time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, s.sql(`
		INSERT INTO documents (id, source_path, content_hash, batch_id, status, error_category, registration_fee, fee_source, processed_at)
		VALUES (?, ?, NULL, ?, 'failed', ?, NULL, NULL, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			error_category = excluded.error_category,
			batch_id = excluded.batch_id,
			processed_at = excluded.processed_at`),
		docID, sourcePath, nullable(&batchID), category, now,
	); err != nil {
		return fmt.Errorf("%w: marking document failed: %s", deed.ErrPersistence, err)
	}
	return nil
}

// PartyCounts returns how many parties of each role are stored for a
// document. Used by tests and the rerun path.
func (s *Store) PartyCounts(ctx context.Context, docID string) (map[string]int, error) {
	var rows, err = s.db.QueryContext(ctx,
		s.sql(`SELECT role, COUNT(*) FROM parties WHERE document_id = ? GROUP BY role`), docID)
	if err != nil {
		return nil, fmt.Errorf("counting parties: %w", err)
	}
	defer rows.Close()

	var out = map[string]int{}
	for rows.Next() {
		var role string
		var n int
		if err = rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scanning party count: %w", err)
		}
		out[role] = n
	}
	return out, rows.Err()
}

// FailedDocumentPaths lists source paths of documents whose last
// outcome was a failure, for the rerun-failed mode.
func (s *Store) FailedDocumentPaths(ctx context.Context) ([]string, error) {
	var rows, err = s.db.QueryContext(ctx,
		s.sql(`SELECT source_path FROM documents WHERE status = 'failed' ORDER BY id`))
	if err != nil {
		return nil, fmt.Errorf("listing failed documents: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err = rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning failed document: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// nullable maps empty strings to NULL.
func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
