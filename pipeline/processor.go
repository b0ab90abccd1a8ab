package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
	"github.com/deedworks/deedflow/extract"
	"github.com/deedworks/deedflow/fees"
	"github.com/deedworks/deedflow/ocr"
	"github.com/deedworks/deedflow/raster"
	"github.com/deedworks/deedflow/store"
	"github.com/deedworks/deedflow/validate"
)

// Token is a stop signal polled at the documented checkpoints. Stage
// workers never abandon a document mid-phase; they check between
// phases and run the current phase to completion.
type Token struct {
	stop *atomic.Bool
}

// Stopped reports whether a cooperative stop was requested.
func (t *Token) Stopped() bool {
	return t != nil && t.stop != nil && t.stop.Load()
}

// Arbitrated fee sources, in priority order.
const (
	FeeSourceText  = "text"
	FeeSourceTable = "table"
	FeeSourceLLM   = "llm"
)

// Collaborator seams of the document processor. The concrete types in
// ocr, tables, extract, and store satisfy these.

// TextLayer extracts a PDF's embedded text.
type TextLayer interface {
	Extract(ctx context.Context, source string, maxPages int) (string, error)
}

// RecordExtractor produces the raw structured record for a document.
type RecordExtractor interface {
	Extract(ctx context.Context, docID, text string, pages []deed.PageImage) (*extract.RawRecord, error)
}

// FeeFinder locates a readable fee table across a document's pages.
type FeeFinder interface {
	Find(ctx context.Context, docID string, pages []deed.PageImage) (*float64, bool, error)
}

// Persister commits terminal outcomes.
type Persister interface {
	UpsertExtraction(ctx context.Context, x store.Extraction) error
	MarkDocumentFailed(ctx context.Context, docID, sourcePath, batchID, category string) error
}

// HashRecorder remembers content hashes of successfully processed
// documents.
type HashRecorder interface {
	Record(ctx context.Context, hash, docID string) error
}

// Notifier emits user-facing events.
type Notifier interface {
	Emit(ctx context.Context, batchID, docID, severity, message string)
}

// DocumentProcessor implements both pipeline stages for one document at
// a time. It is stateless across documents and shared by all workers.
type DocumentProcessor struct {
	Raster    raster.Rasterizer
	Text      TextLayer
	OCR       ocr.Engine
	Fees      fees.Extractor
	Tables    FeeFinder
	Extractor RecordExtractor
	Store     Persister
	Hashes    HashRecorder
	Mover     deed.Mover
	Notify    Notifier

	// MinTextChars is the sufficiency threshold for extracted text.
	MinTextChars int
	// MaxPages caps per-document page processing.
	MaxPages int
}

// ProcessStage1 runs rasterization and text extraction for one task.
// Only successful outputs go on to the hand-off buffer; the coordinator
// settles failed and stopped outputs through Finalize.
func (p *DocumentProcessor) ProcessStage1(ctx context.Context, tok *Token, task deed.Task) deed.Stage1Output {
	var out = deed.Stage1Output{
		DocumentID:  task.DocumentID,
		SourcePath:  task.SourcePath,
		BatchID:     task.BatchID,
		ContentHash: task.ContentHash,
		Status:      deed.StatusOk,
	}
	if tok.Stopped() {
		out.Status = deed.StatusStopped
		return out
	}

	var timer = prometheus.NewTimer(stageSeconds.WithLabelValues("stage1"))
	defer timer.ObserveDuration()

	// The embedded text layer is tried first; scanned deeds yield
	// nothing here and fall through to OCR.
	if p.Text != nil {
		if text, err := p.Text.Extract(ctx, task.SourcePath, p.MaxPages); err != nil {
			log.WithFields(log.Fields{"doc": task.DocumentID, "error": err}).
				Debug("no embedded text layer; falling back to OCR")
		} else if contentChars(text) >= p.MinTextChars {
			out.FullText = text
			out.FeeFromText = p.textFee(task.DocumentID, text)
			return out
		}
	}

	if tok.Stopped() {
		out.Status = deed.StatusStopped
		return out
	}

	pages, err := p.Raster.ToPages(ctx, task.SourcePath, p.MaxPages)
	if err != nil {
		out.Status, out.Err = deed.StatusFailed, err
		return out
	}
	out.Pages = pages

	if tok.Stopped() {
		out.Status = deed.StatusStopped
		return out
	}

	texts, err := p.OCR.Recognize(ctx, pages)
	if err != nil {
		out.Status, out.Err = deed.StatusFailed, fmt.Errorf("ocr of %s: %w", task.DocumentID, err)
		return out
	}
	out.FullText = ocr.JoinPages(texts)

	if contentChars(out.FullText) < p.MinTextChars {
		out.Status = deed.StatusFailed
		out.Err = fmt.Errorf("%w: %d characters extracted from %s",
			deed.ErrInsufficientText, contentChars(out.FullText), task.DocumentID)
		return out
	}

	if tok.Stopped() {
		out.Status = deed.StatusStopped
		return out
	}

	out.FeeFromText = p.textFee(task.DocumentID, out.FullText)
	return out
}

func (p *DocumentProcessor) textFee(docID, text string) *float64 {
	var fee, ok = p.Fees.FromText(text)
	if !ok {
		return nil
	}
	log.WithFields(log.Fields{"doc": docID, "fee": fee}).Info("registration fee found in text")
	return &fee
}

// contentChars counts the non-whitespace characters of extracted text,
// excluding the page-marker lines.
func contentChars(text string) int {
	var n int
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "--- Page ") {
			continue
		}
		for _, r := range line {
			if r != ' ' && r != '\t' && r != '\r' {
				n++
			}
		}
	}
	return n
}

// ProcessStage2 runs extraction, fee arbitration, and persistence for
// one hand-off record and returns the document's terminal outcome.
func (p *DocumentProcessor) ProcessStage2(ctx context.Context, tok *Token, out deed.Stage1Output) deed.Result {
	var res = deed.Result{DocumentID: out.DocumentID, Status: deed.StatusOk}

	if out.Status != deed.StatusOk {
		return p.Finalize(ctx, out)
	}
	if tok.Stopped() {
		// The file stays in place; a later run picks it up.
		res.Status = deed.StatusStopped
		return res
	}

	var timer = prometheus.NewTimer(stageSeconds.WithLabelValues("stage2"))
	defer timer.ObserveDuration()

	raw, err := p.Extractor.Extract(ctx, out.DocumentID, out.FullText, out.Pages)
	if err != nil {
		return p.fail(ctx, out, res, err)
	}
	if tok.Stopped() {
		// A stop arrived during the model call. The answer is discarded
		// and the document reruns whole on a later batch.
		res.Status = deed.StatusStopped
		return res
	}
	res.Extracted = true

	rec, err := validate.CleanRecord(raw)
	if err != nil {
		return p.fail(ctx, out, res, err)
	}

	var fee, source, tableFound = p.arbitrateFee(ctx, tok, out, rec)
	res.RegistrationFee = fee
	res.TableFound = tableFound
	if fee != nil {
		validate.SetRegistrationFee(rec, fee)
		feeSources.WithLabelValues(source).Inc()
	} else {
		// No source survived arbitration; never persist an unvetted
		// model amount.
		rec.Property.RegistrationFee = nil
		rec.Property.GuidanceValue = nil
		log.WithFields(log.Fields{"doc": out.DocumentID}).
			Warn("no registration fee from any source")
	}

	if tok.Stopped() {
		res.Status = deed.StatusStopped
		return res
	}

	if err = p.Store.UpsertExtraction(ctx, store.Extraction{
		DocumentID:  out.DocumentID,
		SourcePath:  out.SourcePath,
		ContentHash: out.ContentHash,
		BatchID:     out.BatchID,
		FeeSource:   source,
		Record:      rec,
	}); err != nil {
		return p.fail(ctx, out, res, err)
	}
	res.Saved = true

	if p.Hashes != nil && out.ContentHash != "" {
		if err = p.Hashes.Record(ctx, out.ContentHash, out.DocumentID); err != nil {
			log.WithFields(log.Fields{"doc": out.DocumentID, "error": err}).
				Warn("content hash not recorded")
		}
	}
	if p.Mover != nil {
		if err = p.Mover.MoveTo(deed.AreaProcessed, out.SourcePath); err != nil {
			log.WithFields(log.Fields{"doc": out.DocumentID, "error": err}).
				Warn("processed file not moved")
		}
	}

	log.WithFields(log.Fields{"doc": out.DocumentID, "feeSource": source}).
		Info("document processed")
	return res
}

// Finalize settles a stage-1 output that must not be processed:
// stopped documents pass through untouched, failures are recorded,
// moved aside, and notified.
func (p *DocumentProcessor) Finalize(ctx context.Context, out deed.Stage1Output) deed.Result {
	var res = deed.Result{DocumentID: out.DocumentID, Status: out.Status}
	if out.Status == deed.StatusFailed {
		return p.fail(ctx, out, deed.Result{DocumentID: out.DocumentID}, out.Err)
	}
	return res
}

// arbitrateFee resolves the registration fee by source priority: the
// text heuristics are final when they matched; otherwise the fee-table
// vision path; otherwise the model's own value, bounds-checked.
func (p *DocumentProcessor) arbitrateFee(ctx context.Context, tok *Token, out deed.Stage1Output, rec *deed.Record) (fee *float64, source string, tableFound bool) {
	if out.FeeFromText != nil {
		return out.FeeFromText, FeeSourceText, false
	}

	if p.Tables != nil && len(out.Pages) > 0 && !tok.Stopped() {
		var fee, found, err = p.Tables.Find(ctx, out.DocumentID, out.Pages)
		tableFound = found
		if err != nil {
			log.WithFields(log.Fields{"doc": out.DocumentID, "error": err}).
				Warn("fee table scan aborted")
		} else if fee != nil {
			return fee, FeeSourceTable, true
		} else if found {
			log.WithFields(log.Fields{"doc": out.DocumentID}).
				Debug("fee table detected but unreadable")
		}
	}

	if rec.Property.RegistrationFee != nil {
		if v, err := strconv.ParseFloat(*rec.Property.RegistrationFee, 64); err == nil && v >= p.Fees.MinFee {
			return &v, FeeSourceLLM, tableFound
		}
	}
	return nil, "", tableFound
}

// fail records a terminal failure: classify, persist the failure row,
// move the file aside, and notify.
func (p *DocumentProcessor) fail(ctx context.Context, out deed.Stage1Output, res deed.Result, cause error) deed.Result {
	res.Status = deed.StatusFailed
	res.Err = cause

	var category = deed.Category(cause)
	log.WithFields(log.Fields{
		"doc":      out.DocumentID,
		"category": category,
		"error":    cause,
	}).Error("document failed")

	if err := p.Store.MarkDocumentFailed(ctx, out.DocumentID, out.SourcePath, out.BatchID, category); err != nil {
		log.WithFields(log.Fields{"doc": out.DocumentID, "error": err}).
			Warn("failure row not recorded")
	}
	if p.Mover != nil {
		if err := p.Mover.MoveTo(deed.AreaFailed, out.SourcePath); err != nil {
			log.WithFields(log.Fields{"doc": out.DocumentID, "error": err}).
				Warn("failed file not moved")
		}
	}
	if p.Notify != nil {
		p.Notify.Emit(ctx, out.BatchID, out.DocumentID, store.SeverityError,
			fmt.Sprintf("%s failed: %s", out.DocumentID, category))
	}

	return res
}
