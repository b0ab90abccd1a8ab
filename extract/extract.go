// Package extract turns OCR text and page images into a structured deed
// record using a multimodal language model.
package extract

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
)

// LanguageModel generates a JSON answer from a text prompt plus
// optional PNG page images.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string, images [][]byte) ([]byte, error)
}

// Extractor drives the language model and decodes its answer.
type Extractor struct {
	Model LanguageModel
	// Timeout bounds one model invocation end to end.
	Timeout time.Duration
	// MaxImages caps how many leading pages are attached to the prompt.
	MaxImages int
}

// NewExtractor applies the standard invocation bounds.
func NewExtractor(model LanguageModel) *Extractor {
	return &Extractor{Model: model, Timeout: 300 * time.Second, MaxImages: 3}
}

// Extract asks the model for the structured record of one document.
// Model failures and undecodable answers surface as ErrModelInvocation
// so the pipeline can classify them.
func (e *Extractor) Extract(ctx context.Context, docID, text string, pages []deed.PageImage) (*RawRecord, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var images [][]byte
	for _, p := range pages {
		if e.MaxImages > 0 && len(images) == e.MaxImages {
			break
		}
		images = append(images, p.PNG)
	}

	var started = time.Now()
	var raw, err = e.Model.Generate(ctx, BuildExtractionInput(text), images)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", deed.ErrModelInvocation, err)
	}

	rec, err := DecodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", deed.ErrModelInvocation, err)
	}

	log.WithFields(log.Fields{
		"doc":     docID,
		"buyers":  len(rec.Buyers),
		"sellers": len(rec.Sellers),
		"took":    time.Since(started).Round(time.Millisecond),
	}).Info("structured record extracted")

	return rec, nil
}
