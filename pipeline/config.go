package pipeline

import (
	log "github.com/sirupsen/logrus"
)

// Config tunes one batch run. Zero values take defaults; out-of-range
// values are clamped with a warning rather than rejected, so a bad knob
// can never strand a batch.
type Config struct {
	// OCRWorkers is the stage-1 pool size.
	OCRWorkers int `long:"ocr-workers" env:"OCR_WORKERS" default:"2" description:"Stage-1 OCR worker count"`
	// LLMWorkers is the stage-2 pool size.
	LLMWorkers int `long:"llm-workers" env:"LLM_WORKERS" default:"8" description:"Stage-2 extraction worker count"`
	// HandoffCapacity bounds the stage-1 to stage-2 buffer. This is the
	// only backpressure between the stages.
	HandoffCapacity int `long:"handoff-capacity" env:"HANDOFF_CAPACITY" default:"1" description:"Bounded hand-off buffer size"`
	// OCRPageConcurrency is the page-level parallelism inside one
	// stage-1 worker's OCR pass.
	OCRPageConcurrency int `long:"ocr-page-concurrency" env:"OCR_PAGE_CONCURRENCY" default:"1" description:"Pages recognized concurrently per document"`
	// Mode selects the text extractor: native tries the embedded text
	// layer before OCR, ocr always rasterizes.
	Mode string `long:"mode" env:"MODE" default:"native" choice:"native" choice:"ocr" description:"Text extraction mode"`
	// MaxPages caps how many pages of each document are processed.
	MaxPages int `long:"max-pages" env:"MAX_PAGES" default:"30" description:"Pages processed per document"`
	// MinTextChars is the threshold below which extracted text is
	// considered insufficient.
	MinTextChars int `long:"min-text-chars" env:"MIN_TEXT_CHARS" default:"100" description:"Minimum extracted characters per document"`
}

// Bounds on the worker pools and buffer.
const (
	minWorkers     = 1
	maxWorkers     = 20
	minHandoff     = 1
	maxHandoff     = 10
	maxPageConc    = 8
	defaultMaxPgs  = 30
	defaultMinText = 100
)

// Normalize clamps the configuration into its supported ranges.
func (c *Config) Normalize() {
	c.OCRWorkers = clamp("ocrWorkers", c.OCRWorkers, minWorkers, maxWorkers, 2)
	c.LLMWorkers = clamp("llmWorkers", c.LLMWorkers, minWorkers, maxWorkers, 8)
	c.HandoffCapacity = clamp("handoffCapacity", c.HandoffCapacity, minHandoff, maxHandoff, 1)
	c.OCRPageConcurrency = clamp("ocrPageConcurrency", c.OCRPageConcurrency, 1, maxPageConc, 1)
	if c.Mode == "" {
		c.Mode = "native"
	}
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPgs
	}
	if c.MinTextChars <= 0 {
		c.MinTextChars = defaultMinText
	}
}

func clamp(name string, v, lo, hi, def int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		log.WithFields(log.Fields{"knob": name, "value": v, "floor": lo}).Warn("clamping configuration value")
		return lo
	}
	if v > hi {
		log.WithFields(log.Fields{"knob": name, "value": v, "ceiling": hi}).Warn("clamping configuration value")
		return hi
	}
	return v
}
