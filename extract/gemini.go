package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/tables"
)

// Gemini calls the Generative Language REST API. One client serves both
// the stage-2 extraction model and the fee-table vision model.
type Gemini struct {
	// APIKey authenticates requests.
	APIKey string
	// TextModel is the model used for structured extraction.
	TextModel string
	// VisionModel is the model used for table detection and fee reads.
	VisionModel string
	// MaxOutputTokens bounds answer size.
	MaxOutputTokens int
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string

	// HTTPClient defaults to a client with a generous timeout; the
	// extractor applies the per-invocation deadline via context.
	HTTPClient *http.Client
}

// NewGemini builds a client with the standard model pair.
func NewGemini(apiKey string) *Gemini {
	return &Gemini{
		APIKey:          apiKey,
		TextModel:       "gemini-2.0-flash",
		VisionModel:     "gemini-2.0-flash",
		MaxOutputTokens: 8192,
	}
}

// Wire shapes of the generateContent call.

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements LanguageModel against the text model.
func (g *Gemini) Generate(ctx context.Context, prompt string, images [][]byte) ([]byte, error) {
	return g.generate(ctx, g.TextModel, prompt, images)
}

// DetectFeeTable implements tables.Detector against the vision model.
func (g *Gemini) DetectFeeTable(ctx context.Context, png []byte) (tables.Detection, error) {
	var raw, err = g.generate(ctx, g.VisionModel, TableDetectPrompt, [][]byte{png})
	if err != nil {
		return tables.Detection{}, err
	}
	return tables.ParseDetectionResponse(stripFence(raw))
}

// ReadRegistrationFee implements tables.VisionModel against the vision
// model.
func (g *Gemini) ReadRegistrationFee(ctx context.Context, png []byte) (*float64, error) {
	var raw, err = g.generate(ctx, g.VisionModel, VisionFeePrompt, [][]byte{png})
	if err != nil {
		return nil, err
	}
	return tables.ParseFeeResponse(stripFence(raw))
}

func (g *Gemini) generate(ctx context.Context, model, prompt string, images [][]byte) ([]byte, error) {
	var parts = []geminiPart{{Text: prompt}}
	for _, img := range images {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MIMEType: "image/png",
			Data:     base64.StdEncoding.EncodeToString(img),
		}})
	}
	var body, err = json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenConfig{
			Temperature:      0,
			MaxOutputTokens:  g.MaxOutputTokens,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding model request: %w", err)
	}

	var base = g.BaseURL
	if base == "" {
		base = "https://generativelanguage.googleapis.com/v1beta"
	}
	var url = fmt.Sprintf("%s/models/%s:generateContent?key=%s", base, model, g.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var client = g.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	var started = time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoking model %s: %w", model, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading model response: %w", err)
	}

	var decoded geminiResponse
	if err = json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decoding model response (HTTP %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("model %s returned error %d: %s", model, decoded.Error.Code, decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model %s returned HTTP %d", model, resp.StatusCode)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("model %s returned no candidates", model)
	}

	log.WithFields(log.Fields{
		"model": model,
		"took":  time.Since(started).Round(time.Millisecond),
	}).Debug("model invocation complete")

	return []byte(decoded.Candidates[0].Content.Parts[0].Text), nil
}
