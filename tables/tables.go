// Package tables locates the printed fee table on deed pages and reads
// the registration fee out of it with a vision model. This is the
// middle rung of fee arbitration: it runs only when the text heuristics
// found nothing, and loses to them when they did.
package tables

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/deedworks/deedflow/deed"
)

var amountRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// Detection is a detector's verdict on a single page. Box is the table
// region as [ymin, xmin, ymax, xmax], normalized to 0..1000 of the page
// dimensions.
type Detection struct {
	Found      bool
	Confidence float64
	Box        [4]int
}

// Detector locates a fee table on a page image.
type Detector interface {
	DetectFeeTable(ctx context.Context, page []byte) (Detection, error)
}

// VisionModel reads the registration fee off a cropped table image. A
// nil fee means the table was unreadable.
type VisionModel interface {
	ReadRegistrationFee(ctx context.Context, table []byte) (*float64, error)
}

// CropTable cuts the detected region out of a PNG page, mapping the
// normalized box onto the page's pixel bounds.
func CropTable(page []byte, box [4]int) ([]byte, error) {
	var img, err = png.Decode(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("decoding page for crop: %w", err)
	}
	var b = img.Bounds()
	var rect = image.Rect(
		b.Min.X+box[1]*b.Dx()/1000,
		b.Min.Y+box[0]*b.Dy()/1000,
		b.Min.X+box[3]*b.Dx()/1000,
		b.Min.Y+box[2]*b.Dy()/1000,
	).Intersect(b)
	if rect.Empty() {
		return nil, fmt.Errorf("empty table region %v", box)
	}

	sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	})
	if !ok {
		return nil, fmt.Errorf("cropping %T pages is unsupported", img)
	}

	var buf bytes.Buffer
	if err = png.Encode(&buf, sub.SubImage(rect)); err != nil {
		return nil, fmt.Errorf("encoding table crop: %w", err)
	}
	return buf.Bytes(), nil
}

// FeeFinder scans a document's pages front to back for a readable fee
// table.
type FeeFinder struct {
	Detector Detector
	Vision   VisionModel
	// MinConfidence gates detections; below it a page is skipped.
	MinConfidence float64
	// MinFee rejects implausibly small amounts read by the model.
	MinFee float64
}

// NewFeeFinder applies the standard thresholds when zero values are
// given.
func NewFeeFinder(det Detector, vis VisionModel, minConfidence, minFee float64) *FeeFinder {
	if minConfidence <= 0 {
		minConfidence = 0.86
	}
	if minFee <= 0 {
		minFee = 100
	}
	return &FeeFinder{Detector: det, Vision: vis, MinConfidence: minConfidence, MinFee: minFee}
}

// Find scans pages in ascending page order. It returns the first fee
// read from a confidently-detected table, and whether any table was
// detected at all. A page where detection or reading fails is logged
// and skipped; the scan continues.
func (f *FeeFinder) Find(ctx context.Context, docID string, pages []deed.PageImage) (fee *float64, tableFound bool, err error) {
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, tableFound, err
		}

		var det, detErr = f.Detector.DetectFeeTable(ctx, page.PNG)
		if detErr != nil {
			log.WithFields(log.Fields{"doc": docID, "page": page.Number, "error": detErr}).
				Warn("fee table detection failed; skipping page")
			continue
		}
		if !det.Found || det.Confidence < f.MinConfidence {
			continue
		}
		tableFound = true
		log.WithFields(log.Fields{"doc": docID, "page": page.Number, "confidence": det.Confidence}).
			Debug("fee table detected")

		// The vision model receives only the table region. When the crop
		// fails the full page goes instead.
		var region = page.PNG
		if crop, cropErr := CropTable(page.PNG, det.Box); cropErr != nil {
			log.WithFields(log.Fields{"doc": docID, "page": page.Number, "error": cropErr}).
				Debug("table crop failed; sending full page")
		} else {
			region = crop
		}

		var read, readErr = f.Vision.ReadRegistrationFee(ctx, region)
		if readErr != nil {
			log.WithFields(log.Fields{"doc": docID, "page": page.Number, "error": readErr}).
				Warn("fee table read failed; scanning remaining pages")
			continue
		}
		if read == nil || *read < f.MinFee {
			continue
		}
		return read, true, nil
	}
	return nil, tableFound, nil
}

// ParseFeeResponse decodes a model's fee answer. The model is told to
// reply with {"registration_fee": <number|null>} but in practice also
// returns strings with currency noise, which are cleaned here. A null
// or absent fee is not an error.
func ParseFeeResponse(raw []byte) (*float64, error) {
	var body struct {
		RegistrationFee json.RawMessage `json:"registration_fee"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decoding fee response: %w", err)
	}
	if len(body.RegistrationFee) == 0 || string(body.RegistrationFee) == "null" {
		return nil, nil
	}

	var asNumber float64
	if err := json.Unmarshal(body.RegistrationFee, &asNumber); err == nil {
		return &asNumber, nil
	}

	var asString string
	if err := json.Unmarshal(body.RegistrationFee, &asString); err != nil {
		return nil, fmt.Errorf("decoding fee response: unexpected value %s", body.RegistrationFee)
	}
	var m = amountRe.FindString(asString)
	if m == "" {
		return nil, nil
	}
	var v, err = strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("decoding fee response: %w", err)
	}
	return &v, nil
}

// ParseDetectionResponse decodes a model's table-detection answer,
// {"table_found": bool, "confidence": number, "box_2d": [ymin, xmin,
// ymax, xmax]}. The box is clamped to the 0..1000 normalized range.
func ParseDetectionResponse(raw []byte) (Detection, error) {
	var body struct {
		TableFound bool      `json:"table_found"`
		Confidence float64   `json:"confidence"`
		Box        []float64 `json:"box_2d"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Detection{}, fmt.Errorf("decoding detection response: %w", err)
	}

	var det = Detection{Found: body.TableFound, Confidence: body.Confidence}
	if len(body.Box) == 4 {
		for i, v := range body.Box {
			det.Box[i] = min(1000, max(0, int(v)))
		}
	}
	return det, nil
}
