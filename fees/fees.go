// Package fees parses the registration-fee amount out of raw extracted
// deed text. The heuristics target the fee table printed on Karnataka
// registration receipts, which OCR renders as loose lines of label and
// amount in mixed Kannada and English.
package fees

import (
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Extractor scans text for a registration fee. It is cheap and fully
// auditable, which is why its answer is final when it has one.
type Extractor struct {
	// MinFee is the floor below which no guess is ever emitted.
	MinFee float64
	// MaxMiscFee bounds the small print/miscellaneous line amounts that
	// must not be mistaken for the fee.
	MaxMiscFee float64
}

// NewExtractor applies the standard bounds when zero values are given.
func NewExtractor(minFee, maxMiscFee float64) Extractor {
	if minFee <= 0 {
		minFee = 100
	}
	if maxMiscFee <= 0 {
		maxMiscFee = 3000
	}
	return Extractor{MinFee: minFee, MaxMiscFee: maxMiscFee}
}

// Labels that mark the registration-fee row. The transliterated forms
// cover OCR output that already romanized the Kannada label.
var feeLabels = []string{
	"registration fee",
	"regn fee",
	"reg fee",
	"nondani",
	"nomdani",
	"ನೋಂದಣಿ",
	"ನೊಂದಣಿ",
}

// Labels whose amounts are noise: small print/processing/misc rows and
// the table's total row.
var rejectLabels = []string{
	"misc",
	"print",
	"processing",
	"itare",
	"ಇತರೆ",
	"total",
	"ottu",
	"ಒಟ್ಟು",
}

var amountRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// FromText scans text line by line for a registration fee. The second
// return is false when no qualifying amount was found; absence is not
// an error.
func (e Extractor) FromText(text string) (float64, bool) {
	var lines = strings.Split(text, "\n")

	for i, line := range lines {
		var lower = strings.ToLower(line)
		if !containsAny(lower, feeLabels) {
			continue
		}

		if fee, ok := e.bestAmount(line, containsAny(lower, rejectLabels)); ok {
			return fee, true
		}
		// Labels and amounts often land on adjacent lines; peek one
		// line ahead before giving up on this label.
		if i+1 < len(lines) {
			var next = lines[i+1]
			if fee, ok := e.bestAmount(next, containsAny(strings.ToLower(next), rejectLabels)); ok {
				return fee, true
			}
		}
	}
	return 0, false
}

// bestAmount picks the largest qualifying amount on a line. On lines
// carrying a misc/print/total label, amounts up to MaxMiscFee are
// treated as noise; only an amount large enough to be the fee itself
// qualifies there.
func (e Extractor) bestAmount(line string, miscLine bool) (float64, bool) {
	var best float64
	var found bool
	for _, m := range amountRe.FindAllString(line, -1) {
		var v, err = strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
		if err != nil {
			continue
		}
		if v < e.MinFee {
			// Never guess below the floor. Small values on a fee line
			// are page numbers or serials.
			continue
		}
		if miscLine && v <= e.MaxMiscFee {
			continue
		}
		if v > best {
			best, found = v, true
		}
	}
	if found {
		log.WithFields(log.Fields{"fee": best, "line": strings.TrimSpace(line)}).
			Debug("registration fee matched in text")
	}
	return best, found
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
