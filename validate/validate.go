// Package validate turns a raw model answer into a clean, persistable
// record: amounts normalized to integer-preserving strings, dates to
// YYYY-MM-DD, Kannada text transliterated, and junk values dropped.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/deedworks/deedflow/deed"
	"github.com/deedworks/deedflow/extract"
	"github.com/deedworks/deedflow/translit"
)

// FormatAmount renders a monetary value without losing integer form:
// 45000 stays "45000", 45000.5 stays "45000.5".
func FormatAmount(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CleanAmount normalizes a monetary string: currency symbols, rupee
// words, separators, and trailing "/-" are stripped. Nil when nothing
// numeric remains.
func CleanAmount(s *string) *string {
	if s == nil {
		return nil
	}
	var m = amountToken(*s)
	if m == "" {
		return nil
	}
	var v, err = strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	var out = FormatAmount(v)
	return &out
}

func amountToken(s string) string {
	var b strings.Builder
	var seenDigit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			b.WriteRune(r)
		case r == '.' && seenDigit:
			b.WriteRune(r)
		case r == ',':
			// Thousands separator.
		case seenDigit:
			return b.String()
		}
	}
	return b.String()
}

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2006/01/02",
	"2 January 2006",
	"2nd January 2006",
	"January 2, 2006",
	"02 Jan 2006",
}

// CleanDate normalizes a date to YYYY-MM-DD. Unparseable dates pass
// through trimmed rather than being discarded; the original string is
// still useful to a reviewer.
func CleanDate(s *string) *string {
	if s == nil {
		return nil
	}
	var trimmed = strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	var cleaned = strings.NewReplacer("st ", " ", "nd ", " ", "rd ", " ", "th ", " ").Replace(trimmed)
	for _, layout := range dateLayouts {
		for _, candidate := range []string{trimmed, cleaned} {
			if t, err := time.Parse(layout, candidate); err == nil {
				var out = t.Format("2006-01-02")
				return &out
			}
		}
	}
	return &trimmed
}

// cleanText trims, transliterates Kannada, and drops empties and the
// literal "null" the model sometimes emits as a string.
func cleanText(s *string) *string {
	if s == nil {
		return nil
	}
	var out = translit.ToLatin(strings.TrimSpace(*s))
	if out == "" || strings.EqualFold(out, "null") || strings.EqualFold(out, "none") {
		return nil
	}
	return &out
}

// cleanDigits keeps only digits, for pincode/Aadhaar/phone fields. Nil
// unless the result has at least min digits.
func cleanDigits(s *string, min int) *string {
	if s == nil {
		return nil
	}
	var b strings.Builder
	for _, r := range *s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < min {
		return nil
	}
	var out = b.String()
	return &out
}

func flexText(f *extract.FlexString) *string {
	if f == nil {
		return nil
	}
	var s = string(*f)
	return &s
}

func cleanParty(p extract.RawParty, withShare bool) deed.Party {
	var out = deed.Party{
		Name:           cleanText(p.Name),
		Gender:         cleanText(p.Gender),
		FatherName:     cleanText(p.FatherName),
		DateOfBirth:    CleanDate(p.DateOfBirth),
		NationalID:     cleanDigits(flexText(p.AadhaarNumber), 12),
		TaxID:          cleanPAN(p.PANCardNumber),
		Address:        cleanText(p.Address),
		Pincode:        cleanDigits(flexText(p.Pincode), 6),
		State:          cleanText(p.State),
		Phone:          cleanDigits(flexText(p.PhoneNumber), 10),
		SecondaryPhone: cleanDigits(flexText(p.SecondaryPhoneNumber), 10),
		Email:          cleanText(p.Email),
	}
	if withShare {
		out.Share = cleanText(flexText(p.PropertyShare))
	}
	return out
}

// cleanPAN uppercases a PAN and requires the 10-character layout,
// five letters, four digits, one letter.
func cleanPAN(s *string) *string {
	if s == nil {
		return nil
	}
	var pan = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(*s), " ", ""))
	if len(pan) != 10 {
		return nil
	}
	for i, r := range pan {
		var isLetter = r >= 'A' && r <= 'Z'
		var isDigit = r >= '0' && r <= '9'
		if i < 5 || i == 9 {
			if !isLetter {
				return nil
			}
		} else if !isDigit {
			return nil
		}
	}
	return &pan
}

func floatPtr(f *extract.FlexFloat) *float64 {
	if f == nil {
		return nil
	}
	var v = float64(*f)
	return &v
}

// CleanRecord validates and cleans a raw model answer. A record naming
// neither buyers nor sellers is rejected as a validation failure.
func CleanRecord(raw *extract.RawRecord) (*deed.Record, error) {
	var rec = deed.Record{
		Document: deed.DocumentDetails{
			TransactionDate:    CleanDate(raw.Document.TransactionDate),
			RegistrationOffice: cleanText(raw.Document.RegistrationOffice),
		},
		Property: deed.PropertyDetails{
			ScheduleBArea:     floatPtr(raw.Property.ScheduleBArea),
			ScheduleCName:     cleanText(raw.Property.ScheduleCName),
			ScheduleCAddress:  cleanText(raw.Property.ScheduleCAddress),
			ScheduleCArea:     floatPtr(raw.Property.ScheduleCArea),
			Pincode:           cleanDigits(flexText(raw.Property.Pincode), 6),
			State:             cleanText(raw.Property.State),
			SaleConsideration: CleanAmount(flexText(raw.Property.SaleConsideration)),
			StampDutyFee:      CleanAmount(flexText(raw.Property.StampDutyFee)),
			RegistrationFee:   CleanAmount(flexText(raw.Property.RegistrationFee)),
			CashPaymentMode:   CleanAmount(flexText(raw.Property.PaidInCashMode)),
		},
	}

	for _, p := range raw.Buyers {
		rec.Buyers = append(rec.Buyers, cleanParty(p, false))
	}
	for _, p := range raw.Sellers {
		rec.Sellers = append(rec.Sellers, cleanParty(p, true))
	}
	for _, p := range raw.ConfirmingParties {
		rec.ConfirmingParties = append(rec.ConfirmingParties, cleanParty(p, false))
	}

	if len(rec.Buyers) == 0 && len(rec.Sellers) == 0 {
		return nil, fmt.Errorf("%w: record names no buyers and no sellers", deed.ErrValidation)
	}
	return &rec, nil
}

// SetRegistrationFee installs the arbitrated fee on a record and
// derives the guidance value from it. The Karnataka registration fee is
// 1% of the guidance value, so the guidance value is fee times 100.
func SetRegistrationFee(rec *deed.Record, fee *float64) {
	if fee == nil {
		return
	}
	var feeStr = FormatAmount(*fee)
	rec.Property.RegistrationFee = &feeStr

	var guidance = FormatAmount(*fee * 100)
	rec.Property.GuidanceValue = &guidance
}
