package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexString decodes a JSON value that should be a string but may
// arrive as a number. Models are told to emit strings for monetary
// fields and routinely emit bare numbers anyway.
type FlexString string

func (f *FlexString) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", raw)
	}
	*f = FlexString(n.String())
	return nil
}

// FlexFloat decodes a JSON value that should be a number but may arrive
// as a numeric string, with or without separators.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
		if s == "" {
			return nil
		}
		var v, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("expected numeric string, got %q", s)
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// RawParty is one party as the model emits it.
type RawParty struct {
	Name                 *string     `json:"name"`
	Gender               *string     `json:"gender"`
	FatherName           *string     `json:"father_name"`
	DateOfBirth          *string     `json:"date_of_birth"`
	AadhaarNumber        *FlexString `json:"aadhaar_number"`
	PANCardNumber        *string     `json:"pan_card_number"`
	Address              *string     `json:"address"`
	Pincode              *FlexString `json:"pincode"`
	State                *string     `json:"state"`
	PhoneNumber          *FlexString `json:"phone_number"`
	SecondaryPhoneNumber *FlexString `json:"secondary_phone_number"`
	Email                *string     `json:"email"`
	PropertyShare        *FlexString `json:"property_share"`
}

// RawProperty is the property block as the model emits it.
type RawProperty struct {
	ScheduleBArea     *FlexFloat  `json:"schedule_b_area"`
	ScheduleCName     *string     `json:"schedule_c_property_name"`
	ScheduleCAddress  *string     `json:"schedule_c_property_address"`
	ScheduleCArea     *FlexFloat  `json:"schedule_c_property_area"`
	PaidInCashMode    *FlexString `json:"paid_in_cash_mode"`
	Pincode           *FlexString `json:"pincode"`
	State             *string     `json:"state"`
	SaleConsideration *FlexString `json:"sale_consideration"`
	StampDutyFee      *FlexString `json:"stamp_duty_fee"`
	RegistrationFee   *FlexString `json:"registration_fee"`
}

// RawDocument is the document block as the model emits it.
type RawDocument struct {
	TransactionDate    *string `json:"transaction_date"`
	RegistrationOffice *string `json:"registration_office"`
}

// RawRecord is the model's whole answer, prior to validation and
// cleaning.
type RawRecord struct {
	Buyers            []RawParty  `json:"buyer_details"`
	Sellers           []RawParty  `json:"seller_details"`
	ConfirmingParties []RawParty  `json:"confirming_party_details"`
	Property          RawProperty `json:"property_details"`
	Document          RawDocument `json:"document_details"`
}

// DecodeRecord parses the model's JSON answer, tolerating a markdown
// code fence around it.
func DecodeRecord(raw []byte) (*RawRecord, error) {
	raw = stripFence(raw)
	var rec RawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding extraction response: %w", err)
	}
	return &rec, nil
}

func stripFence(raw []byte) []byte {
	var s = strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return raw
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}
