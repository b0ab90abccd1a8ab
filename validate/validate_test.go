package validate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deedworks/deedflow/deed"
	"github.com/deedworks/deedflow/extract"
)

func sptr(s string) *string { return &s }

func flex(s string) *extract.FlexString {
	var f = extract.FlexString(s)
	return &f
}

func TestFormatAmountPreservesIntegerForm(t *testing.T) {
	require.Equal(t, "45000", FormatAmount(45000))
	require.Equal(t, "45000.5", FormatAmount(45000.5))
	require.Equal(t, "0", FormatAmount(0))
}

func TestCleanAmount(t *testing.T) {
	require.Equal(t, "15000", *CleanAmount(sptr("Rs. 15,000/-")))
	require.Equal(t, "4500000", *CleanAmount(sptr("4500000")))
	require.Equal(t, "1200.5", *CleanAmount(sptr("1,200.50")))
	require.Nil(t, CleanAmount(sptr("not a number")))
	require.Nil(t, CleanAmount(nil))
}

func TestCleanDate(t *testing.T) {
	require.Equal(t, "2024-03-15", *CleanDate(sptr("2024-03-15")))
	require.Equal(t, "2024-03-15", *CleanDate(sptr("15-03-2024")))
	require.Equal(t, "2024-03-15", *CleanDate(sptr("15/03/2024")))
	require.Equal(t, "2024-03-15", *CleanDate(sptr("15 March 2024")))
	require.Nil(t, CleanDate(sptr("  ")))
	require.Nil(t, CleanDate(nil))

	// Unparseable dates pass through for the reviewer.
	require.Equal(t, "sometime in March", *CleanDate(sptr(" sometime in March ")))
}

func TestCleanPAN(t *testing.T) {
	require.Equal(t, "ABCDE1234F", *cleanPAN(sptr("abcde1234f")))
	require.Equal(t, "ABCDE1234F", *cleanPAN(sptr(" ABCDE 1234 F ")))
	require.Nil(t, cleanPAN(sptr("12345ABCDE")))
	require.Nil(t, cleanPAN(sptr("short")))
}

func TestCleanRecord(t *testing.T) {
	var raw = &extract.RawRecord{
		Buyers: []extract.RawParty{{
			Name:          sptr(" A Kumar "),
			AadhaarNumber: flex("1234 5678 9012"),
			PANCardNumber: sptr("abcde1234f"),
			Pincode:       flex("560001"),
			PhoneNumber:   flex("+91-99001-12233"),
		}},
		Sellers: []extract.RawParty{{
			Name:          sptr("ಕನ್ನಡ"),
			PropertyShare: flex("50%"),
		}},
		Property: extract.RawProperty{
			SaleConsideration: flex("Rs. 45,00,000"),
			StampDutyFee:      flex("250000"),
		},
		Document: extract.RawDocument{TransactionDate: sptr("15-03-2024")},
	}

	rec, err := CleanRecord(raw)
	require.NoError(t, err)

	require.Equal(t, "A Kumar", *rec.Buyers[0].Name)
	require.Equal(t, "123456789012", *rec.Buyers[0].NationalID)
	require.Equal(t, "ABCDE1234F", *rec.Buyers[0].TaxID)
	require.Equal(t, "919900112233", *rec.Buyers[0].Phone)

	require.Equal(t, "kannada", *rec.Sellers[0].Name)
	require.Equal(t, "50%", *rec.Sellers[0].Share)

	require.Equal(t, "4500000", *rec.Property.SaleConsideration)
	require.Equal(t, "250000", *rec.Property.StampDutyFee)
	require.Equal(t, "2024-03-15", *rec.Document.TransactionDate)
}

func TestCleanRecordRejectsEmptyParties(t *testing.T) {
	_, err := CleanRecord(&extract.RawRecord{})
	require.ErrorIs(t, err, deed.ErrValidation)
}

func TestSetRegistrationFeeDerivesGuidance(t *testing.T) {
	var rec deed.Record
	var fee = 45000.0

	SetRegistrationFee(&rec, &fee)
	require.Equal(t, "45000", *rec.Property.RegistrationFee)
	require.Equal(t, "4500000", *rec.Property.GuidanceValue)

	// A nil fee leaves the record untouched.
	var other deed.Record
	SetRegistrationFee(&other, nil)
	require.Nil(t, other.Property.RegistrationFee)
	require.Nil(t, other.Property.GuidanceValue)
}
