package fees

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromTextFindsFeeOnLabelLine(t *testing.T) {
	var e = NewExtractor(100, 3000)
	var text = `--- Page 2 ---
Registration Fee   Rs. 15,000/-
Print Fee          Rs. 50/-
Total              Rs. 15,050/-`

	fee, ok := e.FromText(text)
	require.True(t, ok)
	require.Equal(t, 15000.0, fee)
}

func TestFromTextLabelOnOwnLine(t *testing.T) {
	var e = NewExtractor(100, 3000)
	var text = "ನೋಂದಣಿ ಶುಲ್ಕ\n2,500.00\nಇತರೆ 120"

	fee, ok := e.FromText(text)
	require.True(t, ok)
	require.Equal(t, 2500.0, fee)
}

func TestFromTextNeverBelowFloor(t *testing.T) {
	var e = NewExtractor(100, 3000)
	_, ok := e.FromText("registration fee 40")
	require.False(t, ok)
}

func TestFromTextIgnoresMiscAndTotalRows(t *testing.T) {
	var e = NewExtractor(100, 3000)
	_, ok := e.FromText("misc charges 2000\ntotal 2000")
	require.False(t, ok)
}

func TestFromTextMiscBoundGovernsRejectLines(t *testing.T) {
	var text = "registration fee / misc 50,000"

	fee, ok := NewExtractor(100, 3000).FromText(text)
	require.True(t, ok)
	require.Equal(t, 50000.0, fee)

	// With the bound raised past the amount, the same line is noise.
	_, ok = NewExtractor(100, 3000000).FromText(text)
	require.False(t, ok)
}

func TestFromTextMiscBoundOnAdjacentLine(t *testing.T) {
	var e = NewExtractor(100, 3000)

	_, ok := e.FromText("ನೋಂದಣಿ ಶುಲ್ಕ\nitare 120")
	require.False(t, ok)

	fee, ok := e.FromText("ನೋಂದಣಿ ಶುಲ್ಕ\nitare 45,000")
	require.True(t, ok)
	require.Equal(t, 45000.0, fee)
}

func TestFromTextAbsenceIsNotAnError(t *testing.T) {
	var e = NewExtractor(100, 3000)
	_, ok := e.FromText("this deed mentions no fees at all")
	require.False(t, ok)
}

func TestFromTextIgnoresPageNumbersOnFeeLine(t *testing.T) {
	var e = NewExtractor(100, 3000)
	fee, ok := e.FromText("registration fee 3 of amount 1200")
	require.True(t, ok)
	require.Equal(t, 1200.0, fee)
}
