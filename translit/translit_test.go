package translit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToLatinKannada(t *testing.T) {
	require.Equal(t, "kannada", ToLatin("ಕನ್ನಡ"))
	require.Equal(t, "karnataka", ToLatin("ಕರ್ನಾಟಕ"))
}

func TestToLatinPassesThroughEnglish(t *testing.T) {
	require.Equal(t, "Main Road, Bengaluru 560001", ToLatin("Main Road, Bengaluru 560001"))
	require.Equal(t, "", ToLatin(""))
}

func TestToLatinMixedScript(t *testing.T) {
	var got = ToLatin("ಕನ್ನಡ Road 12")
	require.Equal(t, "kannada Road 12", got)
}

func TestToLatinDigits(t *testing.T) {
	require.Equal(t, "560001", ToLatin("೫೬೦೦೦೧"))
}

func TestToLatinStripsDiacritics(t *testing.T) {
	require.Equal(t, "Bengaluru", ToLatin("Bengalūru"))
}

func TestToLatinAnusvara(t *testing.T) {
	// Labial class nasal before ಪ.
	require.Equal(t, "sampa", ToLatin("ಸಂಪ"))
}

func TestToLatinCollapsesWhitespace(t *testing.T) {
	require.Equal(t, "a b", ToLatin("a \n  b"))
}
