// Package translit converts Kannada script to a human-readable Latin
// form. English text and digits pass through unchanged, so it is safe
// to run over mixed-script fields.
package translit

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Independent vowels. Long vowels collapse to their short forms, the
// same way stripping IAST macrons would.
var vowels = map[rune]string{
	'ಅ': "a", 'ಆ': "a", 'ಇ': "i", 'ಈ': "i", 'ಉ': "u", 'ಊ': "u",
	'ಋ': "ru", 'ಎ': "e", 'ಏ': "e", 'ಐ': "ai", 'ಒ': "o", 'ಓ': "o", 'ಔ': "au",
}

// Dependent vowel signs (matras). Their presence replaces the inherent
// "a" of the preceding consonant.
var matras = map[rune]string{
	'ಾ': "a", 'ಿ': "i", 'ೀ': "i", 'ು': "u", 'ೂ': "u", 'ೃ': "ru",
	'ೆ': "e", 'ೇ': "e", 'ೈ': "ai", 'ೊ': "o", 'ೋ': "o", 'ೌ': "au",
}

// Consonants, already folded to the ASCII forms used for display
// (sh for the sibilants, plain t/d/n for the retroflex series).
var consonants = map[rune]string{
	'ಕ': "k", 'ಖ': "kh", 'ಗ': "g", 'ಘ': "gh", 'ಙ': "ng",
	'ಚ': "ch", 'ಛ': "chh", 'ಜ': "j", 'ಝ': "jh", 'ಞ': "ny",
	'ಟ': "t", 'ಠ': "th", 'ಡ': "d", 'ಢ': "dh", 'ಣ': "n",
	'ತ': "t", 'ಥ': "th", 'ದ': "d", 'ಧ': "dh", 'ನ': "n",
	'ಪ': "p", 'ಫ': "ph", 'ಬ': "b", 'ಭ': "bh", 'ಮ': "m",
	'ಯ': "y", 'ರ': "r", 'ಲ': "l", 'ವ': "v",
	'ಶ': "sh", 'ಷ': "sh", 'ಸ': "s", 'ಹ': "h", 'ಳ': "l",
}

var digits = map[rune]rune{
	'೦': '0', '೧': '1', '೨': '2', '೩': '3', '೪': '4',
	'೫': '5', '೬': '6', '೭': '7', '೮': '8', '೯': '9',
}

const (
	virama   = '್'
	anusvara = 'ಂ'
	visarga  = 'ಃ'
)

// nasalFor picks the class nasal emitted for an anusvara, based on the
// consonant that follows it.
func nasalFor(next rune) string {
	switch next {
	case 'ಕ', 'ಖ', 'ಗ', 'ಘ':
		return "ng"
	case 'ಚ', 'ಛ', 'ಜ', 'ಝ':
		return "ny"
	case 'ಪ', 'ಫ', 'ಬ', 'ಭ':
		return "m"
	case 'ಟ', 'ಠ', 'ಡ', 'ಢ', 'ತ', 'ಥ', 'ದ', 'ಧ':
		return "n"
	default:
		return "m"
	}
}

// stripMarks removes combining marks left over from text that already
// carried Latin diacritics (IAST and the like).
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// ToLatin transliterates Kannada runes in text to ASCII Latin and
// strips diacritics from whatever Latin was already present. Non-letter
// runes and other scripts pass through.
func ToLatin(text string) string {
	if text == "" {
		return text
	}

	var b strings.Builder
	var rs = []rune(text)
	var pendingA = false // a consonant was emitted and may take the inherent vowel

	var flush = func() {
		if pendingA {
			b.WriteByte('a')
			pendingA = false
		}
	}

	for i := 0; i < len(rs); i++ {
		var r = rs[i]

		if s, ok := consonants[r]; ok {
			flush()
			b.WriteString(s)
			pendingA = true
			continue
		}
		if s, ok := matras[r]; ok {
			// Replaces the inherent vowel.
			pendingA = false
			b.WriteString(s)
			continue
		}
		if r == virama {
			pendingA = false
			continue
		}
		if s, ok := vowels[r]; ok {
			flush()
			b.WriteString(s)
			continue
		}
		if r == anusvara {
			flush()
			if i+1 < len(rs) {
				b.WriteString(nasalFor(rs[i+1]))
			} else {
				b.WriteByte('m')
			}
			continue
		}
		if r == visarga {
			flush()
			b.WriteByte('h')
			continue
		}
		if d, ok := digits[r]; ok {
			flush()
			b.WriteRune(d)
			continue
		}

		// Anything else ends the syllable and passes through.
		flush()
		b.WriteRune(r)
	}
	flush()

	out, _, err := transform.String(stripMarks, b.String())
	if err != nil {
		out = b.String()
	}
	return strings.Join(strings.Fields(out), " ")
}
