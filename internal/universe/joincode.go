package universe

import (
	"crypto/rand"
	mrand "math/rand/v2"
	"strings"
	"unicode"
)

const (
	// JoinCodeLength is the number of significant characters in a join code.
	JoinCodeLength = 6

	// Consonants without L and no digits, so codes never spell words and
	// never mix up 0/O or 1/I/L when read aloud.
	joinCodeAlphabet = "BCDFGHJKMNPQRSTVWXYZ"
)

func generateJoinCode() string {
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		for i := range buf {
			buf[i] = joinCodeAlphabet[mrand.IntN(len(joinCodeAlphabet))]
		}
		return string(buf)
	}
	for i := range buf {
		buf[i] = joinCodeAlphabet[int(buf[i])%len(joinCodeAlphabet)]
	}
	return string(buf)
}

// NormalizeJoinCode turns a code as typed by a person ("bcd-fgh") into its
// lookup form ("BCDFGH").
func NormalizeJoinCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, code)
}

// FormatJoinCode groups a code for display, e.g. "BCDFGH" -> "BCD-FGH".
func FormatJoinCode(code string) string {
	code = NormalizeJoinCode(code)
	if len(code) < 4 {
		return code
	}
	half := (len(code) + 1) / 2
	return code[:half] + "-" + code[half:]
}

// ValidJoinCode reports whether code, once normalized, could have been
// issued by the server.
func ValidJoinCode(code string) bool {
	code = NormalizeJoinCode(code)
	if len(code) != JoinCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(joinCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
