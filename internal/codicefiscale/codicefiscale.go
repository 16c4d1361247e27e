// Package codicefiscale computes and validates Italian fiscal codes.
//
// The code is built from the surname, first name, birth date, sex and the
// cadastral code of the birth municipality, followed by a mod-26 check
// character. Collision handling (omocodia) is not applied.
package codicefiscale

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/erazemk/armeria/internal/textnorm"
)

var (
	ErrMissingField        = errors.New("missing required field")
	ErrInvalidDate         = errors.New("invalid birth date, expected dd/mm/yyyy")
	ErrInvalidSex          = errors.New("invalid sex, expected M or F")
	ErrUnknownMunicipality = errors.New("unknown birth municipality")
	ErrInvalidCode         = errors.New("invalid fiscal code")
)

// DateLayout is the birth date format used throughout the registry.
const DateLayout = "02/01/2006"

const monthLetters = "ABCDEHLMPRST"

// Lookup resolves a municipality name to its cadastral code. An empty code
// with a nil error means the municipality is not known.
type Lookup interface {
	CadastralCode(ctx context.Context, municipality string) (string, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, municipality string) (string, error)

func (f LookupFunc) CadastralCode(ctx context.Context, municipality string) (string, error) {
	return f(ctx, municipality)
}

// Person holds the inputs of the fiscal code.
type Person struct {
	FirstName  string
	LastName   string
	BirthDate  string
	Sex        string
	BirthPlace string
}

// Compute returns the 16 character fiscal code of p.
func Compute(ctx context.Context, lookup Lookup, p Person) (string, error) {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" ||
		strings.TrimSpace(p.BirthDate) == "" || strings.TrimSpace(p.BirthPlace) == "" {
		return "", ErrMissingField
	}

	birth, err := parseDate(p.BirthDate)
	if err != nil {
		return "", err
	}

	sex := strings.ToUpper(strings.TrimSpace(p.Sex))
	if sex != "M" && sex != "F" {
		return "", ErrInvalidSex
	}

	cadastral, err := lookup.CadastralCode(ctx, p.BirthPlace)
	if err != nil {
		return "", fmt.Errorf("looking up %q: %w", p.BirthPlace, err)
	}
	if cadastral == "" {
		return "", fmt.Errorf("%w: %s", ErrUnknownMunicipality, p.BirthPlace)
	}

	day := birth.Day()
	if sex == "F" {
		day += 40
	}

	var b strings.Builder
	b.WriteString(SurnameCode(p.LastName))
	b.WriteString(NameCode(p.FirstName))
	fmt.Fprintf(&b, "%02d", birth.Year()%100)
	b.WriteByte(monthLetters[birth.Month()-1])
	fmt.Fprintf(&b, "%02d", day)
	b.WriteString(strings.ToUpper(cadastral))

	partial := b.String()
	return partial + string(CheckChar(partial)), nil
}

// SurnameCode returns the three letters derived from a surname.
func SurnameCode(surname string) string {
	cons, vows := split(surname)
	return (cons + vows + "XXX")[:3]
}

// NameCode returns the three letters derived from a first name. With four or
// more consonants the first, third and fourth are used.
func NameCode(name string) string {
	cons, vows := split(name)
	if len(cons) >= 4 {
		return string([]byte{cons[0], cons[2], cons[3]})
	}
	return (cons + vows + "XXX")[:3]
}

// split returns the consonants and vowels of s, in order, after folding
// accents and dropping everything that is not a letter.
func split(s string) (consonants, vowels string) {
	var c, v strings.Builder
	for _, r := range strings.ToUpper(textnorm.Fold(s)) {
		switch {
		case strings.ContainsRune("AEIOU", r):
			v.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			c.WriteRune(r)
		}
	}
	return c.String(), v.String()
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "2/1/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// oddValues holds the check values of 0-9 and A-Z at odd (1-based) positions.
var oddValues = [36]int{
	1, 0, 5, 7, 9, 13, 15, 17, 19, 21,
	1, 0, 5, 7, 9, 13, 15, 17, 19, 21,
	2, 4, 18, 20, 11, 3, 6, 8, 12, 14, 16, 10, 22, 25, 24, 23,
}

func charIndex(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, true
	}
	return 0, false
}

// CheckChar returns the control character for the first 15 characters of a
// fiscal code. Characters outside 0-9 and A-Z contribute nothing.
func CheckChar(partial string) byte {
	partial = strings.ToUpper(partial)
	sum := 0
	for i := 0; i < len(partial); i++ {
		idx, ok := charIndex(partial[i])
		if !ok {
			continue
		}
		if i%2 == 0 {
			sum += oddValues[idx]
			continue
		}
		if idx < 10 {
			sum += idx
		} else {
			sum += idx - 10
		}
	}
	return byte('A' + sum%26)
}

var codePattern = regexp.MustCompile(`^[A-Z]{6}[0-9LMNPQRSTUV]{2}[ABCDEHLMPRST][0-9LMNPQRSTUV]{2}[A-Z][0-9LMNPQRSTUV]{3}[A-Z]$`)

// Validate checks the shape and the check character of code.
func Validate(code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 16 {
		return fmt.Errorf("%w: expected 16 characters, got %d", ErrInvalidCode, len(code))
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: malformed", ErrInvalidCode)
	}
	if want := CheckChar(code[:15]); code[15] != want {
		return fmt.Errorf("%w: check character %c, expected %c", ErrInvalidCode, code[15], want)
	}
	return nil
}
