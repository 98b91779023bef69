// Package tweet holds the platform's text rules: weighted length, validation,
// sanitizing and truncation.
package tweet

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxLength is the platform character limit
	MaxLength = 280
	// URLLength is what every link counts as after t.co wrapping
	URLLength = 23
	// MaxRawLength caps operator input before any measuring
	MaxRawLength = 2000
)

var (
	ErrEmpty    = errors.New("text is empty")
	ErrTooLong  = errors.New("text exceeds the character limit")
	ErrUnsafe   = errors.New("text contains script content")
	ErrTooLarge = fmt.Errorf("text exceeds %d characters", MaxRawLength)
)

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s]+`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	unsafePattern = regexp.MustCompile(`(?i)<script|javascript:|data:`)
	schemePattern = regexp.MustCompile(`(?i)javascript:|data:`)
)

// Length returns the weighted length of text: runes, with each URL counted
// as URLLength regardless of its real size.
func Length(text string) int {
	n := utf8.RuneCountInString(text)
	for _, u := range urlPattern.FindAllString(text, -1) {
		n += URLLength - utf8.RuneCountInString(u)
	}
	return n
}

// Validate checks text against the platform rules
func Validate(text string, max int) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	if utf8.RuneCountInString(text) > MaxRawLength {
		return ErrTooLarge
	}
	if unsafePattern.MatchString(text) {
		return ErrUnsafe
	}
	if n := Length(text); n > max {
		return fmt.Errorf("%w: %d > %d", ErrTooLong, n, max)
	}
	return nil
}

// Sanitize strips markup, script schemes, surrounding quotes and excess
// whitespace. It is applied to both operator input and model output.
func Sanitize(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	text = schemePattern.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	text = StripQuotes(text)
	return strings.TrimSpace(text)
}

var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'“':  '”',
	'‘':  '’',
	'«':  '»',
}

// StripQuotes removes one pair of matching quotes wrapping the whole text
func StripQuotes(text string) string {
	first, size := utf8.DecodeRuneInString(text)
	closing, ok := quotePairs[first]
	if !ok || len(text) <= size {
		return text
	}
	last, lastSize := utf8.DecodeLastRuneInString(text)
	if last != closing || len(text) < size+lastSize {
		return text
	}
	return text[size : len(text)-lastSize]
}

const ellipsis = "…"

// Truncate shortens text to fit max, cutting at the last word boundary and
// appending an ellipsis. URLs are never split. Returns "" when no word fits.
func Truncate(text string, max int) string {
	if Length(text) <= max {
		return text
	}

	words := strings.Fields(text)
	for len(words) > 0 {
		words = words[:len(words)-1]
		candidate := strings.TrimRightFunc(strings.Join(words, " "), func(r rune) bool {
			return unicode.IsPunct(r) && r != '?' && r != '!' && r != '.'
		})
		if candidate == "" {
			break
		}
		if !strings.HasSuffix(candidate, ".") {
			candidate += ellipsis
		}
		if Length(candidate) <= max {
			return candidate
		}
	}
	return ""
}
