package tweet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLengthCountsURLsAsFixedWidth(t *testing.T) {
	assert.Equal(t, 5, Length("hello"))
	assert.Equal(t, 4, Length("çağı"))

	long := "see https://example.com/" + strings.Repeat("a", 100)
	assert.Equal(t, 4+URLLength, Length(long))

	short := "x http://a.b"
	assert.Equal(t, 2+URLLength, Length(short))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("fine", MaxLength))
	assert.ErrorIs(t, Validate("   ", MaxLength), ErrEmpty)
	assert.ErrorIs(t, Validate(strings.Repeat("a", 281), MaxLength), ErrTooLong)
	assert.ErrorIs(t, Validate(strings.Repeat("a", 2001), MaxLength), ErrTooLarge)
	assert.ErrorIs(t, Validate("click javascript:alert(1)", MaxLength), ErrUnsafe)
	assert.ErrorIs(t, Validate("<SCRIPT>x</SCRIPT>", MaxLength), ErrUnsafe)

	// a long URL still fits because it is weighted
	text := strings.Repeat("a", 250) + " https://example.com/" + strings.Repeat("b", 200)
	assert.NoError(t, Validate(text, MaxLength))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "bold move", Sanitize(`"<b>bold</b> move"`))
	assert.Equal(t, "alert(1)", Sanitize("javascript:alert(1)"))
	assert.Equal(t, "merhaba dünya", Sanitize("  “merhaba dünya”  "))
	assert.Equal(t, `he said "hi"`, Sanitize(`he said "hi"`))
}

func TestStripQuotes(t *testing.T) {
	assert.Equal(t, "x", StripQuotes(`"x"`))
	assert.Equal(t, `"`, StripQuotes(`"`))
	assert.Equal(t, `"x'`, StripQuotes(`"x'`))
	assert.Equal(t, "", StripQuotes(`""`))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))

	out := Truncate("one two three four five", 14)
	assert.Equal(t, "one two three…", out)
	assert.LessOrEqual(t, Length(out), 14)

	out = Truncate("First sentence. Second one is long", 20)
	assert.Equal(t, "First sentence.", out)

	assert.Equal(t, "", Truncate("supercalifragilistic", 5))

	text := strings.Repeat("kelime ", 60)
	out = Truncate(text, MaxLength)
	assert.LessOrEqual(t, Length(out), MaxLength)
	assert.True(t, strings.HasSuffix(out, "…"))
}
