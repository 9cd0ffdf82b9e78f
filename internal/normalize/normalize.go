// Package normalize turns raw post text into a normalized string suitable for
// vectorization. The pipeline is a fixed, ordered list of transformations;
// order matters because later steps operate on the output of earlier ones.
package normalize

import (
	"regexp"
	"strings"
)

var (
	urlPattern      = regexp.MustCompile(`http\S+`)
	hashtagPattern  = regexp.MustCompile(`#`)
	mentionPattern  = regexp.MustCompile(`@\w*`)
	reservedPattern = regexp.MustCompile(`^(RT|FAV)`)
	emojiPattern    = regexp.MustCompile(`[\x{2600}-\x{27BF}]|[\x{1F300}-\x{1F64F}]|[\x{1F680}-\x{1F6FF}]`)
	smileyPattern   = regexp.MustCompile(`(?i)(?:X|:|;|=)-?(?:\)|\(|O|D|P|S)+`)
	numberPattern   = regexp.MustCompile(`(^|\s)(-?\d+(?:\.\d)*|\d+)`)
	// The )-/ range covers )*+,-./ as a class; runs absorb trailing spaces.
	punctPattern = regexp.MustCompile(`[:()-/,.;?!&$]+ *`)
)

var steps = []func(string) string{
	stripURLs,
	stripHashtagMarkers,
	stripMentions,
	stripReservedWords,
	stripEmojis,
	stripSmileys,
	stripNumbers,
	asciiLowercase,
	collapsePunctuation,
}

// Normalize applies every transformation step in declared order. It is pure
// and deterministic. The result may contain extra internal whitespace;
// trimming is the caller's responsibility.
func Normalize(raw string) string {
	for _, step := range steps {
		raw = step(raw)
	}
	return raw
}

func stripURLs(s string) string {
	return urlPattern.ReplaceAllString(s, "")
}

// stripHashtagMarkers removes the # symbol but keeps the tag's text.
func stripHashtagMarkers(s string) string {
	return hashtagPattern.ReplaceAllString(s, "")
}

func stripMentions(s string) string {
	return mentionPattern.ReplaceAllString(s, "")
}

// stripReservedWords removes a leading RT or FAV marker at string start.
func stripReservedWords(s string) string {
	return reservedPattern.ReplaceAllString(s, "")
}

func stripEmojis(s string) string {
	return emojiPattern.ReplaceAllString(s, "")
}

func stripSmileys(s string) string {
	return smileyPattern.ReplaceAllString(s, "")
}

// stripNumbers drops a number token, keeping only the whitespace that led it.
func stripNumbers(s string) string {
	return numberPattern.ReplaceAllString(s, "$1")
}

// asciiLowercase drops every rune outside 7-bit ASCII and lowercases the rest.
func asciiLowercase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

func collapsePunctuation(s string) string {
	return punctPattern.ReplaceAllString(s, " ")
}
