// Package split segments flat text into sentence-terminated fragments.
//
// The splitter is a terminal-punctuation heuristic, not a linguistic
// sentence detector. A fragment ends immediately after one of the
// characters . ! ? : optionally followed by a single closing quotation
// mark, plus any run of trailing whitespace. The trailing whitespace is
// attached to the preceding fragment so that concatenating all fragments
// reproduces the input byte for byte.
package split

import (
	"regexp"
	"strings"
)

// sentence matches one fragment: the shortest run ending in terminal
// punctuation, an optional closing quote (straight, right double, or
// right single curly), and any whitespace that follows.
var sentence = regexp.MustCompile(`(?s).*?[.!?:]['"”’]?\s*`)

// Sentences splits text into an ordered sequence of sentence-terminated
// fragments. It returns ok == false without splitting when text is empty
// or whitespace-only; the caller must preserve the original text
// verbatim in that case.
//
// Known limitation: abbreviation periods ("Mr.") terminate a fragment
// like any other period.
func Sentences(text string) (fragments []string, ok bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	matches := sentence.FindAllString(text, -1)

	fragments = make([]string, 0, len(matches)+1)
	consumed := 0
	for _, m := range matches {
		if m == "" {
			continue
		}
		fragments = append(fragments, m)
		consumed += len(m)
	}

	// Trailing prose with no terminator is still a fragment.
	if consumed < len(text) {
		fragments = append(fragments, text[consumed:])
	}

	return fragments, true
}
