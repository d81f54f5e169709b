// Package compose turns scraped disruption notices into post text with
// hashtag and link annotations.
package compose

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTriggers are the words after which the next capitalised word is tagged.
// Order matters: each trigger is one pass, and a capital tagged by several
// passes receives one '#' per pass.
var DefaultTriggers = []string{"between", "and", "from"}

// DefaultOperators are tagged wherever they appear as whole words.
var DefaultOperators = []string{"Northern", "Merseyrail"}

// Formatter inserts hashtags into a disruption description.
//
// The rewrite is equivalent to running, in order, one substitution pass per
// trigger that tags the first ASCII capital after every non-overlapping
// occurrence of the trigger, followed by a pass tagging whole-word operator
// names. Instead of re-scanning an evolving string, the passes record tag
// counts per byte offset of the original description and the output is built
// once. Inserted '#' bytes never form part of a trigger and are skipped by
// the capital search, so trigger and capital positions are stable across
// passes; only word boundaries for operator names depend on earlier tags.
type Formatter struct {
	triggers  []string
	operators []string
}

// NewFormatter creates a Formatter. Nil slices select the defaults.
func NewFormatter(triggers, operators []string) *Formatter {
	if triggers == nil {
		triggers = DefaultTriggers
	}
	if operators == nil {
		operators = DefaultOperators
	}
	return &Formatter{triggers: triggers, operators: operators}
}

// Format returns description with hashtags inserted.
func (f *Formatter) Format(description string) string {
	if description == "" {
		return ""
	}
	tags := make([]int, len(description)+1)

	for _, trigger := range f.triggers {
		tagAfterTrigger(description, trigger, tags)
	}
	f.tagOperators(description, tags)

	var b strings.Builder
	b.Grow(len(description) + 8)
	for i := 0; i < len(description); i++ {
		for n := 0; n < tags[i]; n++ {
			b.WriteByte('#')
		}
		b.WriteByte(description[i])
	}
	return b.String()
}

// tagAfterTrigger marks the first ASCII capital following each occurrence of
// trigger. Scanning resumes just after the tagged capital.
func tagAfterTrigger(s, trigger string, tags []int) {
	if trigger == "" {
		return
	}
	pos := 0
	for pos < len(s) {
		idx := strings.Index(s[pos:], trigger)
		if idx < 0 {
			return
		}
		capital := indexASCIIUpper(s, pos+idx+len(trigger))
		if capital < 0 {
			return
		}
		tags[capital]++
		pos = capital + 1
	}
}

// tagOperators marks operator names that stand as whole words. A '#' placed by
// an earlier pass directly before or after the name counts as a boundary.
func (f *Formatter) tagOperators(s string, tags []int) {
	prior := make([]int, len(tags))
	copy(prior, tags)

	for i := 0; i < len(s); {
		matched := 0
		for _, name := range f.operators {
			if name == "" || !strings.HasPrefix(s[i:], name) {
				continue
			}
			end := i + len(name)
			if taggedWithin(prior, i+1, end) {
				continue
			}
			if wordBoundaryBefore(s, i, prior) && wordBoundaryAfter(s, end, prior) {
				matched = len(name)
				break
			}
		}
		if matched == 0 {
			i++
			continue
		}
		tags[i]++
		i += matched
	}
}

// taggedWithin reports whether an earlier pass split the range with a '#'.
func taggedWithin(prior []int, from, to int) bool {
	for k := from; k < to; k++ {
		if prior[k] > 0 {
			return true
		}
	}
	return false
}

func wordBoundaryBefore(s string, i int, prior []int) bool {
	if prior[i] > 0 || i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, end int, prior []int) bool {
	if end >= len(s) || prior[end] > 0 {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func indexASCIIUpper(s string, from int) int {
	for i := from; i < len(s); i++ {
		if 'A' <= s[i] && s[i] <= 'Z' {
			return i
		}
	}
	return -1
}
