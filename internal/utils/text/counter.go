// Package text provides byte- and rune-level helpers for building post text.
package text

import "unicode/utf8"

// CountRunes counts the number of Unicode characters (runes) in the given text.
// Post length limits on the social network are expressed in characters, so
// multi-byte text such as "Crewe–Derby" must not be measured with len().
//
//	CountRunes("hello")        // 5
//	CountRunes("Crewe–Derby")  // 11
//	CountRunes("")             // 0
func CountRunes(text string) int {
	return utf8.RuneCountInString(text)
}

// TruncateRunes shortens text to at most limit runes, replacing the tail with
// suffix when anything was cut. The suffix counts towards the limit.
func TruncateRunes(text string, limit int, suffix string) string {
	if CountRunes(text) <= limit {
		return text
	}
	keep := limit - CountRunes(suffix)
	if keep <= 0 {
		return string([]rune(suffix)[:limit])
	}
	return string([]rune(text)[:keep]) + suffix
}
