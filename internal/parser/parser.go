// Package parser turns raw input lines into immutable Command records.
package parser

import "strings"

const whitespace = " \n\r\t\f\v"

// Trim removes leading and trailing whitespace.
func Trim(line string) string {
	return strings.Trim(line, whitespace)
}

// IsBackground reports whether the line ends with '&', ignoring trailing whitespace.
func IsBackground(line string) bool {
	return strings.HasSuffix(strings.TrimRight(line, whitespace), "&")
}

// StripBackground removes one trailing '&' and the whitespace around it.
// Lines without the marker come back trimmed on the right.
func StripBackground(line string) string {
	s := strings.TrimRight(line, whitespace)
	if !strings.HasSuffix(s, "&") {
		return s
	}
	return strings.TrimRight(strings.TrimSuffix(s, "&"), whitespace)
}

// Tokenize splits on whitespace runs. There is no quoting or escaping.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// CutFields returns the text that follows the first n whitespace-delimited
// fields of line, trimmed. Inner spacing of the remainder is preserved.
func CutFields(line string, n int) string {
	s := strings.TrimLeft(line, whitespace)
	for i := 0; i < n; i++ {
		end := strings.IndexAny(s, whitespace)
		if end < 0 {
			return ""
		}
		s = strings.TrimLeft(s[end:], whitespace)
	}
	return Trim(s)
}
