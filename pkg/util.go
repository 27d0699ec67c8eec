package pkg

import (
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
	"unsafe"
)

// BytesToString converts bytes slice to a string without extra allocation
func BytesToString(buf []byte) string {
	return *(*string)(unsafe.Pointer(&buf))
}

// PathExists returns whether the given file or directory exists
func PathExists(path string, isDir bool) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if (isDir && stat.IsDir()) || (!isDir && !stat.IsDir()) {
		return true, nil
	}
	return false, err
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// ClipText collapses inner whitespace, trims the input and cuts it
// down to maxLen characters. Used for all free-text fields coming
// from CSV imports and JSON payloads.
func ClipText(v string, maxLen int) string {
	txt := whitespaceRe.ReplaceAllString(strings.TrimSpace(v), " ")
	if utf8.RuneCountInString(txt) <= maxLen {
		return txt
	}
	// cut on a rune boundary, not mid-sequence
	return string([]rune(txt)[:maxLen])
}
