package helpers

import (
	"bytes"
	"path"
	"strings"
	"unicode/utf8"
)

// sniffLen bounds how much content IsBinary inspects.
const sniffLen = 8192

var mediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".bmp": true, ".heic": true, ".tif": true, ".tiff": true,
	".mp4": true, ".mov": true, ".pdf": true, ".zip": true,
}

// IsBinary reports whether a repository file should not be printed as text.
// Known media extensions are binary; otherwise the first bytes are checked
// for NUL, invalid UTF-8 or a high share of control characters.
func IsBinary(name string, content []byte) bool {
	if mediaExtensions[strings.ToLower(path.Ext(name))] {
		return true
	}
	if len(content) == 0 {
		return false
	}

	head := content
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}

	// A rune cut at the sniff boundary is not evidence.
	valid := head
	if len(head) < len(content) {
		for i := 0; i < utf8.UTFMax-1 && len(valid) > 0 && !utf8.Valid(valid); i++ {
			valid = valid[:len(valid)-1]
		}
	}
	if !utf8.Valid(valid) {
		return true
	}

	control := 0
	for _, b := range head {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	return control*10 > len(head)*3
}
