// Package format detects the kind of document handed to metricate and
// decodes it to UTF-8.
package format

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// Format represents a supported input format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// HTML indicates an HTML document or fragment.
	HTML
	// XHTML indicates an XML-serialised HTML document.
	XHTML
	// Text indicates plain text, converted as paragraphs.
	Text
)

// sniffLen is how much of the input DetectFromReader inspects.
const sniffLen = 512

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case HTML:
		return "HTML"
	case XHTML:
		return "XHTML"
	case Text:
		return "Text"
	default:
		return "Unknown"
	}
}

// Extension returns the typical file extension for the format.
func (f Format) Extension() string {
	switch f {
	case HTML:
		return ".html"
	case XHTML:
		return ".xhtml"
	case Text:
		return ".txt"
	default:
		return ""
	}
}

// Markup reports whether the format is parsed as HTML.
func (f Format) Markup() bool {
	return f == HTML || f == XHTML
}

// Detect determines file format from filename extension.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		return HTML
	case ".xhtml", ".xht":
		return XHTML
	case ".txt", ".text":
		return Text
	default:
		return Unknown
	}
}

// DetectFromMagic inspects the start of a document. Markup is recognised by
// a doctype, an <html> element or a leading tag of a common body element;
// anything else that is valid UTF-8 without NUL bytes is Text.
func DetectFromMagic(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n\uFEFF")
	if len(trimmed) == 0 {
		return Unknown
	}
	upper := strings.ToUpper(string(trimmed[:min(len(trimmed), sniffLen)]))

	switch {
	case strings.HasPrefix(upper, "<?XML"):
		if strings.Contains(upper, "<HTML") {
			return XHTML
		}
		return Unknown
	case strings.HasPrefix(upper, "<!DOCTYPE HTML"), strings.HasPrefix(upper, "<HTML"):
		return HTML
	case hasTagPrefix(upper):
		return HTML
	}

	if bytes.IndexByte(data, 0) >= 0 || !validPrefix(data) {
		return Unknown
	}
	return Text
}

var bodyTags = []string{"<!--", "<HEAD", "<BODY", "<DIV", "<P", "<SPAN", "<TABLE", "<UL", "<OL", "<H1", "<H2", "<H3", "<SECTION", "<ARTICLE", "<MAIN"}

func hasTagPrefix(upper string) bool {
	for _, tag := range bodyTags {
		if !strings.HasPrefix(upper, tag) {
			continue
		}
		if tag == "<!--" || len(upper) == len(tag) {
			return true
		}
		switch upper[len(tag)] {
		case '>', ' ', '\t', '\n', '\r', '/':
			return true
		}
	}
	return false
}

// validPrefix is utf8.Valid allowing a rune truncated at the end of data.
func validPrefix(data []byte) bool {
	if utf8.Valid(data) {
		return true
	}
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		if utf8.Valid(data[:len(data)-i]) {
			return true
		}
	}
	return false
}

// DetectFromReader sniffs the format of r. The returned reader yields the
// complete input, including the bytes inspected.
func DetectFromReader(r io.Reader) (Format, io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return Unknown, br, fmt.Errorf("sniff input: %w", err)
	}
	return DetectFromMagic(head), br, nil
}

// UTF8Reader decodes r to UTF-8. The encoding is taken from a byte order
// mark, the contentType parameter (as in a Content-Type header, may be
// empty) or a <meta> charset declaration, in that order, defaulting to
// windows-1252 for markup without a declaration that is not valid UTF-8.
func UTF8Reader(r io.Reader, contentType string) (io.Reader, error) {
	ur, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("detect charset: %w", err)
	}
	return ur, nil
}
