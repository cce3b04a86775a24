// Package metricate provides a fluent API for converting imperial unit
// phrases in HTML documents into annotated metric values.
//
// Basic usage:
//
//	out, warnings, err := metricate.Open("page.html").HTML()
//	if err != nil {
//	    // handle error
//	}
//	if len(warnings) > 0 {
//	    log.Println("Warnings:", metricate.FormatWarnings(warnings))
//	}
//
// With options:
//
//	out, _, err := metricate.Open("page.html").
//	    Smart().
//	    Units("miles", "feet", "feet-range").
//	    HTML()
//
// Each annotation keeps the original phrase, so a converted page can be
// restored with Revert. For long-lived documents that change over time, see
// the session package.
package metricate

import (
	"bytes"
	"io"
	"strings"

	"github.com/tsawler/metricate/engine"
	"github.com/tsawler/metricate/htmldoc"
)

// Warning describes a non-fatal problem recovered from during conversion.
type Warning = engine.Warning

// Open returns a Converter for an HTML or plain text file. Nothing is read
// until a terminal operation such as HTML is called.
//
// Example:
//
//	out, warnings, err := metricate.Open("page.html").HTML()
func Open(filename string) *Converter {
	return &Converter{
		filename: filename,
		options:  defaultOptions(),
	}
}

// FromReader returns a Converter for the content of r, which is read in
// full immediately.
//
// Example:
//
//	out, _, err := metricate.FromReader(resp.Body).ContentType(resp.Header.Get("Content-Type")).HTML()
func FromReader(r io.Reader) *Converter {
	c := &Converter{options: defaultOptions()}
	data, err := io.ReadAll(r)
	if err != nil {
		c.err = err
		return c
	}
	c.data = data
	c.hasData = true
	return c
}

// FromString returns a Converter for an HTML string.
func FromString(s string) *Converter {
	return FromReader(strings.NewReader(s))
}

// FromDocument returns a Converter operating on an existing document.
// Terminal operations mutate doc in place.
func FromDocument(doc *htmldoc.Document) *Converter {
	return &Converter{
		doc:     doc,
		options: defaultOptions(),
	}
}

// Must is a helper that wraps a call to a function returning (T, error)
// and panics if the error is non-nil. It is intended for use in scripts
// or tests where error handling would be cumbersome.
//
// Example:
//
//	doc := metricate.Must(htmldoc.Open("page.html"))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// MustHTML is a helper that wraps a call to HTML, Text or Revert and panics
// if the error is non-nil. It discards warnings and returns just the value.
//
// Example:
//
//	out := metricate.MustHTML(metricate.FromString(page).HTML())
func MustHTML[T any](val T, _ []Warning, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}

// FormatWarnings joins warnings into one line each.
func FormatWarnings(warnings []Warning) string {
	var buf bytes.Buffer
	for i, w := range warnings {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(w.String())
	}
	return buf.String()
}
