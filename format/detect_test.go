package format

import (
	"io"
	"strings"
	"testing"
)

func TestFormat_String(t *testing.T) {
	tests := []struct {
		format Format
		want   string
		ext    string
	}{
		{HTML, "HTML", ".html"},
		{XHTML, "XHTML", ".xhtml"},
		{Text, "Text", ".txt"},
		{Unknown, "Unknown", ""},
		{Format(99), "Unknown", ""},
	}

	for _, tt := range tests {
		if got := tt.format.String(); got != tt.want {
			t.Errorf("Format(%d).String() = %q, want %q", tt.format, got, tt.want)
		}
		if got := tt.format.Extension(); got != tt.ext {
			t.Errorf("Format(%d).Extension() = %q, want %q", tt.format, got, tt.ext)
		}
	}
	if !HTML.Markup() || !XHTML.Markup() || Text.Markup() {
		t.Error("Markup() misreports")
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		filename string
		want     Format
	}{
		{"page.html", HTML},
		{"PAGE.HTM", HTML},
		{"book/ch1.xhtml", XHTML},
		{"notes.txt", Text},
		{"report.pdf", Unknown},
		{"noext", Unknown},
	}
	for _, tt := range tests {
		if got := Detect(tt.filename); got != tt.want {
			t.Errorf("Detect(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestDetectFromMagic(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Format
	}{
		{"doctype", "<!DOCTYPE html><html></html>", HTML},
		{"doctype lower", "\n  <!doctype html>", HTML},
		{"byte order mark", "\uFEFF<!DOCTYPE html>", HTML},
		{"html tag", "<html lang=en>", HTML},
		{"fragment", "<p>5 feet</p>", HTML},
		{"comment", "<!-- saved page -->", HTML},
		{"unlisted tag", "<pre>x</pre>", Text},
		{"xhtml", `<?xml version="1.0"?><html xmlns="http://www.w3.org/1999/xhtml">`, XHTML},
		{"plain xml", `<?xml version="1.0"?><feed/>`, Unknown},
		{"text", "We walked 3 miles.", Text},
		{"binary", "%PDF-1.7\x00\x01", Unknown},
		{"empty", "   ", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFromMagic([]byte(tt.data)); got != tt.want {
				t.Errorf("DetectFromMagic(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestDetectFromReader_KeepsInput(t *testing.T) {
	input := "<html><body>" + strings.Repeat("30 feet ", 200) + "</body></html>"
	f, r, err := DetectFromReader(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DetectFromReader() failed: %v", err)
	}
	if f != HTML {
		t.Errorf("format = %v, want HTML", f)
	}
	got, _ := io.ReadAll(r)
	if string(got) != input {
		t.Error("returned reader lost sniffed bytes")
	}
}

func TestDetectFromReader_Short(t *testing.T) {
	f, _, err := DetectFromReader(strings.NewReader("5 lbs"))
	if err != nil || f != Text {
		t.Errorf("DetectFromReader() = %v, %v", f, err)
	}
}

func TestUTF8Reader(t *testing.T) {
	// 0xB0 is the degree sign in windows-1252.
	latin := "<html><head><meta charset=\"windows-1252\"></head><body>98.6\xb0F</body></html>"
	r, err := UTF8Reader(strings.NewReader(latin), "")
	if err != nil {
		t.Fatalf("UTF8Reader() failed: %v", err)
	}
	got, _ := io.ReadAll(r)
	if !strings.Contains(string(got), "98.6°F") {
		t.Errorf("decoded = %q", got)
	}

	r, err = UTF8Reader(strings.NewReader("98.6\xb0F"), "text/plain; charset=iso-8859-1")
	if err != nil {
		t.Fatalf("UTF8Reader() failed: %v", err)
	}
	got, _ = io.ReadAll(r)
	if string(got) != "98.6°F" {
		t.Errorf("decoded = %q", got)
	}
}
