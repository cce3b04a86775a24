package htmldoc

import (
	"errors"
	"testing"

	"golang.org/x/net/html"
)

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Parse(s)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	return doc
}

func TestRecordsNeedObserver(t *testing.T) {
	doc := mustParse(t, "<p>a</p>")
	if err := doc.AppendChild(doc.Body(), NewText("b")); err != nil {
		t.Fatal(err)
	}
	if doc.Pending() != 0 {
		t.Errorf("Pending() = %d without observers", doc.Pending())
	}
}

func TestObserveFlush(t *testing.T) {
	doc := mustParse(t, "<p>a</p>")
	var batches [][]Mutation
	cancel := doc.Observe(func(ms []Mutation) { batches = append(batches, ms) })

	body := doc.Body()
	first := NewText("one")
	second := NewText("two")
	if err := doc.AppendChild(body, first); err != nil {
		t.Fatal(err)
	}
	if err := doc.InsertBefore(body, second, first); err != nil {
		t.Fatal(err)
	}
	if doc.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", doc.Pending())
	}

	if n := doc.Flush(); n != 1 {
		t.Errorf("Flush() = %d, want 1", n)
	}
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batches = %v", batches)
	}
	if batches[0][0].Added[0] != first || batches[0][1].Added[0] != second {
		t.Error("records delivered out of order")
	}
	if batches[0][0].Target != body {
		t.Error("record target is not the parent")
	}
	if doc.Flush() != 0 {
		t.Error("second Flush() delivered again")
	}

	cancel()
	_ = doc.RemoveChild(body, first)
	if doc.Pending() != 0 {
		t.Error("records queued after the observer was cancelled")
	}
}

func TestFlush_ObserverEdits(t *testing.T) {
	doc := mustParse(t, "<p>a</p>")
	body := doc.Body()
	var seen int
	doc.Observe(func(ms []Mutation) {
		seen += len(ms)
		// A nested flush is a no-op; the edit is delivered next round.
		if doc.Flush() != 0 {
			t.Error("nested Flush() delivered")
		}
		if seen == 1 {
			_ = doc.AppendChild(body, NewText("echo"))
		}
	})

	_ = doc.AppendChild(body, NewText("x"))
	if n := doc.Flush(); n != 2 {
		t.Errorf("Flush() = %d, want 2", n)
	}
	if seen != 2 {
		t.Errorf("seen = %d, want 2", seen)
	}
}

func TestFlush_RoundCap(t *testing.T) {
	doc := mustParse(t, "<p>a</p>")
	body := doc.Body()
	doc.Observe(func([]Mutation) {
		_ = doc.AppendChild(body, NewText("again"))
	})

	_ = doc.AppendChild(body, NewText("start"))
	if n := doc.Flush(); n != maxFlushRounds {
		t.Errorf("Flush() = %d, want %d", n, maxFlushRounds)
	}
	if doc.Pending() != 0 {
		t.Errorf("Pending() = %d after capped flush", doc.Pending())
	}
}

func TestEditErrors(t *testing.T) {
	doc := mustParse(t, "<p>a</p><div></div>")
	p := doc.Body().FirstChild
	div := p.NextSibling
	text := p.FirstChild

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"append nil parent", doc.AppendChild(nil, NewText("x")), ErrDetached},
		{"append attached", doc.AppendChild(div, text), ErrAttached},
		{"insert wrong ref", doc.InsertBefore(div, NewText("x"), text), ErrDetached},
		{"remove wrong parent", doc.RemoveChild(div, text), ErrDetached},
		{"replace wrong parent", doc.ReplaceChild(div, NewText("x"), text), ErrDetached},
		{"replace with attached", doc.ReplaceChild(p, div, text), ErrAttached},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, tt.err, tt.want)
		}
	}
	if p.FirstChild != text || text.Parent != p {
		t.Error("failed edit changed the tree")
	}
}

func TestReplaceChild(t *testing.T) {
	doc := mustParse(t, "<p>a<b>x</b>c</p>")
	var got []Mutation
	doc.Observe(func(ms []Mutation) { got = append(got, ms...) })

	p := doc.Body().FirstChild
	b := p.FirstChild.NextSibling
	repl := NewText("b")
	if err := doc.ReplaceChild(p, repl, b); err != nil {
		t.Fatalf("ReplaceChild() failed: %v", err)
	}
	if b.Parent != nil || repl.Parent != p || repl.PrevSibling.Data != "a" {
		t.Error("node not replaced in place")
	}
	doc.Flush()
	if len(got) != 1 || got[0].Added[0] != repl || got[0].Removed[0] != b {
		t.Errorf("mutation = %+v", got)
	}
}

func TestMergeText(t *testing.T) {
	doc := mustParse(t, "<p>x</p>")
	p := doc.Body().FirstChild
	p.FirstChild.Data = "A "
	for _, s := range []string{"30 feet", "", " wall"} {
		p.AppendChild(&html.Node{Type: html.TextNode, Data: s})
	}
	p.AppendChild(&html.Node{Type: html.ElementNode, Data: "br"})
	p.AppendChild(&html.Node{Type: html.TextNode, Data: ""})

	merged := doc.MergeText(p)
	if len(merged) != 1 || merged[0].Data != "A 30 feet wall" {
		t.Fatalf("merged = %v", merged)
	}
	if p.FirstChild != merged[0] || p.FirstChild.NextSibling.Data != "br" || p.LastChild.Data != "br" {
		t.Error("unexpected children after merge")
	}
	if doc.MergeText(nil) != nil {
		t.Error("MergeText(nil) returned nodes")
	}
}
