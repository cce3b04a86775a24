package htmldoc

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"
)

var (
	// ErrDetached is returned when an edit names a parent that does not
	// (or no longer does) contain the node being edited.
	ErrDetached = errors.New("node is detached")

	// ErrAttached is returned when a node to be inserted already has a parent.
	ErrAttached = errors.New("node already has a parent")
)

// maxFlushRounds bounds how many batches one Flush delivers when observers
// keep editing the tree in response to the records they receive.
const maxFlushRounds = 16

// Mutation records one structural edit.
type Mutation struct {
	Target  *html.Node   // parent whose children changed
	Added   []*html.Node // nodes inserted under Target
	Removed []*html.Node // nodes removed from Target
}

type observer struct {
	id int
	fn func([]Mutation)
}

// Observe registers fn to receive mutation batches. The returned function
// unregisters it. Records are only queued while at least one observer is
// registered.
func (d *Document) Observe(fn func([]Mutation)) (cancel func()) {
	d.nextID++
	id := d.nextID
	d.observers = append(d.observers, observer{id: id, fn: fn})
	return func() {
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// Pending returns the number of queued, undelivered records.
func (d *Document) Pending() int {
	return len(d.pending)
}

// Flush delivers queued records to every observer, one batch at a time,
// until the queue is empty. Edits made by observers during delivery are
// delivered in a following batch. Flush returns the number of batches
// delivered. A Flush called from inside an observer returns 0.
func (d *Document) Flush() int {
	if d.delivering {
		return 0
	}
	d.delivering = true
	defer func() { d.delivering = false }()

	rounds := 0
	for len(d.pending) > 0 && rounds < maxFlushRounds {
		batch := d.pending
		d.pending = nil
		obs := append([]observer(nil), d.observers...)
		for _, o := range obs {
			o.fn(batch)
		}
		rounds++
	}
	if len(d.pending) > 0 {
		// observers kept mutating; drop the rest rather than spin
		d.pending = nil
	}
	return rounds
}

func (d *Document) record(m Mutation) {
	if len(d.observers) == 0 {
		return
	}
	d.pending = append(d.pending, m)
}

// AppendChild adds child as the last child of parent.
func (d *Document) AppendChild(parent, child *html.Node) error {
	if parent == nil {
		return fmt.Errorf("append: %w", ErrDetached)
	}
	if child.Parent != nil || child.PrevSibling != nil || child.NextSibling != nil {
		return fmt.Errorf("append: %w", ErrAttached)
	}
	parent.AppendChild(child)
	d.record(Mutation{Target: parent, Added: []*html.Node{child}})
	return nil
}

// InsertBefore inserts child immediately before ref, which must be a child
// of parent. A nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) error {
	if parent == nil || (ref != nil && ref.Parent != parent) {
		return fmt.Errorf("insert: %w", ErrDetached)
	}
	if child.Parent != nil || child.PrevSibling != nil || child.NextSibling != nil {
		return fmt.Errorf("insert: %w", ErrAttached)
	}
	parent.InsertBefore(child, ref)
	d.record(Mutation{Target: parent, Added: []*html.Node{child}})
	return nil
}

// RemoveChild detaches child from parent.
func (d *Document) RemoveChild(parent, child *html.Node) error {
	if parent == nil || child.Parent != parent {
		return fmt.Errorf("remove: %w", ErrDetached)
	}
	parent.RemoveChild(child)
	d.record(Mutation{Target: parent, Removed: []*html.Node{child}})
	return nil
}

// ReplaceChild puts newChild where old was and detaches old.
func (d *Document) ReplaceChild(parent, newChild, old *html.Node) error {
	if parent == nil || old.Parent != parent {
		return fmt.Errorf("replace: %w", ErrDetached)
	}
	if newChild.Parent != nil || newChild.PrevSibling != nil || newChild.NextSibling != nil {
		return fmt.Errorf("replace: %w", ErrAttached)
	}
	parent.InsertBefore(newChild, old)
	parent.RemoveChild(old)
	d.record(Mutation{Target: parent, Added: []*html.Node{newChild}, Removed: []*html.Node{old}})
	return nil
}

// MergeText joins every run of adjacent text children of parent into the
// first node of the run and returns the surviving nodes of runs that were
// merged. Empty text nodes are dropped.
func (d *Document) MergeText(parent *html.Node) []*html.Node {
	if parent == nil {
		return nil
	}
	var merged []*html.Node
	c := parent.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type != html.TextNode {
			c = next
			continue
		}
		joined := false
		for next != nil && next.Type == html.TextNode {
			c.Data += next.Data
			after := next.NextSibling
			_ = d.RemoveChild(parent, next)
			next = after
			joined = true
		}
		if c.Data == "" {
			_ = d.RemoveChild(parent, c)
		} else if joined {
			merged = append(merged, c)
		}
		c = next
	}
	return merged
}
