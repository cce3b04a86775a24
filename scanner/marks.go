package scanner

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/net/html"
)

// Marks remembers which text leaves have already been scanned. It holds
// only weak references: a marked node that is dropped from the tree and
// becomes unreachable is collected as usual and its entry disappears.
//
// Marks is safe for concurrent use; entries are removed from the garbage
// collector's cleanup goroutine.
type Marks struct {
	mu  sync.Mutex
	set map[weak.Pointer[html.Node]]struct{}

	// gen invalidates cleanups registered before the last Reset.
	gen uint64
}

// NewMarks returns an empty mark set.
func NewMarks() *Marks {
	return &Marks{set: make(map[weak.Pointer[html.Node]]struct{})}
}

// Mark records n as processed.
func (m *Marks) Mark(n *html.Node) {
	if n == nil {
		return
	}
	key := weak.Make(n)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.set[key]; ok {
		return
	}
	m.set[key] = struct{}{}
	runtime.AddCleanup(n, m.drop, cleanupKey{ptr: key, gen: m.gen})
}

// Has reports whether n is marked. Unknown and nil nodes are not.
func (m *Marks) Has(n *html.Node) bool {
	if n == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.set[weak.Make(n)]
	return ok
}

// Forget removes the mark on n, if any.
func (m *Marks) Forget(n *html.Node) {
	if n == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.set, weak.Make(n))
}

// Reset clears every mark.
func (m *Marks) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.set)
	m.gen++
}

// Len returns the number of live marks.
func (m *Marks) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.set)
}

type cleanupKey struct {
	ptr weak.Pointer[html.Node]
	gen uint64
}

func (m *Marks) drop(k cleanupKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k.gen == m.gen {
		delete(m.set, k.ptr)
	}
}
