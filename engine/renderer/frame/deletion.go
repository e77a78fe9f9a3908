package frame

import (
	"github.com/spaghettifunk/vkwrap/engine/core"
)

// Destroyer owns exactly one resource and releases it on Destroy.
type Destroyer interface {
	Destroy()
}

// DestroyFunc adapts a plain function to Destroyer.
type DestroyFunc func()

func (f DestroyFunc) Destroy() { f() }

type deletionEntry struct {
	label string
	d     Destroyer
}

// DeletionQueue runs teardown actions in reverse registration order. It is
// reusable after Flush.
type DeletionQueue struct {
	name    string
	entries []deletionEntry
}

func NewDeletionQueue(name string) *DeletionQueue {
	return &DeletionQueue{name: name}
}

func (q *DeletionQueue) Push(label string, d Destroyer) {
	if d == nil {
		return
	}
	q.entries = append(q.entries, deletionEntry{label: label, d: d})
}

func (q *DeletionQueue) PushFunc(label string, fn func()) {
	if fn == nil {
		return
	}
	q.Push(label, DestroyFunc(fn))
}

// Flush destroys every registered resource, newest first, and empties the
// queue. It returns how many actions ran.
func (q *DeletionQueue) Flush() int {
	n := len(q.entries)
	for i := n - 1; i >= 0; i-- {
		e := q.entries[i]
		core.LogDebug("%s tier: destroying %s", q.name, e.label)
		e.d.Destroy()
		q.entries[i] = deletionEntry{}
	}
	q.entries = q.entries[:0]
	return n
}

func (q *DeletionQueue) Len() int {
	return len(q.entries)
}

// Teardown holds the two deletion tiers: objects living as long as the device
// and objects that must be recreated whenever the surface is rebuilt.
type Teardown struct {
	Device  *DeletionQueue
	Surface *DeletionQueue
}

func NewTeardown() *Teardown {
	return &Teardown{
		Device:  NewDeletionQueue("device"),
		Surface: NewDeletionQueue("surface"),
	}
}

// Flush releases the surface tier before the device tier.
func (t *Teardown) Flush() {
	t.Surface.Flush()
	t.Device.Flush()
}
