// Package ring provides a fixed-capacity ordered buffer that evicts its
// oldest entry on overflow.
package ring

type Window[T any] struct {
	buf   []T
	start int
	size  int
}

// New returns a window holding at most capacity entries. A capacity below
// one is treated as one.
func New[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{buf: make([]T, capacity)}
}

func (w *Window[T]) Cap() int {
	if w == nil {
		return 0
	}
	return len(w.buf)
}

func (w *Window[T]) Len() int {
	if w == nil {
		return 0
	}
	return w.size
}

// Push appends v. When the window is full the oldest entry is evicted and
// returned.
func (w *Window[T]) Push(v T) (evicted T, ok bool) {
	if w.size < len(w.buf) {
		w.buf[w.index(w.size)] = v
		w.size++
		return evicted, false
	}
	evicted = w.buf[w.start]
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
	return evicted, true
}

// At returns the i-th entry counting from the oldest.
func (w *Window[T]) At(i int) (T, bool) {
	var zero T
	if w == nil || i < 0 || i >= w.size {
		return zero, false
	}
	return w.buf[w.index(i)], true
}

func (w *Window[T]) Last() (T, bool) {
	if w == nil {
		var zero T
		return zero, false
	}
	return w.At(w.size - 1)
}

func (w *Window[T]) First() (T, bool) {
	return w.At(0)
}

// Items copies the entries oldest first.
func (w *Window[T]) Items() []T {
	if w == nil || w.size == 0 {
		return nil
	}
	out := make([]T, 0, w.size)
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[w.index(i)])
	}
	return out
}

// RemoveFunc drops every entry matching fn, keeping the order of the rest.
func (w *Window[T]) RemoveFunc(fn func(T) bool) int {
	if w == nil || w.size == 0 || fn == nil {
		return 0
	}
	items := w.Items()
	kept := items[:0]
	removed := 0
	for _, item := range items {
		if fn(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	if removed == 0 {
		return 0
	}
	w.Reset()
	for _, item := range kept {
		w.Push(item)
	}
	return removed
}

func (w *Window[T]) Reset() {
	if w == nil {
		return
	}
	var zero T
	for i := range w.buf {
		w.buf[i] = zero
	}
	w.start = 0
	w.size = 0
}

func (w *Window[T]) index(i int) int {
	return (w.start + i) % len(w.buf)
}
