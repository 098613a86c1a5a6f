package queue

import (
	"container/heap"
	"errors"
)

var ErrEmpty = errors.New("Queue is empty")

// Queue is a FIFO queue.
type Queue[E any] struct {
	elements []E
}

func (q *Queue[E]) Push(e E) {
	q.elements = append(q.elements, e)
}

func (q *Queue[E]) Empty() bool {
	return len(q.elements) == 0
}

func (q *Queue[E]) Len() int { return len(q.elements) }

func (q *Queue[E]) Pop() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	e := q.elements[0]
	var zero E
	q.elements[0] = zero
	q.elements = q.elements[1:]
	return e
}

// Stack is a LIFO queue.
type Stack[E any] struct {
	elements []E
}

func (s *Stack[E]) Push(e E) {
	s.elements = append(s.elements, e)
}

func (s *Stack[E]) Empty() bool {
	return len(s.elements) == 0
}

func (s *Stack[E]) Len() int { return len(s.elements) }

func (s *Stack[E]) Pop() E {
	if s.Empty() {
		panic(ErrEmpty)
	}

	n := len(s.elements) - 1
	e := s.elements[n]
	s.elements = s.elements[:n]
	return e
}

type prioHeap[E any] struct {
	list []E
	less func(E, E) bool
}

func (h prioHeap[E]) Len() int           { return len(h.list) }
func (h prioHeap[E]) Less(i, j int) bool { return h.less(h.list[i], h.list[j]) }
func (h prioHeap[E]) Swap(i, j int)      { h.list[i], h.list[j] = h.list[j], h.list[i] }
func (h *prioHeap[E]) Push(x any)        { h.list = append(h.list, x.(E)) }

func (h *prioHeap[E]) Pop() any {
	n := len(h.list) - 1
	x := h.list[n]
	h.list = h.list[:n]
	return x
}

var _ heap.Interface = (*prioHeap[int])(nil)

// Priority pops the least element according to the provided ordering.
type Priority[E any] struct {
	heap prioHeap[E]
}

func NewPriority[E any](less func(E, E) bool) *Priority[E] {
	return &Priority[E]{heap: prioHeap[E]{less: less}}
}

func (p *Priority[E]) Push(e E)    { heap.Push(&p.heap, e) }
func (p *Priority[E]) Empty() bool { return p.heap.Len() == 0 }
func (p *Priority[E]) Len() int    { return p.heap.Len() }

func (p *Priority[E]) Pop() E {
	if p.Empty() {
		panic(ErrEmpty)
	}
	return heap.Pop(&p.heap).(E)
}
