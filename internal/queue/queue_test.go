package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueue(t *testing.T) {
	var q Queue[int]
	assert.True(t, q.Empty())

	q.Push(1)
	assert.False(t, q.Empty())
	assert.Equal(t, q.Pop(), 1)
	assert.True(t, q.Empty())

	q.Push(2)
	q.Push(3)

	assert.Equal(t, q.Pop(), 2)
	assert.Equal(t, q.Pop(), 3)
	assert.True(t, q.Empty())

	assert.Panics(t, func() { q.Pop() })
}

func TestStack(t *testing.T) {
	var s Stack[int]
	assert.True(t, s.Empty())

	s.Push(1)
	s.Push(2)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, s.Pop(), 2)
	assert.Equal(t, s.Pop(), 1)
	assert.True(t, s.Empty())

	assert.Panics(t, func() { s.Pop() })
}

func TestPriority(t *testing.T) {
	p := NewPriority(func(a, b int) bool { return a < b })
	for _, x := range []int{5, 1, 4, 2, 3} {
		p.Push(x)
	}

	var popped []int
	for !p.Empty() {
		popped = append(popped, p.Pop())
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, popped)
	assert.Panics(t, func() { p.Pop() })
}
