package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorder_RecordsInOrder(t *testing.T) {
	r := NewRecorder[int]()

	_, ok := r.Last()
	assert.False(t, ok)

	r.Update(1)
	r.Update(2)
	r.Update(3)

	assert.Equal(t, []int{1, 2, 3}, r.Values())
	assert.Equal(t, 3, r.Len())

	last, ok := r.Last()
	assert.True(t, ok)
	assert.Equal(t, 3, last)
}

func TestRecorder_ValuesIsACopy(t *testing.T) {
	r := NewRecorder[string]()
	r.Update("a")

	vals := r.Values()
	vals[0] = "mutated"

	assert.Equal(t, []string{"a"}, r.Values())
}

func TestRecorder_Kill(t *testing.T) {
	r := NewRecorder[int]()
	assert.True(t, r.Alive())

	r.Kill()
	assert.False(t, r.Alive())
}
