package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursor_MonotonicAndIdempotent(t *testing.T) {
	t.Parallel()

	c := NewCursor(10)
	c.AdvanceTo(12)
	assert.Equal(t, uint32(12), c.Current())

	c.AdvanceTo(12)
	assert.Equal(t, uint32(12), c.Current())

	c.AdvanceTo(3)
	assert.Equal(t, uint32(12), c.Current())
}

func TestPending(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		listed    []uint32
		watermark uint32
		want      []uint32
	}{
		{"empty", nil, 0, []uint32{}},
		{"server echoes last uid", []uint32{7}, 7, []uint32{}},
		{"unsorted with duplicates", []uint32{9, 8, 9, 3, 8}, 4, []uint32{8, 9}},
		{"all new", []uint32{1, 2, 3}, 0, []uint32{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, pending(tt.listed, tt.watermark))
		})
	}
}
