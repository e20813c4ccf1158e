package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func TestFreeGPUs(t *testing.T) {
	cases := []struct {
		name        string
		allocatable *int
		allocated   *int
		want        int
	}{
		{"normal free capacity", intPtr(8), intPtr(3), 5},
		{"saturated node", intPtr(8), intPtr(8), 0},
		{"over-allocated treated as saturated", intPtr(8), intPtr(10), 0},
		{"unknown allocation treated as zero free", intPtr(8), nil, 0},
		{"unknown allocatable treated as zero free", nil, intPtr(0), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := &NodeInfo{GPUAllocatable: tc.allocatable, GPUAllocated: tc.allocated}
			assert.Equal(t, tc.want, n.FreeGPUs())
		})
	}
}
