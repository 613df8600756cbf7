package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voxelvillage.ai/internal/sim/actor"
)

func TestList_AddAndRestore(t *testing.T) {
	l := NewList()
	a := l.Add(1, 2, 3, 5, 5, 4, actor.White)
	b := l.Add(10, 2, 3, 13, 7, 6, actor.White)
	assert.Equal(t, uint32(1), a)
	assert.Equal(t, uint32(2), b)
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, uint64(1), l.All()[0].SyncID)

	other := NewList()
	for _, e := range l.All() {
		other.Restore(e)
	}
	assert.Equal(t, uint32(3), other.Add(0, 0, 0, 1, 1, 1, actor.White))
}
