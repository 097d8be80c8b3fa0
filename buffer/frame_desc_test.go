package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameDescSetThenClear(t *testing.T) {
	f := newFakeFile()
	d := frameDesc{frameNo: 3}

	d.set(f, 9)
	assert.True(t, d.valid)
	assert.Equal(t, 1, d.pinCount)
	assert.True(t, d.refBit)
	assert.False(t, d.dirty)
	assert.EqualValues(t, 9, d.pageNo)
	assert.Equal(t, f.ID(), d.owner.ID())

	d.dirty = true
	d.clear()
	assert.False(t, d.valid)
	assert.Equal(t, 0, d.pinCount)
	assert.False(t, d.refBit)
	assert.False(t, d.dirty)
	assert.Nil(t, d.owner)
	assert.EqualValues(t, 0, d.pageNo)
	// the frame index is fixed for the pool's lifetime
	assert.Equal(t, 3, d.frameNo)
}

func TestFrameDescSetResetsDirty(t *testing.T) {
	f := newFakeFile()
	d := frameDesc{frameNo: 0}

	d.set(f, 1)
	d.dirty = true
	d.set(f, 2)
	assert.False(t, d.dirty)
	assert.Equal(t, 1, d.pinCount)
	assert.EqualValues(t, 2, d.pageNo)
}
