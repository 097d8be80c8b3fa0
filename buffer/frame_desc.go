package buffer

import "pagebuf/disk"

// frameDesc is the bookkeeping record for one frame. The descriptor
// table and the frame arena are co-indexed; frameNo is fixed when the
// pool is built and survives clear.
type frameDesc struct {
	owner    disk.PageFile // nil while the frame is free
	pageNo   disk.PageID
	frameNo  int
	pinCount int
	dirty    bool
	refBit   bool
	valid    bool
}

// set marks the frame as holding pageNo of owner, pinned once and with
// a fresh reference bit.
func (d *frameDesc) set(owner disk.PageFile, pageNo disk.PageID) {
	d.owner = owner
	d.pageNo = pageNo
	d.pinCount = 1
	d.dirty = false
	d.refBit = true
	d.valid = true
}

// clear returns the frame to the free state, keeping frameNo.
func (d *frameDesc) clear() {
	d.owner = nil
	d.pageNo = 0
	d.pinCount = 0
	d.dirty = false
	d.refBit = false
	d.valid = false
}
