package buffer

import "pagebuf/disk"

// PageHandle is a pinned view of one cached page. Data borrows the
// frame's buffer and stays valid until Release. Handles are not safe
// for concurrent use.
type PageHandle struct {
	mgr    *Manager
	file   disk.PageFile
	pageNo disk.PageID
	frame  int
	data   []byte
}

func (m *Manager) newHandle(f disk.PageFile, pageNo disk.PageID, frame int) *PageHandle {
	return &PageHandle{mgr: m, file: f, pageNo: pageNo, frame: frame, data: m.slot(frame)}
}

// PageID returns the page number the handle is pinned to.
func (h *PageHandle) PageID() disk.PageID { return h.pageNo }

// FileID returns the token of the owning file.
func (h *PageHandle) FileID() disk.FileID { return h.file.ID() }

// Data returns the page bytes, nil after Release.
func (h *PageHandle) Data() []byte { return h.data }

// Release drops the handle's pin, like Unpin with the same markDirty.
// Releasing twice is a no-op.
func (h *PageHandle) Release(markDirty bool) error {
	if h.mgr == nil {
		return nil
	}
	m := h.mgr
	h.mgr = nil
	h.data = nil

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unpin(pageKey{file: h.file.ID(), pageNo: h.pageNo}, markDirty)
}
