package disk

import (
	"sync"

	"github.com/dsnet/golib/memfile"
	"github.com/pkg/errors"
)

// MemFile is a page file kept entirely in memory, for tests and
// ephemeral databases. It honors the same contract as File but has no
// header page; page numbers start at 0.
type MemFile struct {
	buf       *memfile.File
	id        FileID
	nextPage  PageID
	freePages []PageID
	size      int64
	mu        sync.Mutex
}

var _ PageFile = &MemFile{}

func NewMemFile() *MemFile {
	return &MemFile{buf: memfile.New(make([]byte, 0)), id: NextFileID()}
}

func (m *MemFile) ID() FileID { return m.id }

func (m *MemFile) ReadPage(pageNo PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(pageNo) * int64(PageSize)
	if off+int64(PageSize) > m.size {
		return errors.Errorf("page %d past end of memory file", pageNo)
	}
	_, err := m.buf.ReadAt(buf[:PageSize], off)
	return errors.Wrapf(err, "read page %d", pageNo)
}

func (m *MemFile) WritePage(pageNo PageID, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(pageNo) * int64(PageSize)
	if _, err := m.buf.WriteAt(buf[:PageSize], off); err != nil {
		return errors.Wrapf(err, "write page %d", pageNo)
	}
	if off+int64(PageSize) > m.size {
		m.size = off + int64(PageSize)
	}
	return nil
}

func (m *MemFile) AllocatePage() (PageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.freePages); n > 0 {
		pageNo := m.freePages[n-1]
		m.freePages = m.freePages[:n-1]
		return pageNo, nil
	}
	pageNo := m.nextPage
	m.nextPage++
	return pageNo, nil
}

func (m *MemFile) DisposePage(pageNo PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pageNo >= m.nextPage {
		return errors.Errorf("page %d was never allocated", pageNo)
	}
	m.freePages = append(m.freePages, pageNo)
	return nil
}

func (m *MemFile) NumPages() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(m.size) / uint64(PageSize)
}

func (m *MemFile) Close() error { return nil }
