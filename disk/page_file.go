package disk

import "sync/atomic"

// PageSize is the fixed size of every page moved between a page file
// and the buffer pool. Frames in the pool are exactly this large.
const PageSize int = 4096

// PageID is a page number within a single page file.
type PageID uint64

// FileID identifies one open page file for as long as the process
// lives. Pages of different files can share a page number, so cached
// pages are keyed by (FileID, PageID).
type FileID uint32

var fileIDCounter atomic.Uint32

// NextFileID hands out a fresh process-wide file token. PageFile
// implementations call it once when they are created.
func NextFileID() FileID {
	return FileID(fileIDCounter.Add(1))
}

// PageFile is the I/O contract the buffer pool drives. A page file
// owns a numbered set of fixed-size pages; reads and writes always
// move whole pages.
type PageFile interface {
	ID() FileID

	// ReadPage reads page pageNo into buf. buf must be PageSize long.
	ReadPage(pageNo PageID, buf []byte) error

	// WritePage writes buf as page pageNo. buf must be PageSize long.
	WritePage(pageNo PageID, buf []byte) error

	// AllocatePage extends the file by one page, or recycles a
	// disposed one, and returns its number. The page's contents are
	// undefined until the first write.
	AllocatePage() (PageID, error)

	// DisposePage gives pageNo back to the file. Its contents are
	// lost and the number may be returned by a later AllocatePage.
	DisposePage(pageNo PageID) error

	// NumPages reports how many pages the file currently addresses.
	NumPages() uint64

	Close() error
}
