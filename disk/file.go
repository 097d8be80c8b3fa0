package disk

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/ncw/directio"
	"github.com/pkg/errors"
)

// File is a page file stored on disk. Page 0 is reserved for the file
// header, which keeps the head of the free page list; disposed pages
// are chained through their first bytes and recycled by AllocatePage
// before the file is grown.
type File struct {
	f          *os.File
	path       string
	id         FileID
	lastPageID uint64
	freeHead   PageID // 0 marks an empty free list
	freeCount  uint64
	syncWrites bool
	directIO   bool
}

var _ PageFile = &File{}

const (
	headerOffFreeHead  = 0
	headerOffFreeCount = 8
)

type Option func(*File)

// WithSyncWrites makes every WritePage fsync before returning. Without
// it a power loss can drop pages the os still buffers.
func WithSyncWrites() Option {
	return func(f *File) { f.syncWrites = true }
}

// WithDirectIO opens the file with O_DIRECT and moves pages through
// aligned blocks. This works because directio.BlockSize equals
// PageSize.
func WithDirectIO() Option {
	return func(f *File) { f.directIO = true }
}

// Open opens the page file at path, creating it if needed.
func Open(path string, opts ...Option) (*File, error) {
	d := &File{path: path, id: NextFileID()}
	for _, opt := range opts {
		opt(d)
	}

	var (
		f   *os.File
		err error
	)
	if d.directIO {
		f, err = directio.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	} else {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open page file %s", path)
	}
	d.f = f

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "stat page file %s", path)
	}

	if stat.Size() == 0 {
		// new file, reserve page 0 for the header
		if err := d.writeHeader(); err != nil {
			f.Close()
			return nil, err
		}
		return d, nil
	}

	d.lastPageID = uint64(stat.Size())/uint64(PageSize) - 1
	if err := d.readHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func (d *File) ID() FileID { return d.id }

func (d *File) ReadPage(pageNo PageID, buf []byte) error {
	if uint64(pageNo) > d.lastPageID {
		return errors.Errorf("page %d past end of file %s", pageNo, d.path)
	}
	if _, err := d.f.Seek(int64(PageSize)*int64(pageNo), io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to page %d", pageNo)
	}
	if d.directIO {
		block := directio.AlignedBlock(directio.BlockSize)
		if _, err := io.ReadFull(d.f, block); err != nil {
			return errors.Wrapf(err, "read page %d", pageNo)
		}
		copy(buf[:PageSize], block)
		return nil
	}
	if _, err := io.ReadFull(d.f, buf[:PageSize]); err != nil {
		return errors.Wrapf(err, "read page %d", pageNo)
	}
	return nil
}

func (d *File) WritePage(pageNo PageID, buf []byte) error {
	if _, err := d.f.Seek(int64(PageSize)*int64(pageNo), io.SeekStart); err != nil {
		return errors.Wrapf(err, "seek to page %d", pageNo)
	}

	out := buf
	if d.directIO {
		block := directio.AlignedBlock(directio.BlockSize)
		copy(block, buf)
		out = block
	}
	n, err := d.f.Write(out[:PageSize])
	if err != nil {
		return errors.Wrapf(err, "write page %d", pageNo)
	}
	if n != PageSize {
		panic("written bytes are not equal to page size")
	}
	if uint64(pageNo) > d.lastPageID {
		d.lastPageID = uint64(pageNo)
	}
	if d.syncWrites {
		if err := d.f.Sync(); err != nil {
			return errors.Wrapf(err, "sync page file %s", d.path)
		}
	}
	return nil
}

func (d *File) AllocatePage() (PageID, error) {
	if d.freeHead != 0 {
		pageNo := d.freeHead
		buf := make([]byte, PageSize)
		if err := d.ReadPage(pageNo, buf); err != nil {
			return 0, errors.Wrapf(err, "pop free list head %d", pageNo)
		}
		d.freeHead = PageID(binary.BigEndian.Uint64(buf))
		d.freeCount--
		if err := d.writeHeader(); err != nil {
			return 0, err
		}
		return pageNo, nil
	}
	d.lastPageID++
	return PageID(d.lastPageID), nil
}

func (d *File) DisposePage(pageNo PageID) error {
	if pageNo == 0 {
		return errors.New("page 0 is the file header")
	}
	if uint64(pageNo) > d.lastPageID {
		return errors.Errorf("page %d past end of file %s", pageNo, d.path)
	}
	buf := make([]byte, PageSize)
	binary.BigEndian.PutUint64(buf, uint64(d.freeHead))
	if err := d.WritePage(pageNo, buf); err != nil {
		return errors.Wrapf(err, "chain page %d into free list", pageNo)
	}
	d.freeHead = pageNo
	d.freeCount++
	return d.writeHeader()
}

// NumPages counts the header page too.
func (d *File) NumPages() uint64 { return d.lastPageID + 1 }

// FreePages reports how many disposed pages wait for reuse.
func (d *File) FreePages() uint64 { return d.freeCount }

func (d *File) Close() error {
	if err := d.f.Sync(); err != nil {
		return errors.Wrapf(err, "sync page file %s", d.path)
	}
	return errors.Wrapf(d.f.Close(), "close page file %s", d.path)
}

func (d *File) writeHeader() error {
	buf := make([]byte, PageSize)
	binary.BigEndian.PutUint64(buf[headerOffFreeHead:], uint64(d.freeHead))
	binary.BigEndian.PutUint64(buf[headerOffFreeCount:], d.freeCount)
	return errors.Wrap(d.WritePage(0, buf), "write file header")
}

func (d *File) readHeader() error {
	buf := make([]byte, PageSize)
	if err := d.ReadPage(0, buf); err != nil {
		return errors.Wrap(err, "read file header")
	}
	d.freeHead = PageID(binary.BigEndian.Uint64(buf[headerOffFreeHead:]))
	d.freeCount = binary.BigEndian.Uint64(buf[headerOffFreeCount:])
	return nil
}
