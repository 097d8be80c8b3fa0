package buffer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuf/disk"
)

// fakeFile is an in-memory PageFile that records I/O and can inject
// failures per page.
type fakeFile struct {
	id          disk.FileID
	pages       map[disk.PageID][]byte
	nextPage    disk.PageID
	reads       map[disk.PageID]int
	writes      map[disk.PageID]int
	failRead    map[disk.PageID]error
	failWrite   map[disk.PageID]error
	failAlloc   error
	failDispose error
	disposed    []disk.PageID
}

var _ disk.PageFile = &fakeFile{}

func newFakeFile() *fakeFile {
	return &fakeFile{
		id:        disk.NextFileID(),
		pages:     map[disk.PageID][]byte{},
		reads:     map[disk.PageID]int{},
		writes:    map[disk.PageID]int{},
		failRead:  map[disk.PageID]error{},
		failWrite: map[disk.PageID]error{},
	}
}

func (f *fakeFile) ID() disk.FileID { return f.id }

func (f *fakeFile) ReadPage(pageNo disk.PageID, buf []byte) error {
	if err := f.failRead[pageNo]; err != nil {
		return err
	}
	f.reads[pageNo]++
	p, ok := f.pages[pageNo]
	if !ok {
		// unwritten pages read back as zeroes
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, p)
	return nil
}

func (f *fakeFile) WritePage(pageNo disk.PageID, buf []byte) error {
	if err := f.failWrite[pageNo]; err != nil {
		return err
	}
	f.writes[pageNo]++
	p := make([]byte, disk.PageSize)
	copy(p, buf)
	f.pages[pageNo] = p
	return nil
}

func (f *fakeFile) AllocatePage() (disk.PageID, error) {
	if f.failAlloc != nil {
		return 0, f.failAlloc
	}
	pageNo := f.nextPage
	f.nextPage++
	return pageNo, nil
}

func (f *fakeFile) DisposePage(pageNo disk.PageID) error {
	if f.failDispose != nil {
		return f.failDispose
	}
	f.disposed = append(f.disposed, pageNo)
	delete(f.pages, pageNo)
	return nil
}

func (f *fakeFile) NumPages() uint64 { return uint64(f.nextPage) }

func (f *fakeFile) Close() error { return nil }

func pageBytes(b byte) []byte {
	p := make([]byte, disk.PageSize)
	for i := range p {
		p[i] = b
	}
	return p
}

func TestGetPageDoesNotReadResidentPage(t *testing.T) {
	f := newFakeFile()
	f.pages[3] = pageBytes('a')
	pool := NewManager(4)

	h1, err := pool.GetPage(f, 3)
	require.NoError(t, err)
	assert.Equal(t, byte('a'), h1.Data()[0])

	h2, err := pool.GetPage(f, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, f.reads[3])
	assert.Equal(t, h1.frame, h2.frame)
	assert.Equal(t, 2, pool.frames[h1.frame].pinCount)

	st := pool.Stats()
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 1, st.Misses)
	assert.EqualValues(t, 1, st.DiskReads)

	require.NoError(t, h1.Release(false))
	require.NoError(t, h2.Release(false))
}

func TestUnpinCountsNeverGoNegative(t *testing.T) {
	f := newFakeFile()
	f.pages[1] = pageBytes('x')
	pool := NewManager(2)

	for i := 0; i < 3; i++ {
		_, err := pool.GetPage(f, 1)
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Unpin(f, 1, false))
	}
	assert.ErrorIs(t, pool.Unpin(f, 1, false), ErrPageNotPinned)

	frame, err := pool.table.lookup(pageKey{file: f.ID(), pageNo: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, pool.frames[frame].pinCount)
}

func TestUnpinUnknownPage(t *testing.T) {
	f := newFakeFile()
	pool := NewManager(2)

	assert.ErrorIs(t, pool.Unpin(f, 99, false), ErrPageNotFound)
}

func TestUnpinDirtyMarkIsSticky(t *testing.T) {
	f := newFakeFile()
	f.pages[1] = pageBytes('x')
	pool := NewManager(2)

	_, err := pool.GetPage(f, 1)
	require.NoError(t, err)
	_, err = pool.GetPage(f, 1)
	require.NoError(t, err)

	require.NoError(t, pool.Unpin(f, 1, true))
	require.NoError(t, pool.Unpin(f, 1, false))

	frame, err := pool.table.lookup(pageKey{file: f.ID(), pageNo: 1})
	require.NoError(t, err)
	assert.True(t, pool.frames[frame].dirty)
}

func TestReleaseTwiceIsANoOp(t *testing.T) {
	f := newFakeFile()
	f.pages[1] = pageBytes('x')
	pool := NewManager(2)

	h, err := pool.GetPage(f, 1)
	require.NoError(t, err)
	require.NoError(t, h.Release(false))
	require.NoError(t, h.Release(false))
	assert.Nil(t, h.Data())

	frame, err := pool.table.lookup(pageKey{file: f.ID(), pageNo: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, pool.frames[frame].pinCount)
}

func TestNewPageZeroesRecycledFrame(t *testing.T) {
	f := newFakeFile()
	f.pages[0] = pageBytes('x')
	f.nextPage = 5
	pool := NewManager(1)

	h, err := pool.GetPage(f, 0)
	require.NoError(t, err)
	copy(h.Data(), pageBytes('x'))
	require.NoError(t, h.Release(true))

	hn, err := pool.NewPage(f)
	require.NoError(t, err)
	assert.EqualValues(t, 5, hn.PageID())
	assert.Equal(t, pageBytes(0), hn.Data())
	assert.Equal(t, 1, pool.frames[hn.frame].pinCount)
	assert.False(t, pool.frames[hn.frame].dirty)

	// the dirty victim went to disk first
	assert.Equal(t, 1, f.writes[0])
	assert.Equal(t, byte('x'), f.pages[0][0])

	require.NoError(t, hn.Release(true))
}

func TestNewPageWhenPoolIsFullyPinned(t *testing.T) {
	f := newFakeFile()
	f.pages[0] = pageBytes('a')
	f.nextPage = 1
	pool := NewManager(1)

	h, err := pool.GetPage(f, 0)
	require.NoError(t, err)

	_, err = pool.NewPage(f)
	assert.ErrorIs(t, err, ErrAllFramesPinned)
	// the page number handed out by the file stays allocated
	assert.EqualValues(t, 2, f.nextPage)

	require.NoError(t, h.Release(false))
}

func TestNewPagePropagatesAllocateFailure(t *testing.T) {
	f := newFakeFile()
	boom := errors.New("disk full")
	f.failAlloc = boom
	pool := NewManager(1)

	_, err := pool.NewPage(f)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, pool.EmptyFrameCount())
}

func TestReadFailureFreesTheFrame(t *testing.T) {
	f := newFakeFile()
	boom := errors.New("bad sector")
	f.failRead[7] = boom
	pool := NewManager(2)

	_, err := pool.GetPage(f, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 2, pool.EmptyFrameCount())
	_, err = pool.table.lookup(pageKey{file: f.ID(), pageNo: 7})
	assert.ErrorIs(t, err, ErrPageNotFound)
	require.NoError(t, pool.Audit())
}

func TestFreePageDropsResidentPageWithoutWriteBack(t *testing.T) {
	f := newFakeFile()
	f.pages[2] = pageBytes('b')
	pool := NewManager(2)

	h, err := pool.GetPage(f, 2)
	require.NoError(t, err)
	require.NoError(t, h.Release(true))

	require.NoError(t, pool.FreePage(f, 2))
	assert.Equal(t, []disk.PageID{2}, f.disposed)
	assert.Equal(t, 0, f.writes[2])
	assert.Equal(t, 2, pool.EmptyFrameCount())
	_, err = pool.table.lookup(pageKey{file: f.ID(), pageNo: 2})
	assert.ErrorIs(t, err, ErrPageNotFound)
	require.NoError(t, pool.Audit())
}

func TestFreePageNotResidentForwardsToFile(t *testing.T) {
	f := newFakeFile()
	pool := NewManager(2)

	require.NoError(t, pool.FreePage(f, 9))
	assert.Equal(t, []disk.PageID{9}, f.disposed)
}

func TestFreePageForwardsDisposeError(t *testing.T) {
	f := newFakeFile()
	boom := errors.New("dispose refused")
	f.failDispose = boom
	pool := NewManager(2)

	assert.ErrorIs(t, pool.FreePage(f, 9), boom)
}

func TestPagesOfDifferentFilesDoNotCollide(t *testing.T) {
	f := newFakeFile()
	g := newFakeFile()
	f.pages[1] = pageBytes('f')
	g.pages[1] = pageBytes('g')
	pool := NewManager(4)

	hf, err := pool.GetPage(f, 1)
	require.NoError(t, err)
	hg, err := pool.GetPage(g, 1)
	require.NoError(t, err)

	assert.NotEqual(t, hf.frame, hg.frame)
	assert.Equal(t, byte('f'), hf.Data()[0])
	assert.Equal(t, byte('g'), hg.Data()[0])

	require.NoError(t, hf.Release(false))
	require.NoError(t, hg.Release(false))
	require.NoError(t, pool.Audit())
}

func TestPoolWritesReadBackThroughSmallPool(t *testing.T) {
	f := disk.NewMemFile()
	pool := NewManager(2)

	pageNos := make([]disk.PageID, 0, 50)
	for i := 0; i < 50; i++ {
		h, err := pool.NewPage(f)
		require.NoError(t, err)
		payload := fmt.Sprintf("page payload %d", i)
		copy(h.Data(), payload)
		pageNos = append(pageNos, h.PageID())
		require.NoError(t, h.Release(true))
	}

	for i, pageNo := range pageNos {
		h, err := pool.GetPage(f, pageNo)
		require.NoError(t, err)
		want := fmt.Sprintf("page payload %d", i)
		assert.Equal(t, want, string(h.Data()[:len(want)]))
		require.NoError(t, h.Release(false))
	}
	require.NoError(t, pool.Audit())
}
