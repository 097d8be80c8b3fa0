package buffer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"pagebuf/disk"
)

var logDebugPrefix = "buffer: "

var (
	// ErrAllFramesPinned is returned when a full clock sweep finds
	// every frame protected by a pin or a fresh reference bit.
	ErrAllFramesPinned = errors.New("buffer: all frames are pinned")

	// ErrPageNotPinned is returned when unpinning a page whose pin
	// count is already zero.
	ErrPageNotPinned = errors.New("buffer: page is not pinned")

	// ErrPagePinned is returned by FlushFile when it reaches a page
	// that is still pinned.
	ErrPagePinned = errors.New("buffer: page is pinned")

	// ErrIndexCorrupted is returned when the page table and the frame
	// descriptors disagree.
	ErrIndexCorrupted = errors.New("buffer: page table and frame descriptors disagree")

	// ErrInconsistentFrame is returned when a frame carries an owner
	// but is not valid.
	ErrInconsistentFrame = errors.New("buffer: frame owned by a file but not valid")
)

type Pool interface {
	GetPage(f disk.PageFile, pageNo disk.PageID) (*PageHandle, error)
	NewPage(f disk.PageFile) (*PageHandle, error)
	Unpin(f disk.PageFile, pageNo disk.PageID, markDirty bool) error
	FreePage(f disk.PageFile, pageNo disk.PageID) error
	FlushFile(f disk.PageFile) error
	FlushAll() error
	EmptyFrameCount() int
	Stats() Stats
}

var _ Pool = &Manager{}

// Manager is a fixed-capacity cache of disk pages. Pages live in
// frames, are looked up by (file, page number), pinned while in use
// and written back lazily when a dirty frame is evicted or flushed.
// One caller at a time; the mutex serializes operations but no
// fairness is promised.
type Manager struct {
	poolSize  int
	frames    []frameDesc
	arena     []byte // poolSize * disk.PageSize bytes, frame i owns slot i
	table     *pageTable
	clockHand int
	stats     Stats
	mu        sync.Mutex
}

func NewManager(poolSize int) *Manager {
	if poolSize <= 0 {
		panic("buffer: pool size must be positive")
	}
	m := &Manager{
		poolSize:  poolSize,
		frames:    make([]frameDesc, poolSize),
		arena:     make([]byte, poolSize*disk.PageSize),
		table:     newPageTable(poolSize),
		clockHand: poolSize - 1,
	}
	for i := range m.frames {
		m.frames[i].frameNo = i
	}
	return m
}

// slot returns frame i's page buffer.
func (m *Manager) slot(i int) []byte {
	return m.arena[i*disk.PageSize : (i+1)*disk.PageSize]
}

func (m *Manager) advanceHand() {
	m.clockHand = (m.clockHand + 1) % m.poolSize
}

// GetPage returns a pinned handle to pageNo of f. The page is read
// from f only when it is not already resident; a hit costs no I/O.
func (m *Manager) GetPage(f disk.PageFile, pageNo disk.PageID) (*PageHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pageKey{file: f.ID(), pageNo: pageNo}
	if frame, err := m.table.lookup(k); err == nil {
		d := &m.frames[frame]
		d.refBit = true
		d.pinCount++
		m.stats.Hits++
		return m.newHandle(f, pageNo, frame), nil
	}

	frame, err := m.allocFrame()
	if err != nil {
		return nil, err
	}
	if err := f.ReadPage(pageNo, m.slot(frame)); err != nil {
		m.frames[frame].clear()
		slog.Debug(logDebugPrefix+"read failed, frame freed", "file", k.file, "page", pageNo, "frame", frame)
		return nil, fmt.Errorf("read page %d of file %d: %w", pageNo, k.file, err)
	}
	m.stats.DiskReads++
	if err := m.table.insert(k, frame); err != nil {
		m.frames[frame].clear()
		return nil, ErrIndexCorrupted
	}
	m.frames[frame].set(f, pageNo)
	m.stats.Misses++
	return m.newHandle(f, pageNo, frame), nil
}

// NewPage allocates a brand-new page in f and pins it into a zeroed
// frame without reading anything. When frame acquisition fails the
// page number stays allocated in f; the caller may dispose it.
func (m *Manager) NewPage(f disk.PageFile) (*PageHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pageNo, err := f.AllocatePage()
	if err != nil {
		return nil, fmt.Errorf("allocate page in file %d: %w", f.ID(), err)
	}
	frame, err := m.allocFrame()
	if err != nil {
		return nil, err
	}
	k := pageKey{file: f.ID(), pageNo: pageNo}
	if err := m.table.insert(k, frame); err != nil {
		m.frames[frame].clear()
		return nil, ErrIndexCorrupted
	}
	m.frames[frame].set(f, pageNo)
	s := m.slot(frame)
	for i := range s {
		s[i] = 0
	}
	return m.newHandle(f, pageNo, frame), nil
}

// Unpin drops one pin from pageNo of f. markDirty records that the
// caller wrote the page; passing false never clears an earlier mark.
func (m *Manager) Unpin(f disk.PageFile, pageNo disk.PageID, markDirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unpin(pageKey{file: f.ID(), pageNo: pageNo}, markDirty)
}

func (m *Manager) unpin(k pageKey, markDirty bool) error {
	frame, err := m.table.lookup(k)
	if err != nil {
		return err
	}
	d := &m.frames[frame]
	if d.pinCount == 0 {
		return ErrPageNotPinned
	}
	d.pinCount--
	if markDirty {
		d.dirty = true
	}
	return nil
}

// FreePage drops pageNo of f from the pool if resident, without
// writing it back, and disposes it in the file. Callers must not free
// a page they still hold pinned.
func (m *Manager) FreePage(f disk.PageFile, pageNo disk.PageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pageKey{file: f.ID(), pageNo: pageNo}
	if frame, err := m.table.lookup(k); err == nil {
		m.frames[frame].clear()
		if err := m.table.remove(k); err != nil {
			panic("buffer: page table entry vanished during free")
		}
	}
	return f.DisposePage(pageNo)
}

// FlushFile writes back every dirty page of f and drops all of f's
// pages from the pool. Reaching a pinned page aborts the scan with
// ErrPagePinned; pages processed before it stay flushed and dropped.
func (m *Manager) FlushFile(f disk.PageFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid := f.ID()
	for i := range m.frames {
		d := &m.frames[i]
		if d.owner == nil || d.owner.ID() != fid {
			continue
		}
		if !d.valid {
			return ErrInconsistentFrame
		}
		if d.pinCount > 0 {
			return ErrPagePinned
		}
		if d.dirty {
			slog.Debug(logDebugPrefix+"flushing page", "file", fid, "page", d.pageNo, "frame", i)
			if err := d.owner.WritePage(d.pageNo, m.slot(i)); err != nil {
				return fmt.Errorf("flush page %d of file %d: %w", d.pageNo, fid, err)
			}
			d.dirty = false
			m.stats.WriteBacks++
		}
		if err := m.table.remove(pageKey{file: fid, pageNo: d.pageNo}); err != nil {
			panic("buffer: flushed page missing from page table")
		}
		d.clear()
	}
	return nil
}

// FlushAll writes back every dirty page in the pool but keeps all
// pages resident. Meant for shutdown.
func (m *Manager) FlushAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.frames {
		d := &m.frames[i]
		if !d.valid || !d.dirty {
			continue
		}
		if err := d.owner.WritePage(d.pageNo, m.slot(i)); err != nil {
			return fmt.Errorf("flush page %d of file %d: %w", d.pageNo, d.owner.ID(), err)
		}
		d.dirty = false
		m.stats.WriteBacks++
	}
	return nil
}

// EmptyFrameCount reports how many frames are free.
func (m *Manager) EmptyFrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for i := range m.frames {
		if !m.frames[i].valid {
			n++
		}
	}
	return n
}

// Stats returns a snapshot of the pool's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
