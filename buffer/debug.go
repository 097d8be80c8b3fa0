package buffer

import (
	"fmt"
	"io"

	"github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"

	"pagebuf/disk"
)

// DumpTo writes a human-readable view of every frame plus summary
// counters, one line per frame.
func (m *Manager) DumpTo(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fmt.Fprintf(w, "pool of %d frames (%s), hand at frame %d\n",
		m.poolSize, humanize.IBytes(uint64(m.poolSize*disk.PageSize)), m.clockHand)

	pinned, free := 0, 0
	for i := range m.frames {
		d := &m.frames[i]
		if !d.valid {
			free++
			fmt.Fprintf(w, "frame %3d: free\n", i)
			continue
		}
		if d.pinCount > 0 {
			pinned++
		}
		fmt.Fprintf(w, "frame %3d: file %d page %d pin %d dirty %v ref %v\n",
			i, d.owner.ID(), d.pageNo, d.pinCount, d.dirty, d.refBit)
	}
	fmt.Fprintf(w, "%d pinned, %d free, %s\n", pinned, free, m.stats)
}

// Audit cross-checks the page table against the descriptor table:
// every entry must point at a matching valid frame, no frame may be
// mapped twice and every valid frame must be mapped. Meant for tests
// and debugging.
func (m *Manager) Audit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapped := mapset.NewThreadUnsafeSet[int]()
	for k, frame := range m.table.entries {
		if frame < 0 || frame >= m.poolSize {
			return fmt.Errorf("%w: entry (%d,%d) points at frame %d", ErrIndexCorrupted, k.file, k.pageNo, frame)
		}
		if !mapped.Add(frame) {
			return fmt.Errorf("%w: frame %d is mapped twice", ErrIndexCorrupted, frame)
		}
		d := &m.frames[frame]
		if !d.valid || d.owner == nil || d.owner.ID() != k.file || d.pageNo != k.pageNo {
			return fmt.Errorf("%w: entry (%d,%d) does not match frame %d", ErrIndexCorrupted, k.file, k.pageNo, frame)
		}
	}

	valid := mapset.NewThreadUnsafeSet[int]()
	for i := range m.frames {
		if m.frames[i].valid {
			valid.Add(i)
		}
	}
	if diff := valid.Difference(mapped); diff.Cardinality() > 0 {
		return fmt.Errorf("%w: valid frames %v missing from page table", ErrIndexCorrupted, diff.ToSlice())
	}
	return nil
}
