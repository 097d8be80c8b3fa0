package buffer

import (
	"fmt"
	"log/slog"
)

// allocFrame runs the clock sweep and returns the index of a frame
// ready for a new page. A free frame under the hand is taken at once;
// otherwise a set reference bit buys the frame a second chance, pins
// protect it, and the first clean unreferenced frame becomes the
// victim. Dirty victims are written back before the frame is handed
// out. The hand keeps its position between calls.
//
// Each occupied frame is examined at most twice per sweep, once to
// clear its reference bit and once to evict it, so after 2*poolSize
// examinations nothing can be freed and the sweep gives up with
// ErrAllFramesPinned. Callers must hold m.mu.
func (m *Manager) allocFrame() (int, error) {
	examined := 0
	for examined < 2*m.poolSize {
		d := &m.frames[m.clockHand]

		if !d.valid {
			frame := m.clockHand
			m.advanceHand()
			return frame, nil
		}

		if d.refBit {
			d.refBit = false
			examined++
			m.advanceHand()
			continue
		}

		if d.pinCount > 0 {
			examined++
			m.advanceHand()
			continue
		}

		if d.dirty {
			slog.Debug(logDebugPrefix+"writing back victim", "file", d.owner.ID(), "page", d.pageNo, "frame", d.frameNo)
			if err := d.owner.WritePage(d.pageNo, m.slot(m.clockHand)); err != nil {
				// The frame stays dirty and valid under the hand; the
				// next sweep retries it.
				return 0, fmt.Errorf("write back page %d of file %d: %w", d.pageNo, d.owner.ID(), err)
			}
			d.dirty = false
			m.stats.WriteBacks++
		}

		if err := m.table.remove(pageKey{file: d.owner.ID(), pageNo: d.pageNo}); err != nil {
			panic("buffer: victim page missing from page table")
		}
		frame := m.clockHand
		d.clear()
		m.stats.Evictions++
		m.advanceHand()
		return frame, nil
	}
	return 0, ErrAllFramesPinned
}
