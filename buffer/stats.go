package buffer

import "fmt"

// Stats are cumulative counters over a pool's lifetime. Snapshots are
// plain values; read them through Manager.Stats.
type Stats struct {
	Hits       uint64
	Misses     uint64
	DiskReads  uint64
	WriteBacks uint64
	Evictions  uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("hits=%d misses=%d reads=%d writebacks=%d evictions=%d",
		s.Hits, s.Misses, s.DiskReads, s.WriteBacks, s.Evictions)
}
