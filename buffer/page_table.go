package buffer

import (
	"errors"

	"pagebuf/disk"
)

var (
	// ErrPageNotFound is returned when a page is not resident in the
	// pool.
	ErrPageNotFound = errors.New("buffer: page is not in the pool")

	// ErrDuplicateEntry is returned when a page is already mapped to a
	// frame.
	ErrDuplicateEntry = errors.New("buffer: page is already mapped to a frame")
)

// pageKey identifies a cached page. Pages of different files may share
// a page number, so the key carries the file token too.
type pageKey struct {
	file   disk.FileID
	pageNo disk.PageID
}

// pageTable maps resident pages to their frame index.
type pageTable struct {
	entries map[pageKey]int
}

func newPageTable(capacity int) *pageTable {
	return &pageTable{entries: make(map[pageKey]int, capacity)}
}

func (t *pageTable) insert(k pageKey, frame int) error {
	if _, ok := t.entries[k]; ok {
		return ErrDuplicateEntry
	}
	t.entries[k] = frame
	return nil
}

func (t *pageTable) lookup(k pageKey) (int, error) {
	frame, ok := t.entries[k]
	if !ok {
		return 0, ErrPageNotFound
	}
	return frame, nil
}

func (t *pageTable) remove(k pageKey) error {
	if _, ok := t.entries[k]; !ok {
		return ErrPageNotFound
	}
	delete(t.entries, k)
	return nil
}

func (t *pageTable) len() int { return len(t.entries) }
