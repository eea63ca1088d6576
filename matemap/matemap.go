// Package matemap implements the unmatched-mate map: an associative
// store from (reference-index, key) to a caller-defined value, with
// on-disk spilling so that mapped-pair signature building does not
// have to hold every unpaired mate in RAM.
//
// It is grounded on grailbio-bio's encoding/bampair disk-mate-shard
// design: entries for a given reference index are appended to a
// single write-only spill file (snappy-compressed) while the stream
// is ahead of that reference; the first Remove against a reference
// index triggers a one-time load of its entire spill file into an
// in-memory map, after which both Remove and any later Put against
// that reference index operate on the in-memory map directly,
// mirroring diskMateShard.openReader/getMate. Unlike the teacher,
// entries are partitioned by reference-index directly rather than by
// input-shard index, since this map serves a single-threaded,
// coordinate-ordered pass rather than sharded parallel input.
package matemap

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
)

// Codec serializes and deserializes the map's value type to its
// on-disk spill representation.
type Codec[T any] interface {
	Encode(w *bufio.Writer, v T) error
	Decode(r *bufio.Reader) (T, error)
}

var shardCounter int64

// Map is a reference-index-partitioned, spill-capable associative
// store. Zero value is not usable; construct with New.
type Map[T any] struct {
	codec       Codec[T]
	tempDirs    []string
	handleQuota int
	nextDir     int

	partitions  map[int32]*partition[T]
	openHandles int
	totalPuts   int64
	totalTaken  int64
}

type partition[T any] struct {
	refID    int32
	path     string
	f        *os.File
	w        *bufio.Writer
	sw       *snappy.Writer
	writerOpen bool
	loaded   map[string]T
	loadErr  error
}

// New constructs a Map. handleQuota bounds the number of simultaneously
// open spill files (default 8000 per spec §4.2, configurable by
// callers via MAX_FILE_HANDLES_FOR_READ_ENDS_MAP).
func New[T any](codec Codec[T], tempDirs []string, handleQuota int) (*Map[T], error) {
	if len(tempDirs) == 0 {
		return nil, errors.New("matemap: at least one temp directory is required")
	}
	if handleQuota <= 0 {
		handleQuota = 8000
	}
	return &Map[T]{
		codec:       codec,
		tempDirs:    tempDirs,
		handleQuota: handleQuota,
		partitions:  make(map[int32]*partition[T]),
	}, nil
}

// Put stores v under (refID, key). Before its partition has been
// loaded, v is appended to that reference index's spill file, with
// the write-side file handle opened lazily and kept open until the
// partition is loaded by a subsequent Remove. Once the partition has
// been loaded into memory, v is added directly to the loaded map
// instead: the spill file is write-only and already closed for
// reading by then, so a later Put can never reopen it without
// truncating entries already read into p.loaded.
func (m *Map[T]) Put(refID int32, key string, v T) error {
	p, err := m.partitionFor(refID)
	if err != nil {
		return err
	}
	if p.loaded != nil {
		p.loaded[key] = v
		m.totalPuts++
		return nil
	}
	if err := p.ensureWriterOpen(m); err != nil {
		return err
	}
	if err := writeKeyedRecord(p.w, key, v, m.codec); err != nil {
		return errors.Wrapf(err, "matemap: writing entry for ref %d", refID)
	}
	m.totalPuts++
	return nil
}

// Remove returns and deletes the value stored for (refID, key), if
// present. The first Remove call against a given reference index
// closes that partition's writer and loads its entire spill file into
// memory; subsequent Removes (and any interleaved Puts) are plain map
// operations against that loaded partition.
func (m *Map[T]) Remove(refID int32, key string) (T, bool) {
	var zero T
	p, ok := m.partitions[refID]
	if !ok {
		return zero, false
	}
	if p.loaded == nil {
		if err := m.loadPartition(p); err != nil {
			// A load failure is fatal per spec §4.7; callers should
			// treat a false return combined with a tracked error as
			// grounds to abort. Map keeps no error channel of its own,
			// so Err surfaces it on demand.
			p.loadErr = err
			return zero, false
		}
	}
	v, found := p.loaded[key]
	if found {
		delete(p.loaded, key)
		m.totalTaken++
		if len(p.loaded) == 0 {
			m.drain(p)
		}
	}
	return v, found
}

// Err returns the load error recorded for refID's partition, if a
// Remove against it failed to load the spill file. Callers should
// treat a non-nil result as fatal per spec §4.7.
func (m *Map[T]) Err(refID int32) error {
	if p, ok := m.partitions[refID]; ok {
		return p.loadErr
	}
	return nil
}

// Size reports the number of entries currently resident anywhere in
// the map (spilled-but-unread entries included).
func (m *Map[T]) Size() int64 {
	return m.totalPuts - m.totalTaken
}

// SizeInRAM reports the number of entries currently held in loaded,
// in-memory partitions only.
func (m *Map[T]) SizeInRAM() int {
	n := 0
	for _, p := range m.partitions {
		n += len(p.loaded)
	}
	return n
}

// Close releases every open file handle and removes every spill file.
// Safe to call once all partitions have been drained or abandoned.
func (m *Map[T]) Close() error {
	var firstErr error
	for _, p := range m.partitions {
		if p.writerOpen {
			if err := p.closeWriter(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if p.path != "" {
			if err := os.Remove(p.path); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Map[T]) partitionFor(refID int32) (*partition[T], error) {
	p, ok := m.partitions[refID]
	if ok {
		return p, nil
	}
	dir := m.tempDirs[m.nextDir%len(m.tempDirs)]
	m.nextDir++
	name := filepath.Join(dir, fmt.Sprintf("matemap-%d-%d.shard", os.Getpid(), atomic.AddInt64(&shardCounter, 1)))
	p = &partition[T]{refID: refID, path: name}
	m.partitions[refID] = p
	return p, nil
}

func (p *partition[T]) ensureWriterOpen(m *Map[T]) error {
	if p.writerOpen {
		return nil
	}
	if m.openHandles >= m.handleQuota {
		return fmt.Errorf("matemap: open file handle budget (%d) exhausted", m.handleQuota)
	}
	f, err := os.Create(p.path)
	if err != nil {
		return err
	}
	p.f = f
	p.sw = snappy.NewBufferedWriter(f)
	p.w = bufio.NewWriter(p.sw)
	p.writerOpen = true
	m.openHandles++
	return nil
}

func (p *partition[T]) closeWriter() error {
	if !p.writerOpen {
		return nil
	}
	if err := p.w.Flush(); err != nil {
		return err
	}
	if err := p.sw.Close(); err != nil {
		return err
	}
	if err := p.f.Close(); err != nil {
		return err
	}
	p.writerOpen = false
	return nil
}

// loadPartition closes the write side (if still open) and reads the
// entire spill file into p.loaded, mirroring diskMateShard.openReader.
func (m *Map[T]) loadPartition(p *partition[T]) error {
	wasOpen := p.writerOpen
	if err := p.closeWriter(); err != nil {
		return errors.Wrapf(err, "matemap: closing writer for ref %d", p.refID)
	}
	if wasOpen {
		m.openHandles--
	}
	f, err := os.Open(p.path)
	if err != nil {
		return errors.Wrapf(err, "matemap: opening spill file for ref %d", p.refID)
	}
	defer f.Close()
	m.openHandles++
	defer func() { m.openHandles-- }()

	sr := snappy.NewReader(f)
	br := bufio.NewReader(sr)
	p.loaded = make(map[string]T)
	for {
		key, v, err := readKeyedRecord(br, m.codec)
		if err == errEOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "matemap: decoding spill entry for ref %d", p.refID)
		}
		p.loaded[key] = v
	}
	return nil
}

// drain removes a fully-consumed partition's backing file and its
// entry from the table. The partition's write handle, and its slot in
// the handle budget, were already released when it was loaded.
func (m *Map[T]) drain(p *partition[T]) {
	os.Remove(p.path)
	delete(m.partitions, p.refID)
}
