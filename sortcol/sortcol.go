// Package sortcol implements an external, spill-to-disk sorting
// collection: callers add records in arbitrary order, and on iteration
// receive them back sorted. At most a configured number of records are
// held in memory at once; once the buffer reaches that budget it is
// sorted and spilled to a temp file, and iteration performs a k-way
// merge across every spill plus any residue left in memory.
//
// The merge itself follows the same container/heap discipline as
// biogo/hts/bam's Merger: each spill stream is represented by its
// current head record, and the heap always holds the globally-next
// record at its root.
package sortcol

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Codec defines how a SortingCollection serializes and deserializes
// its record type to a spill file.
type Codec[T any] interface {
	Encode(w *bufio.Writer, v T) error
	Decode(r *bufio.Reader) (T, error)
}

// Less reports whether a sorts before b.
type Less[T any] func(a, b T) bool

var spillCounter int64

// SortingCollection accumulates records of type T, spilling sorted
// runs to disk each time the buffer reaches maxInMemory records, and yields them back in
// sorted order on Iterate.
type SortingCollection[T any] struct {
	less        Less[T]
	codec       Codec[T]
	maxInMemory int
	tempDirs    []string
	handleQuota int

	buf        []T
	spillFiles []string
	nextDir    int
	done       bool
	totalAdded int
}

// New returns a SortingCollection. maxInMemory bounds the number of
// records held before a spill; tempDirs is used round-robin for spill
// placement; handleQuota caps the number of spill files (and hence
// concurrently open file handles during merge) before Add fails with a
// file-handle-exhaustion error; 0 or less means no cap.
func New[T any](less Less[T], codec Codec[T], maxInMemory int, tempDirs []string, handleQuota int) (*SortingCollection[T], error) {
	if maxInMemory <= 0 {
		return nil, errors.New("sortcol: maxInMemory must be positive")
	}
	if len(tempDirs) == 0 {
		return nil, errors.New("sortcol: at least one temp directory is required")
	}
	for _, d := range tempDirs {
		if err := checkWritable(d); err != nil {
			return nil, errors.Wrapf(err, "sortcol: temp dir %s not writable", d)
		}
	}
	return &SortingCollection[T]{
		less:        less,
		codec:       codec,
		maxInMemory: maxInMemory,
		tempDirs:    tempDirs,
		handleQuota: handleQuota,
	}, nil
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".sortcol-writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Add appends v to the in-memory buffer, spilling to disk if the
// buffer has reached maxInMemory.
func (s *SortingCollection[T]) Add(v T) error {
	if s.done {
		return errors.New("sortcol: Add called after DoneAdding")
	}
	s.buf = append(s.buf, v)
	s.totalAdded++
	if len(s.buf) >= s.maxInMemory {
		return s.spill()
	}
	return nil
}

func (s *SortingCollection[T]) spill() error {
	if len(s.buf) == 0 {
		return nil
	}
	if s.handleQuota > 0 && len(s.spillFiles) >= s.handleQuota {
		return fmt.Errorf("sortcol: spill count %d exceeds file-handle budget %d", len(s.spillFiles)+1, s.handleQuota)
	}
	sort.SliceStable(s.buf, func(i, j int) bool { return s.less(s.buf[i], s.buf[j]) })

	dir := s.tempDirs[s.nextDir%len(s.tempDirs)]
	s.nextDir++
	name := filepath.Join(dir, fmt.Sprintf("sortcol-%d-%d.spill", os.Getpid(), atomic.AddInt64(&spillCounter, 1)))

	if err := writeSpillFile(name, s.buf, s.codec); err != nil {
		return errors.Wrapf(err, "sortcol: spilling to %s", name)
	}
	s.spillFiles = append(s.spillFiles, name)
	s.buf = s.buf[:0]
	return nil
}

// DoneAdding finalizes the collection: any in-memory residue is
// sorted so that Iterate can proceed. No more Add calls are allowed
// afterward.
func (s *SortingCollection[T]) DoneAdding() error {
	if s.done {
		return nil
	}
	sort.SliceStable(s.buf, func(i, j int) bool { return s.less(s.buf[i], s.buf[j]) })
	s.done = true
	return nil
}

// Len reports the total number of records added so far, intended for
// diagnostics only.
func (s *SortingCollection[T]) Len() int {
	return s.totalAdded
}

// Cleanup removes any spill files created by this collection. Safe to
// call multiple times and on all exit paths (success, error, or
// cancellation), per spec §9's scoped-acquisition discipline.
func (s *SortingCollection[T]) Cleanup() error {
	var firstErr error
	for _, f := range s.spillFiles {
		if err := os.Remove(f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.spillFiles = nil
	return firstErr
}

// Iterate returns an Iterator yielding every added record in sorted
// order. DoneAdding must be called first.
func (s *SortingCollection[T]) Iterate() (Iterator[T], error) {
	if !s.done {
		return nil, errors.New("sortcol: Iterate called before DoneAdding")
	}
	if len(s.spillFiles) == 0 {
		return &sliceIterator[T]{buf: s.buf, idx: -1}, nil
	}
	return newMergeIterator(s.spillFiles, s.buf, s.less, s.codec)
}

// Iterator is a pull-style cursor over sorted records, mirroring the
// Scan/Record/Err/Close shape used throughout the biogo/hts readers.
type Iterator[T any] interface {
	Scan() bool
	Record() T
	Err() error
	Close() error
}

type sliceIterator[T any] struct {
	buf []T
	idx int
}

func (it *sliceIterator[T]) Scan() bool {
	it.idx++
	return it.idx < len(it.buf)
}
func (it *sliceIterator[T]) Record() T   { return it.buf[it.idx] }
func (it *sliceIterator[T]) Err() error  { return nil }
func (it *sliceIterator[T]) Close() error { return nil }
