package sortcol

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/s2"
	"github.com/minio/highwayhash"
	"github.com/pkg/errors"
)

// highwayKey is a fixed, arbitrary 32-byte key for the spill-file
// integrity checksum. It need not be secret: highwayhash is used here
// purely as a fast corruption detector, not as an authentication
// mechanism, so a compile-time constant key is appropriate.
var highwayKey = [32]byte{
	0x4d, 0x61, 0x72, 0x6b, 0x44, 0x75, 0x70, 0x73,
	0x6f, 0x72, 0x74, 0x43, 0x6f, 0x6c, 0x6c, 0x65,
	0x63, 0x74, 0x69, 0x6f, 0x6e, 0x53, 0x70, 0x69,
	0x6c, 0x6c, 0x43, 0x68, 0x65, 0x63, 0x6b, 0x73,
}

// writeSpillFile writes recs, already sorted, to path as an
// s2-compressed stream followed by an uncompressed 16-byte HighwayHash
// trailer covering the uncompressed record bytes. The trailer lets
// spillReader.verifyTrailer detect truncation or bit-rot before it reaches the
// merge as silently wrong output.
func writeSpillFile[T any](path string, recs []T, codec Codec[T]) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hasher, err := highwayhash.New128(highwayKey[:])
	if err != nil {
		return errors.Wrap(err, "sortcol: constructing checksum")
	}
	sw := s2.NewWriter(f)
	bw := bufio.NewWriter(io.MultiWriter(sw, hasher))

	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(recs)))
	if _, err := bw.Write(countBuf[:]); err != nil {
		return err
	}

	for _, v := range recs {
		if err := codec.Encode(bw, v); err != nil {
			return errors.Wrap(err, "sortcol: encoding spill record")
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := sw.Close(); err != nil {
		return err
	}
	if _, err := f.Write(hasher.Sum(nil)); err != nil {
		return err
	}
	return f.Sync()
}

// spillReader streams records back out of one spill file in order,
// verifying the trailing checksum once the underlying s2 stream is
// exhausted.
type spillReader[T any] struct {
	f       *os.File
	sr      *s2.Reader
	hasher  *hashReader
	br      *bufio.Reader
	codec   Codec[T]
	remain  uint64
	head    T
	haveErr error
}

// hashReader tees bytes read through it into a running HighwayHash
// state, so the spill reader can verify the trailer without a second
// pass over the file.
type hashReader struct {
	r io.Reader
	h interface {
		io.Writer
		Sum([]byte) []byte
	}
}

func (h *hashReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		h.h.Write(p[:n])
	}
	return n, err
}

func newSpillReader[T any](path string, codec Codec[T]) (*spillReader[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	hasher, err := highwayhash.New128(highwayKey[:])
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "sortcol: constructing checksum")
	}
	sr := s2.NewReader(f)
	hr := &hashReader{r: sr, h: hasher}
	br := bufio.NewReader(hr)

	var countBuf [8]byte
	if _, err := io.ReadFull(br, countBuf[:]); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "sortcol: reading spill header %s", path)
	}
	remain := binary.LittleEndian.Uint64(countBuf[:])

	sreader := &spillReader[T]{f: f, sr: sr, hasher: hr, br: br, codec: codec, remain: remain}
	return sreader, nil
}

// advance reads the next record into s.head. ok is false once the
// stream (and its checksum) has been fully consumed.
func (s *spillReader[T]) advance() (ok bool, err error) {
	if s.remain == 0 {
		return false, s.verifyTrailer()
	}
	v, err := s.codec.Decode(s.br)
	if err != nil {
		return false, errors.Wrap(err, "sortcol: decoding spill record")
	}
	s.head = v
	s.remain--
	return true, nil
}

func (s *spillReader[T]) verifyTrailer() error {
	want := s.hasher.h.Sum(nil)
	got := make([]byte, len(want))
	if _, err := io.ReadFull(s.f, got); err != nil {
		return errors.Wrap(err, "sortcol: reading spill checksum trailer")
	}
	for i := range want {
		if want[i] != got[i] {
			return errors.New("sortcol: spill file corruption detected (checksum mismatch)")
		}
	}
	return nil
}

func (s *spillReader[T]) close() error {
	return s.f.Close()
}

// mergeIterator performs a k-way merge across every spill file plus
// the residual in-memory buffer, using a binary heap exactly as
// biogo/hts/bam's Merger does: the heap root is always the globally
// next record, and advancing pops, refills, and re-pushes that one
// stream.
type mergeIterator[T any] struct {
	less    Less[T]
	streams []*spillReader[T]
	residue []T
	residueIdx int

	h       *mergeHeap[T]
	cur     T
	err     error
	started bool
}

func newMergeIterator[T any](paths []string, residue []T, less Less[T], codec Codec[T]) (*mergeIterator[T], error) {
	m := &mergeIterator[T]{less: less, residue: residue}
	for _, p := range paths {
		sr, err := newSpillReader(p, codec)
		if err != nil {
			m.closeStreams()
			return nil, err
		}
		ok, err := sr.advance()
		if err != nil {
			m.closeStreams()
			return nil, err
		}
		if ok {
			m.streams = append(m.streams, sr)
		}
	}
	m.h = &mergeHeap[T]{less: less}
	for _, sr := range m.streams {
		m.h.items = append(m.h.items, sr)
	}
	heap.Init(m.h)
	return m, nil
}

func (m *mergeIterator[T]) closeStreams() {
	for _, sr := range m.streams {
		sr.close()
	}
}

// Scan advances to the next globally-smallest record, which may come
// from any spill stream or the residual buffer.
func (m *mergeIterator[T]) Scan() bool {
	if m.err != nil {
		return false
	}
	// Candidate from the heap of spill streams.
	var haveHeap bool
	var headStream *spillReader[T]
	if m.h.Len() > 0 {
		headStream = m.h.items[0]
		haveHeap = true
	}
	// Candidate from the residual in-memory buffer.
	haveResidue := m.residueIdx < len(m.residue)

	switch {
	case haveHeap && haveResidue:
		if m.less(m.residue[m.residueIdx], headStream.head) {
			m.cur = m.residue[m.residueIdx]
			m.residueIdx++
			return true
		}
		return m.popHeap()
	case haveHeap:
		return m.popHeap()
	case haveResidue:
		m.cur = m.residue[m.residueIdx]
		m.residueIdx++
		return true
	default:
		m.err = m.finish()
		return false
	}
}

func (m *mergeIterator[T]) popHeap() bool {
	sr := m.h.items[0]
	m.cur = sr.head
	ok, err := sr.advance()
	if err != nil {
		m.err = err
		return false
	}
	if ok {
		heap.Fix(m.h, 0)
	} else {
		heap.Pop(m.h)
		if cerr := sr.close(); cerr != nil && m.err == nil {
			m.err = cerr
		}
	}
	return true
}

func (m *mergeIterator[T]) finish() error {
	return nil
}

func (m *mergeIterator[T]) Record() T  { return m.cur }
func (m *mergeIterator[T]) Err() error { return m.err }
func (m *mergeIterator[T]) Close() error {
	m.closeStreams()
	return nil
}

// mergeHeap implements container/heap.Interface over the active spill
// streams, ordered by each stream's current head record. This mirrors
// bySortOrderAndID in biogo/hts/bam's Merger.
type mergeHeap[T any] struct {
	less  Less[T]
	items []*spillReader[T]
}

func (h *mergeHeap[T]) Len() int { return len(h.items) }
func (h *mergeHeap[T]) Less(i, j int) bool {
	return h.less(h.items[i].head, h.items[j].head)
}
func (h *mergeHeap[T]) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap[T]) Push(x any)    { h.items = append(h.items, x.(*spillReader[T])) }
func (h *mergeHeap[T]) Pop() any {
	old := h.items
	n := len(old)
	v := old[n-1]
	h.items = old[:n-1]
	return v
}
