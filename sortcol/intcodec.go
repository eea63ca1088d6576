package sortcol

import (
	"bufio"
	"encoding/binary"
)

// Uint64Codec is the "integer index sorter variant" codec from spec
// §4.1: fixed 8-byte little-endian slots, used for the duplicate-index
// and optical-index file-index streams.
type Uint64Codec struct{}

func (Uint64Codec) Encode(w *bufio.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (Uint64Codec) Decode(r *bufio.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := readFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// Uint64Less is the natural ascending order used by the duplicate- and
// optical-index sorters, whose streams are monotone non-decreasing per
// spec §4.4's ordering guarantee.
func Uint64Less(a, b uint64) bool { return a < b }
