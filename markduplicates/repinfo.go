package markduplicates

import (
	"bufio"
	"encoding/binary"
	"io"
)

// RepInfo is one representative-info sorter entry: every member of a
// duplicate set points back at the same representative read name and
// set size, keyed for the merge by the member's own file index.
type RepInfo struct {
	Index    uint64
	SetSize  int32
	ReadName string
}

// repInfoLess gives the representative-info sorter the same monotone
// file-index order as the duplicate- and optical-index sorters.
func repInfoLess(a, b RepInfo) bool { return a.Index < b.Index }

type repInfoCodec struct{}

func (repInfoCodec) Encode(w *bufio.Writer, v RepInfo) error {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[0:8], v.Index)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(v.SetSize))
	if _, err := w.Write(buf[:]); err != nil {
		return err
	}
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(v.ReadName)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.WriteString(v.ReadName)
	return err
}

func (repInfoCodec) Decode(r *bufio.Reader) (RepInfo, error) {
	var v RepInfo
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return v, err
	}
	v.Index = binary.LittleEndian.Uint64(buf[0:8])
	v.SetSize = int32(binary.LittleEndian.Uint32(buf[8:12]))
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return v, err
	}
	nameBuf := make([]byte, length)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return v, err
	}
	v.ReadName = string(nameBuf)
	return v, nil
}
