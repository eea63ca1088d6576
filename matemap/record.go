package matemap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
)

// errEOF signals a clean end of a spill file to loadPartition,
// distinct from a decode failure partway through a record.
var errEOF = errors.New("matemap: end of spill file")

// writeKeyedRecord frames one (key, value) entry as: a varint key
// length, the key bytes, then the codec's encoding of v. Framing the
// key ourselves (rather than folding it into the codec) keeps Codec
// implementations focused purely on the value type.
func writeKeyedRecord[T any](w *bufio.Writer, key string, v T, codec Codec[T]) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(key)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	if _, err := w.WriteString(key); err != nil {
		return err
	}
	return codec.Encode(w, v)
}

func readKeyedRecord[T any](r *bufio.Reader, codec Codec[T]) (string, T, error) {
	var zero T
	klen, err := binary.ReadUvarint(r)
	if err != nil {
		if err == io.EOF {
			return "", zero, errEOF
		}
		return "", zero, err
	}
	keyBuf := make([]byte, klen)
	if _, err := io.ReadFull(r, keyBuf); err != nil {
		return "", zero, err
	}
	v, err := codec.Decode(r)
	if err != nil {
		return "", zero, err
	}
	return string(keyBuf), v, nil
}
