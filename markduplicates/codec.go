package markduplicates

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
)

// signatureCodec implements sortcol.Codec[Signature]. Each record is
// framed as a varint byte length followed by a flat proto.Buffer
// encoding of the fields grouped by width: fifteen 32-bit values via
// EncodeFixed32, five 64-bit values via EncodeFixed64, the
// HasBarcodes flag via EncodeFixed32, and the four variable-length
// strings via EncodeStringBytes. Using proto.Buffer directly (rather than a
// generated message type) keeps the wire format private to this
// package while still reusing the library the rest of the pack
// encodes with.
type signatureCodec struct{}

func (signatureCodec) Encode(w *bufio.Writer, v Signature) error {
	pb := proto.NewBuffer(nil)
	if err := encodeSignatureFields(pb, &v); err != nil {
		return err
	}
	payload := pb.Bytes()

	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func (signatureCodec) Decode(r *bufio.Reader) (Signature, error) {
	var sig Signature
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return sig, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return sig, errors.Wrap(err, "markduplicates: truncated signature record")
	}
	pb := proto.NewBuffer(buf)
	if err := decodeSignatureFields(pb, &sig); err != nil {
		return sig, err
	}
	return sig, nil
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func encodeSignatureFields(pb *proto.Buffer, s *Signature) error {
	fixed32s := []int32{
		s.LibraryID, s.Read1RefID, s.Read1Coord, int32(s.Orientation),
		s.Read2RefID, s.Read2Coord,
		s.ReadGroupOrdinal, s.Lane, s.Tile, s.X, s.Y, s.Score, int32(s.OrientationForOptical),
		boolToInt32(s.IsRead1), boolToInt32(s.HasLocation),
	}
	for _, v := range fixed32s {
		if err := pb.EncodeFixed32(uint64(uint32(v))); err != nil {
			return err
		}
	}
	fixed64s := []uint64{s.Read1FileIdx, s.Read2FileIdx, s.BarcodeHash, s.Read1BarcodeHash, s.Read2BarcodeHash}
	for _, v := range fixed64s {
		if err := pb.EncodeFixed64(v); err != nil {
			return err
		}
	}
	hasBarcodes := uint64(0)
	if s.HasBarcodes {
		hasBarcodes = 1
	}
	if err := pb.EncodeFixed32(hasBarcodes); err != nil {
		return err
	}
	for _, str := range []string{s.Barcode, s.Read1Barcode, s.Read2Barcode, s.FirstEncounteredReadName} {
		if err := pb.EncodeStringBytes(str); err != nil {
			return err
		}
	}
	return nil
}

func decodeSignatureFields(pb *proto.Buffer, s *Signature) error {
	fixed32Targets := []*int32{
		&s.LibraryID, &s.Read1RefID, &s.Read1Coord, nil,
		&s.Read2RefID, &s.Read2Coord,
		&s.ReadGroupOrdinal, &s.Lane, &s.Tile, &s.X, &s.Y, &s.Score, nil, nil, nil,
	}
	var orientation, orientationForOptical, isRead1, hasLocation int32
	for i := range fixed32Targets {
		v, err := pb.DecodeFixed32()
		if err != nil {
			return err
		}
		switch i {
		case 3:
			orientation = int32(uint32(v))
		case 12:
			orientationForOptical = int32(uint32(v))
		case 13:
			isRead1 = int32(uint32(v))
		case 14:
			hasLocation = int32(uint32(v))
		default:
			*fixed32Targets[i] = int32(uint32(v))
		}
	}
	s.Orientation = Orientation(orientation)
	s.OrientationForOptical = Orientation(orientationForOptical)
	s.IsRead1 = isRead1 != 0
	s.HasLocation = hasLocation != 0

	fixed64Targets := []*uint64{&s.Read1FileIdx, &s.Read2FileIdx, &s.BarcodeHash, &s.Read1BarcodeHash, &s.Read2BarcodeHash}
	for _, t := range fixed64Targets {
		v, err := pb.DecodeFixed64()
		if err != nil {
			return err
		}
		*t = v
	}
	hasBarcodes, err := pb.DecodeFixed32()
	if err != nil {
		return err
	}
	s.HasBarcodes = hasBarcodes != 0

	strs := []*string{&s.Barcode, &s.Read1Barcode, &s.Read2Barcode, &s.FirstEncounteredReadName}
	for _, t := range strs {
		v, err := pb.DecodeStringBytes()
		if err != nil {
			return err
		}
		*t = v
	}
	return nil
}
