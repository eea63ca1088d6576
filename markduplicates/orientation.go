package markduplicates

import "github.com/biogo/hts/sam"

// Orientation encodes the strand combination of a fragment or pair
// signature. Values mirror the layout described for the signature
// record: a lone fragment uses F or R; a pair uses one of the four
// two-strand combinations.
type Orientation uint8

const (
	OrientF  Orientation = iota // Forward (single fragment)
	OrientR                     // Reverse (single fragment)
	OrientFF                    // Forward, Forward
	OrientFR                    // Forward, Reverse
	OrientRF                    // Reverse, Forward
	OrientRR                    // Reverse, Reverse
)

func (o Orientation) isSingle() bool {
	return o == OrientF || o == OrientR
}

func (o Orientation) String() string {
	switch o {
	case OrientF:
		return "F"
	case OrientR:
		return "R"
	case OrientFF:
		return "FF"
	case OrientFR:
		return "FR"
	case OrientRF:
		return "RF"
	case OrientRR:
		return "RR"
	default:
		return "?"
	}
}

// orientationSingle returns OrientF or OrientR for a lone fragment.
func orientationSingle(reversed bool) Orientation {
	if reversed {
		return OrientR
	}
	return OrientF
}

// orientationPair encodes the strand of the left (5'-most) mate in
// the high bit and the right mate's strand in the low bit, offset
// past the two single-fragment values, per spec §4.3: "(strand_of_read1
// << 1) | strand_of_read2" added to the FF base.
func orientationPair(leftReversed, rightReversed bool) Orientation {
	base := int(OrientFF)
	bit := 0
	if leftReversed {
		bit |= 2
	}
	if rightReversed {
		bit |= 1
	}
	return Orientation(base + bit)
}

// isReversedRead reports whether r is mapped to the reverse strand.
func isReversedRead(r *sam.Record) bool {
	return r.Flags&sam.Reverse != 0
}

// isRead1 reports whether r is the first segment of a pair.
func isRead1(r *sam.Record) bool {
	return r.Flags&sam.Read1 != 0
}

// hasNoMappedMate reports whether r is unpaired or has an unmapped mate.
func hasNoMappedMate(r *sam.Record) bool {
	return r.Flags&sam.Paired == 0 || r.Flags&sam.MateUnmapped != 0
}

// unclippedFivePrimePosition returns the unclipped 5' coordinate of r:
// the unclipped start on the forward strand, the unclipped end on the
// reverse strand.
func unclippedFivePrimePosition(r *sam.Record) int {
	if isReversedRead(r) {
		return unclippedEnd(r)
	}
	return unclippedStart(r)
}

func unclippedStart(r *sam.Record) int {
	pos := r.Pos
	for _, co := range r.Cigar {
		if co.Type() == sam.CigarSoftClipped || co.Type() == sam.CigarHardClipped {
			pos -= co.Len()
			continue
		}
		break
	}
	return pos
}

func unclippedEnd(r *sam.Record) int {
	pos := r.End()
	n := len(r.Cigar)
	for i := n - 1; i >= 0; i-- {
		co := r.Cigar[i]
		if co.Type() == sam.CigarSoftClipped || co.Type() == sam.CigarHardClipped {
			pos += co.Len()
			continue
		}
		break
	}
	return pos
}
