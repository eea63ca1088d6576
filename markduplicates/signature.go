package markduplicates

// Signature is the fixed-width key the engine sorts and groups on. A
// fragment signature describes one primary mapped read; a pair
// signature describes a completed mate pair. The two shapes share one
// struct with optional slots (see DESIGN.md) rather than a type
// hierarchy: the read2 fields carry sentinelRefID/sentinelCoord for a
// lone fragment.
//
// The sort orders are defined field by field in pairLess and
// fragmentLess; the struct's field order plays no part in them.
type Signature struct {
	LibraryID int32

	Read1RefID    int32
	Read1Coord    int32
	Orientation   Orientation
	Read1FileIdx  uint64

	Read2RefID   int32
	Read2Coord   int32
	Read2FileIdx uint64

	// Optical location, valid only when HasLocation is set (the read
	// name did not match a recognized Illumina layout otherwise).
	ReadGroupOrdinal int32
	HasLocation      bool
	Lane             int32
	Tile             int32
	X                int32
	Y                int32

	Score int32

	// OrientationForOptical fixes first-of-pair in the leading
	// position, independent of which mate sorts first positionally.
	OrientationForOptical Orientation

	HasBarcodes      bool
	BarcodeHash      uint64
	Read1BarcodeHash uint64
	Read2BarcodeHash uint64

	// Raw barcode strings, kept only so BARCODE_MAX_MISMATCH > 0 can
	// run matchr.Levenshtein against them; when fuzzy matching is off
	// these are never read and the hashes above are authoritative.
	Barcode      string
	Read1Barcode string
	Read2Barcode string

	// FirstEncounteredReadName is set on every pair signature and read
	// only by representative-read tagging. Per the documented behavior in spec.md §9, for a
	// pair signature this is the name of the *second* mate observed
	// (the one that completes the pair), not the first.
	FirstEncounteredReadName string

	// IsRead1 is meaningful only while a fragment signature sits in
	// the unmatched-mate map awaiting its mate: it records whether the
	// stored end was the first-of-pair segment, so the completing end
	// can compute OrientationForOptical with "the first-of-pair's
	// strand first" regardless of which end arrived first in stream
	// order. Unused once a pair signature is finalized.
	IsRead1 bool
}

const sentinelRefID = -1
const sentinelCoord = -1

// IsSingle reports whether sig has a single-read orientation (F or R),
// i.e. is a fragment-sorter entry rather than a completed pair. It looks
// at the orientation only; read2 fields are not consulted (see
// IsPairLike).
func (s *Signature) IsSingle() bool {
	return s.Orientation.isSingle()
}

// IsPairLike reports whether the fragment signature was built from
// the primary side of a pair whose mate is mapped (read2-reference-index
// populated even though this is a fragment-sorter entry). Used by the
// fragment sweep to distinguish a true lone fragment from "one side of
// a pair, viewed as a fragment".
func (s *Signature) IsPairLike() bool {
	return s.Read2RefID != sentinelRefID
}

// pairLess implements the pair sorter's total order: library, then
// left position/orientation, then right position, then file index as
// a final deterministic tiebreak. This is the same key ordering the
// teacher's sortingTable.Less uses for picard-compatible output.
func pairLess(a, b *Signature) bool {
	if a.LibraryID != b.LibraryID {
		return a.LibraryID < b.LibraryID
	}
	if a.Read1RefID != b.Read1RefID {
		return a.Read1RefID < b.Read1RefID
	}
	if a.Read1Coord != b.Read1Coord {
		return a.Read1Coord < b.Read1Coord
	}
	if a.Orientation != b.Orientation {
		return a.Orientation < b.Orientation
	}
	if a.Read2RefID != b.Read2RefID {
		return a.Read2RefID < b.Read2RefID
	}
	if a.Read2Coord != b.Read2Coord {
		return a.Read2Coord < b.Read2Coord
	}
	if a.Read1FileIdx != b.Read1FileIdx {
		return a.Read1FileIdx < b.Read1FileIdx
	}
	return a.Read2FileIdx < b.Read2FileIdx
}

// fragmentLess is the fragment sorter's total order; it sorts on the
// same library/read1-position/orientation prefix as pairLess, then on
// Read1FileIdx as the tiebreak. Read2 fields are not compared at all,
// matching isComparableFragment.
func fragmentLess(a, b *Signature) bool {
	if a.LibraryID != b.LibraryID {
		return a.LibraryID < b.LibraryID
	}
	if a.Read1RefID != b.Read1RefID {
		return a.Read1RefID < b.Read1RefID
	}
	if a.Read1Coord != b.Read1Coord {
		return a.Read1Coord < b.Read1Coord
	}
	if a.Orientation != b.Orientation {
		return a.Orientation < b.Orientation
	}
	return a.Read1FileIdx < b.Read1FileIdx
}

// isComparablePair implements spec §4.4 rule (1)-(4) for the pair
// sweep: equal library, equal barcode triple (when in use), equal
// (read1RefID, read1Coord, orientation), equal (read2RefID, read2Coord).
func isComparablePair(a, b *Signature, barcodesInUse bool, maxBarcodeMismatch int) bool {
	if a.LibraryID != b.LibraryID {
		return false
	}
	if barcodesInUse && !barcodeTripleMatches(a, b, maxBarcodeMismatch) {
		return false
	}
	if a.Read1RefID != b.Read1RefID || a.Read1Coord != b.Read1Coord || a.Orientation != b.Orientation {
		return false
	}
	return a.Read2RefID == b.Read2RefID && a.Read2Coord == b.Read2Coord
}

// isComparableFragment implements the fragment sweep's grouping rule,
// which ignores read2 fields entirely.
func isComparableFragment(a, b *Signature, barcodesInUse bool, maxBarcodeMismatch int) bool {
	if a.LibraryID != b.LibraryID {
		return false
	}
	if barcodesInUse && !barcodeTripleMatches(a, b, maxBarcodeMismatch) {
		return false
	}
	return a.Read1RefID == b.Read1RefID && a.Read1Coord == b.Read1Coord && a.Orientation == b.Orientation
}
