package markduplicates

import (
	"github.com/antzucaro/matchr"
	"github.com/biogo/hts/sam"
	farm "github.com/dgryski/go-farm"
)

var (
	rgTag = sam.Tag{'R', 'G'}
	dtTag = sam.Tag{'D', 'T'}
	dsTag = sam.Tag{'D', 'S'}
	rrTag = sam.Tag{'R', 'R'}
)

const unknownLibrary = "Unknown Library"

// getReadGroup returns r's RG tag value and whether it was present.
// A record with no RG tag is treated as read-group-ordinal 0 per
// spec §4.7's recoverable-failure rule.
func getReadGroup(r *sam.Record) (string, bool) {
	aux := r.AuxFields.Get(rgTag)
	if aux == nil {
		return "", false
	}
	v, ok := aux.Value().(string)
	return v, ok
}

// getLibrary returns the library name for r's read group, or
// unknownLibrary if either the record has no read group or the read
// group is not present in readGroupLibrary.
func getLibrary(readGroupLibrary map[string]string, r *sam.Record) string {
	rg, found := getReadGroup(r)
	if !found {
		return unknownLibrary
	}
	lib := readGroupLibrary[rg]
	if lib == "" {
		return unknownLibrary
	}
	return lib
}

// libraryIDTable compacts library name strings into small integer ids
// for Signature.LibraryID, per the signature's "library-id" field.
type libraryIDTable struct {
	ids   map[string]int32
	names []string
}

func newLibraryIDTable() *libraryIDTable {
	return &libraryIDTable{ids: make(map[string]int32)}
}

func (t *libraryIDTable) intern(name string) int32 {
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := int32(len(t.names))
	t.ids[name] = id
	t.names = append(t.names, name)
	return id
}

func (t *libraryIDTable) name(id int32) string {
	if int(id) < 0 || int(id) >= len(t.names) {
		return unknownLibrary
	}
	return t.names[id]
}

// scoreStrategy computes a read's contribution to its signature's
// score field, selected by the DUPLICATE_SCORING_STRATEGY option.
type scoreStrategy func(r *sam.Record) int32

// sumOfBaseQScore is the default strategy: sum of base qualities at or
// above a Phred threshold, clamped to 32767/2 so two reads' scores
// still add up within the 16-bit signed range. Mirrors picard's default scorer and
// the teacher's baseQScore/simd.Accumulate8Greater.
func sumOfBaseQScore(r *sam.Record) int32 {
	const qualityThreshold = 15
	var s int32
	for _, q := range r.Qual {
		if int(q) >= qualityThreshold {
			s += int32(q)
		}
	}
	if s > 32767/2 {
		s = 32767 / 2
	}
	if isQCFailed(r) {
		s -= 32768 / 2
	}
	return s
}

// totalMappedReferenceLengthScore is an alternative
// DUPLICATE_SCORING_STRATEGY that scores by the number of
// reference-consuming, non-clipped CIGAR bases.
func totalMappedReferenceLengthScore(r *sam.Record) int32 {
	var n int
	for _, co := range r.Cigar {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch, sam.CigarDeletion:
			n += co.Len()
		}
	}
	return int32(n)
}

func isQCFailed(r *sam.Record) bool {
	return r.Flags&sam.QCFail != 0
}

// hashBarcode compacts a barcode tag's string value into a 64-bit
// integer via farm hash, matching the signature's "barcode ... integer
// hashes" field.
func hashBarcode(s string) uint64 {
	if s == "" {
		return 0
	}
	return farm.Hash64([]byte(s))
}

// barcodeTripleMatches implements comparability rule (2) from spec
// §4.4. With maxMismatch == 0 (the default, preserving spec.md's
// literal exact-match behavior) it compares the farm-hashed barcodes
// directly. With maxMismatch > 0 it falls back to matchr.Levenshtein
// over the raw barcode strings, a supplement described in
// SPEC_FULL.md.
func barcodeTripleMatches(a, b *Signature, maxMismatch int) bool {
	if maxMismatch <= 0 {
		return a.BarcodeHash == b.BarcodeHash &&
			a.Read1BarcodeHash == b.Read1BarcodeHash &&
			a.Read2BarcodeHash == b.Read2BarcodeHash
	}
	return withinMismatch(a.Barcode, b.Barcode, maxMismatch) &&
		withinMismatch(a.Read1Barcode, b.Read1Barcode, maxMismatch) &&
		withinMismatch(a.Read2Barcode, b.Read2Barcode, maxMismatch)
}

func withinMismatch(a, b string, maxMismatch int) bool {
	if a == "" && b == "" {
		return true
	}
	return matchr.Levenshtein(a, b) <= maxMismatch
}

// clearDupFlagTags strips any pre-existing duplicate marking so the
// engine can reprocess already-marked input; invariant 9's
// idempotence property relies on this.
func clearDupFlagTags(r *sam.Record) {
	r.Flags &^= sam.Duplicate
	kept := r.AuxFields[:0]
	for _, aux := range r.AuxFields {
		t := aux.Tag()
		if t == dtTag || t == dsTag || t == rrTag {
			continue
		}
		kept = append(kept, aux)
	}
	r.AuxFields = kept
}
