package markduplicates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairLessOrdersByLibraryThenPosition(t *testing.T) {
	a := Signature{LibraryID: 0, Read1RefID: 0, Read1Coord: 100, Orientation: OrientFR}
	b := Signature{LibraryID: 0, Read1RefID: 0, Read1Coord: 200, Orientation: OrientFR}
	c := Signature{LibraryID: 1, Read1RefID: 0, Read1Coord: 50, Orientation: OrientFR}

	assert.True(t, pairLess(&a, &b))
	assert.False(t, pairLess(&b, &a))
	assert.True(t, pairLess(&b, &c), "library id dominates position")
}

func TestPairLessTiebreaksOnFileIndex(t *testing.T) {
	a := Signature{Read1FileIdx: 3, Read2FileIdx: 9}
	b := Signature{Read1FileIdx: 3, Read2FileIdx: 10}
	assert.True(t, pairLess(&a, &b))
}

func TestFragmentLessIgnoresRead2Fields(t *testing.T) {
	a := Signature{Read1RefID: 0, Read1Coord: 100, Orientation: OrientF, Read2RefID: 5, Read1FileIdx: 1}
	b := Signature{Read1RefID: 0, Read1Coord: 100, Orientation: OrientF, Read2RefID: 9, Read1FileIdx: 2}
	assert.True(t, fragmentLess(&a, &b), "read2 fields must not affect fragment ordering")
}

func TestIsComparablePair(t *testing.T) {
	base := Signature{LibraryID: 1, Read1RefID: 0, Read1Coord: 10, Orientation: OrientFR, Read2RefID: 0, Read2Coord: 200}
	same := base
	diffLib := base
	diffLib.LibraryID = 2
	diffPos := base
	diffPos.Read1Coord = 11
	diffMate := base
	diffMate.Read2Coord = 201

	assert.True(t, isComparablePair(&base, &same, false, 0))
	assert.False(t, isComparablePair(&base, &diffLib, false, 0))
	assert.False(t, isComparablePair(&base, &diffPos, false, 0))
	assert.False(t, isComparablePair(&base, &diffMate, false, 0))
}

func TestIsComparablePairBarcodeAware(t *testing.T) {
	a := Signature{BarcodeHash: 1, Read1BarcodeHash: 2, Read2BarcodeHash: 3}
	b := Signature{BarcodeHash: 1, Read1BarcodeHash: 2, Read2BarcodeHash: 4}

	assert.True(t, isComparablePair(&a, &b, false, 0), "barcodes are ignored when not in use")
	assert.False(t, isComparablePair(&a, &b, true, 0), "barcodes must match when in use")
}

func TestIsComparableFragmentIgnoresRead2(t *testing.T) {
	a := Signature{LibraryID: 0, Read1RefID: 0, Read1Coord: 5, Orientation: OrientF, Read2RefID: -1}
	b := Signature{LibraryID: 0, Read1RefID: 0, Read1Coord: 5, Orientation: OrientF, Read2RefID: 3}
	assert.True(t, isComparableFragment(&a, &b, false, 0))
}

func TestIsSingleAndIsPairLike(t *testing.T) {
	frag := Signature{Orientation: OrientF, Read2RefID: sentinelRefID}
	assert.True(t, frag.IsSingle())
	assert.False(t, frag.IsPairLike())

	pairLike := Signature{Orientation: OrientF, Read2RefID: 2}
	assert.True(t, pairLike.IsSingle(), "orientation alone determines IsSingle")
	assert.True(t, pairLike.IsPairLike())

	pair := Signature{Orientation: OrientFR, Read2RefID: 2}
	assert.False(t, pair.IsSingle())
}
