package markduplicates

import (
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
)

func TestOrientationSingle(t *testing.T) {
	assert.Equal(t, OrientF, orientationSingle(false))
	assert.Equal(t, OrientR, orientationSingle(true))
	assert.True(t, OrientF.isSingle())
	assert.True(t, OrientR.isSingle())
	assert.False(t, OrientFF.isSingle())
}

func TestOrientationPairEncoding(t *testing.T) {
	assert.Equal(t, OrientFF, orientationPair(false, false))
	assert.Equal(t, OrientFR, orientationPair(false, true))
	assert.Equal(t, OrientRF, orientationPair(true, false))
	assert.Equal(t, OrientRR, orientationPair(true, true))
}

func TestOrientationString(t *testing.T) {
	for o, want := range map[Orientation]string{
		OrientF: "F", OrientR: "R", OrientFF: "FF",
		OrientFR: "FR", OrientRF: "RF", OrientRR: "RR",
	} {
		assert.Equal(t, want, o.String())
	}
	assert.Equal(t, "?", Orientation(99).String())
}

func TestUnclippedFivePrimePositionForwardUsesStart(t *testing.T) {
	r := newTestRecord(t, "A", sam.Paired)
	r.Pos = 100
	r.Cigar = []sam.CigarOp{
		sam.NewCigarOp(sam.CigarSoftClipped, 5),
		sam.NewCigarOp(sam.CigarMatch, 20),
	}
	assert.Equal(t, 95, unclippedFivePrimePosition(r))
}

func TestUnclippedFivePrimePositionReverseUsesEnd(t *testing.T) {
	r := newTestRecord(t, "A", sam.Paired|sam.Reverse)
	r.Pos = 100
	r.Cigar = []sam.CigarOp{
		sam.NewCigarOp(sam.CigarMatch, 20),
		sam.NewCigarOp(sam.CigarSoftClipped, 3),
	}
	// End() = Pos + 20 (reference-consuming bases) = 120; plus the
	// trailing soft clip of 3 extends the unclipped end to 123.
	assert.Equal(t, 123, unclippedFivePrimePosition(r))
}

func TestHasNoMappedMate(t *testing.T) {
	paired := newTestRecord(t, "A", sam.Paired)
	assert.False(t, hasNoMappedMate(paired))

	mateUnmapped := newTestRecord(t, "B", sam.Paired|sam.MateUnmapped)
	assert.True(t, hasNoMappedMate(mateUnmapped))

	unpaired := newTestRecord(t, "C", 0)
	assert.True(t, hasNoMappedMate(unpaired))
}

func TestIsRead1(t *testing.T) {
	r1 := newTestRecord(t, "A", sam.Paired|sam.Read1)
	r2 := newTestRecord(t, "B", sam.Paired|sam.Read2)
	assert.True(t, isRead1(r1))
	assert.False(t, isRead1(r2))
}
