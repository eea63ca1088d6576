package markduplicates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOpticalLocationFiveFields(t *testing.T) {
	loc := parseOpticalLocation("machine:1:2:300:400")
	assert.True(t, loc.ok)
	assert.Equal(t, 1, loc.Lane)
	assert.Equal(t, 2, loc.Tile)
	assert.Equal(t, 300, loc.X)
	assert.Equal(t, 400, loc.Y)
}

func TestParseOpticalLocationSevenFields(t *testing.T) {
	loc := parseOpticalLocation("inst:run:flowcell:1:2:300:400")
	assert.True(t, loc.ok)
	assert.Equal(t, 1, loc.Lane)
	assert.Equal(t, 2, loc.Tile)
	assert.Equal(t, 300, loc.X)
	assert.Equal(t, 400, loc.Y)
}

func TestParseOpticalLocationUnrecognizedLayout(t *testing.T) {
	loc := parseOpticalLocation("not-illumina-formatted")
	assert.False(t, loc.ok)

	loc = parseOpticalLocation("a:b:c:d:e:f:not-a-number")
	assert.False(t, loc.ok)
}

func TestOpticalDistanceSquared(t *testing.T) {
	a := opticalLocation{X: 0, Y: 0, ok: true}
	b := opticalLocation{X: 3, Y: 4, ok: true}
	assert.Equal(t, 25, opticalDistanceSquared(a, b))
}

func TestClusterOpticalMarksWithinDistance(t *testing.T) {
	members := []opticalMember{
		{location: opticalLocation{Lane: 1, Tile: 1, X: 0, Y: 0, ok: true}},   // best
		{location: opticalLocation{Lane: 1, Tile: 1, X: 10, Y: 0, ok: true}},  // within 100px
		{location: opticalLocation{Lane: 1, Tile: 1, X: 500, Y: 0, ok: true}}, // far away
	}
	count := clusterOptical(members, 0, 100)
	assert.Equal(t, 1, count)
	assert.False(t, members[0].isDuplicate)
	assert.True(t, members[1].isDuplicate)
	assert.False(t, members[2].isDuplicate)
}

func TestClusterOpticalIgnoresOtherTiles(t *testing.T) {
	members := []opticalMember{
		{location: opticalLocation{Lane: 1, Tile: 1, X: 0, Y: 0, ok: true}},
		{location: opticalLocation{Lane: 1, Tile: 2, X: 1, Y: 0, ok: true}}, // same coords, different tile
	}
	count := clusterOptical(members, 0, 100)
	assert.Equal(t, 0, count)
}

func TestClusterOpticalTransitiveWithinTile(t *testing.T) {
	// best at 0,0; member 1 at 90,0 (within 100 of best); member 2 at
	// 180,0 (not within 100 of best, but within 100 of member 1) —
	// the transitive closure must still mark member 2.
	members := []opticalMember{
		{location: opticalLocation{Lane: 1, Tile: 1, X: 0, Y: 0, ok: true}},
		{location: opticalLocation{Lane: 1, Tile: 1, X: 90, Y: 0, ok: true}},
		{location: opticalLocation{Lane: 1, Tile: 1, X: 180, Y: 0, ok: true}},
	}
	count := clusterOptical(members, 0, 100)
	assert.Equal(t, 2, count)
	assert.True(t, members[1].isDuplicate)
	assert.True(t, members[2].isDuplicate)
}

func TestClusterOpticalSkipsMembersWithNoLocation(t *testing.T) {
	members := []opticalMember{
		{location: opticalLocation{Lane: 1, Tile: 1, X: 0, Y: 0, ok: true}},
		{location: opticalLocation{ok: false}},
	}
	count := clusterOptical(members, 0, 100)
	assert.Equal(t, 0, count)
}
