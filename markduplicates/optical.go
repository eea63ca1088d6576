package markduplicates

import (
	"strconv"
	"strings"
)

// opticalLocation is a read's physical position on the flowcell,
// parsed from an Illumina-style read name. Grounded on the teacher's
// PhysicalLocation/ParseLocation, trimmed to the fields the clusterer
// actually needs: lane, tile, and the X/Y well coordinates.
type opticalLocation struct {
	Lane int
	Tile int
	X    int
	Y    int
	ok   bool
}

// Illumina read names carry 5, 7, or 8 colon-separated fields; the
// field immediately before tile/X/Y is lane.
const (
	fields5Lane = 2
	fields7Lane = 4
	fields8Lane = 4
)

// parseOpticalLocation extracts lane/tile/x/y from qname. ok is false
// when qname does not match a recognized Illumina layout, in which
// case the caller must treat the read as having no resolvable optical
// position (it cannot participate in optical clustering).
func parseOpticalLocation(qname string) opticalLocation {
	f := strings.Split(qname, ":")
	var laneIdx int
	switch len(f) {
	case 5:
		laneIdx = fields5Lane
	case 7:
		laneIdx = fields7Lane
	case 8:
		laneIdx = fields8Lane
	default:
		return opticalLocation{}
	}
	lane, err1 := strconv.Atoi(f[laneIdx-1])
	tile, err2 := strconv.Atoi(f[laneIdx])
	x, err3 := strconv.Atoi(f[laneIdx+1])
	y, err4 := strconv.Atoi(f[laneIdx+2])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return opticalLocation{}
	}
	return opticalLocation{Lane: lane, Tile: tile, X: x, Y: y, ok: true}
}

func opticalDistanceSquared(a, b opticalLocation) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// opticalMember is one chunk element as seen by the optical clusterer.
type opticalMember struct {
	location    opticalLocation
	isDuplicate bool
}

// clusterOptical sub-classifies a flushed, multi-element chunk into
// optical vs. non-optical (library-prep) duplicates. It batches
// members by (lane, tile) before comparing, following the teacher's
// TileOpticalDetector: within one flowcell tile the member count is
// small, so a direct pairwise distance check is as fast as building a
// spatial index, and the tile batching already prunes the cross-tile
// comparisons that would dominate a global all-pairs scan.
//
// members[bestIdx] is the chunk's chosen representative; every other
// member within maxDist of it, or transitively within range of another
// already-marked member in the same tile, is flagged optical. Returns
// the number of members flagged.
func clusterOptical(members []opticalMember, bestIdx int, maxDist int) int {
	maxDistSq := maxDist * maxDist
	type tileKey struct{ lane, tile int }
	batches := make(map[tileKey][]int)
	for i, m := range members {
		if !m.location.ok {
			continue
		}
		k := tileKey{m.location.Lane, m.location.Tile}
		batches[k] = append(batches[k], i)
	}

	bestLoc := members[bestIdx].location
	bestKey := tileKey{bestLoc.Lane, bestLoc.Tile}
	count := 0

	for k, idxs := range batches {
		if k == bestKey {
			for _, i := range idxs {
				if i == bestIdx {
					continue
				}
				if opticalDistanceSquared(members[i].location, bestLoc) <= maxDistSq {
					members[i].isDuplicate = true
				}
			}
		}
		// Transitive closure within the tile, matching the teacher's
		// best-vs-all then all-vs-all two-phase sweep.
		changed := true
		for changed {
			changed = false
			for _, i := range idxs {
				if i == bestIdx || members[i].isDuplicate {
					continue
				}
				for _, j := range idxs {
					if j == i || !members[j].isDuplicate {
						continue
					}
					if opticalDistanceSquared(members[i].location, members[j].location) <= maxDistSq {
						members[i].isDuplicate = true
						changed = true
						break
					}
				}
			}
		}
	}
	for _, m := range members {
		if m.isDuplicate {
			count++
		}
	}
	return count
}
