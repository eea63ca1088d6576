package markduplicates

import (
	"math"

	"github.com/pkg/errors"

	"github.com/s70c3/markdup/sortcol"
)

// detectResult holds the three index streams Pass 2 produces: the
// duplicate-index sorter, the optical-index sorter, and (when
// representative tagging is enabled) the representative-info sorter.
type detectResult struct {
	dupIndex     *sortcol.SortingCollection[uint64]
	opticalIndex *sortcol.SortingCollection[uint64]
	repInfo      *sortcol.SortingCollection[RepInfo]

	metrics *MetricsCollection
}

func (d *detectResult) cleanup() {
	d.dupIndex.Cleanup()
	d.opticalIndex.Cleanup()
	if d.repInfo != nil {
		d.repInfo.Cleanup()
	}
}

const indexSorterHandleBudget = 100000

func (e *Engine) runPass2(b *buildResult) (*detectResult, error) {
	cfg := e.cfg
	indexBudget := cfg.indexSorterBudget()

	dupIndex, err := sortcol.New[uint64](sortcol.Uint64Less, sortcol.Uint64Codec{}, indexBudget, cfg.TempDirs, indexSorterHandleBudget)
	if err != nil {
		return nil, wrapConfigError(err, "constructing duplicate-index sorter")
	}
	opticalIndex, err := sortcol.New[uint64](sortcol.Uint64Less, sortcol.Uint64Codec{}, indexBudget, cfg.TempDirs, indexSorterHandleBudget)
	if err != nil {
		return nil, wrapConfigError(err, "constructing optical-index sorter")
	}
	var repInfo *sortcol.SortingCollection[RepInfo]
	if cfg.TagRepresentativeRead {
		repInfo, err = sortcol.New[RepInfo](repInfoLess, repInfoCodec{}, indexBudget, cfg.TempDirs, indexSorterHandleBudget)
		if err != nil {
			return nil, wrapConfigError(err, "constructing representative-info sorter")
		}
	}

	d := &detectResult{dupIndex: dupIndex, opticalIndex: opticalIndex, repInfo: repInfo, metrics: newMetricsCollection(b.libraries)}

	if err := e.pairSweep(b, d); err != nil {
		return nil, err
	}
	if err := e.fragmentSweep(b, d); err != nil {
		return nil, err
	}

	if err := dupIndex.DoneAdding(); err != nil {
		return nil, errors.Wrap(err, "duplicate-index sorter")
	}
	if err := opticalIndex.DoneAdding(); err != nil {
		return nil, errors.Wrap(err, "optical-index sorter")
	}
	if repInfo != nil {
		if err := repInfo.DoneAdding(); err != nil {
			return nil, errors.Wrap(err, "representative-info sorter")
		}
	}
	return d, nil
}

// indexSorterBudget implements §5's halved-when-both-active rule for
// the duplicate- and optical-index sorters, and the 356-byte unit
// when representative tagging is also active.
func (c Config) indexSorterBudget() int {
	unitBytes := 8.0
	if c.TagRepresentativeRead {
		unitBytes = 356.0 // two 8-byte indices + one fixed representative record
	}
	if c.MaxHeapBytes <= 0 {
		return 100000
	}
	n := int(float64(c.MaxHeapBytes) * 0.25 / unitBytes)
	if c.opticalClusteringEnabled() {
		n /= 2
	}
	if n < 1000 {
		n = 1000
	}
	return n
}

// pairSweep implements spec §4.4's pair sweep: chunk consecutive,
// comparable pair signatures from the pair sorter and flush each
// chunk's duplicate decision.
func (e *Engine) pairSweep(b *buildResult, d *detectResult) error {
	it, err := b.pairSorter.Iterate()
	if err != nil {
		return errors.Wrap(err, "iterating pair sorter")
	}
	defer it.Close()

	barcodesInUse := e.cfg.barcodesInUse()
	maxMismatch := e.cfg.BarcodeMaxMismatch

	var chunk []Signature
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		d.metrics.observePairExamined(chunk)
		if len(chunk) > 1 {
			if err := e.markDuplicatePairs(chunk, d); err != nil {
				return err
			}
			if e.cfg.TagRepresentativeRead {
				if err := e.markRepresentativeRead(chunk, d); err != nil {
					return err
				}
			}
		}
		chunk = chunk[:0]
		return nil
	}

	for it.Scan() {
		sig := it.Record()
		if len(chunk) > 0 && !isComparablePair(&chunk[0], &sig, barcodesInUse, maxMismatch) {
			if err := flush(); err != nil {
				return err
			}
		}
		chunk = append(chunk, sig)
	}
	if err := it.Err(); err != nil {
		return errors.Wrap(err, "reading pair sorter")
	}
	return flush()
}

// markDuplicatePairs implements spec §4.4's markDuplicatePairs: pick
// the max-score element as the chunk's representative, sub-classify
// every other element via the optical clusterer, and emit every
// non-representative element's file indices to the duplicate (and,
// where applicable, optical) index sorters.
func (e *Engine) markDuplicatePairs(chunk []Signature, d *detectResult) error {
	bestIdx := bestByScore(chunk)
	best := chunk[bestIdx]

	members := make([]opticalMember, len(chunk))
	for i, s := range chunk {
		members[i] = opticalMember{location: opticalLocation{Lane: int(s.Lane), Tile: int(s.Tile), X: int(s.X), Y: int(s.Y), ok: s.HasLocation}}
	}
	opticalEnabled := e.cfg.opticalClusteringEnabled()
	var opticalCount int
	if opticalEnabled {
		opticalCount = clusterOptical(members, bestIdx, e.cfg.OpticalDuplicatePixelDistance)
		for i, m := range members {
			if m.isDuplicate {
				d.metrics.addOpticalDistance(len(chunk), math.Sqrt(float64(opticalDistanceSquared(members[i].location, members[bestIdx].location))))
			}
		}
	}
	d.metrics.observePairOptical(best.LibraryID, opticalCount)

	requestOpticalIndexing := d.repInfo != nil || opticalEnabled
	for i, s := range chunk {
		if i == bestIdx {
			continue
		}
		if err := d.dupIndex.Add(s.Read1FileIdx); err != nil {
			return err
		}
		if s.Read2FileIdx != s.Read1FileIdx {
			if err := d.dupIndex.Add(s.Read2FileIdx); err != nil {
				return err
			}
		}
		if members[i].isDuplicate && requestOpticalIndexing {
			if err := d.opticalIndex.Add(s.Read1FileIdx); err != nil {
				return err
			}
			if s.Read2FileIdx != s.Read1FileIdx {
				if err := d.opticalIndex.Add(s.Read2FileIdx); err != nil {
					return err
				}
			}
		}
	}
	d.metrics.observePairDuplicates(best.LibraryID, len(chunk)-1)
	return nil
}

// markRepresentativeRead implements spec §4.4's markRepresentativeRead.
func (e *Engine) markRepresentativeRead(chunk []Signature, d *detectResult) error {
	bestIdx := bestByScore(chunk)
	best := chunk[bestIdx]
	for _, s := range chunk {
		if err := d.repInfo.Add(RepInfo{Index: s.Read1FileIdx, SetSize: int32(len(chunk)), ReadName: best.FirstEncounteredReadName}); err != nil {
			return err
		}
	}
	return nil
}

// fragmentSweep implements spec §4.4's fragment sweep.
func (e *Engine) fragmentSweep(b *buildResult, d *detectResult) error {
	it, err := b.fragSorter.Iterate()
	if err != nil {
		return errors.Wrap(err, "iterating fragment sorter")
	}
	defer it.Close()

	barcodesInUse := e.cfg.barcodesInUse()
	maxMismatch := e.cfg.BarcodeMaxMismatch

	var chunk []Signature
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		d.metrics.observeFragmentExamined(chunk)

		containsPairs, containsFrags := false, false
		for _, s := range chunk {
			if s.IsPairLike() {
				containsPairs = true
			} else {
				containsFrags = true
			}
		}
		switch {
		case containsPairs && containsFrags:
			for _, s := range chunk {
				if !s.IsPairLike() {
					if err := d.dupIndex.Add(s.Read1FileIdx); err != nil {
						return err
					}
					d.metrics.observeFragmentDuplicate(s.LibraryID)
				}
			}
		case containsFrags && len(chunk) > 1:
			bestIdx := bestByScore(chunk)
			for i, s := range chunk {
				if i == bestIdx {
					continue
				}
				if err := d.dupIndex.Add(s.Read1FileIdx); err != nil {
					return err
				}
				d.metrics.observeFragmentDuplicate(s.LibraryID)
			}
		}
		chunk = chunk[:0]
		return nil
	}

	for it.Scan() {
		sig := it.Record()
		if len(chunk) > 0 && !isComparableFragment(&chunk[0], &sig, barcodesInUse, maxMismatch) {
			if err := flush(); err != nil {
				return err
			}
		}
		chunk = append(chunk, sig)
	}
	if err := it.Err(); err != nil {
		return errors.Wrap(err, "reading fragment sorter")
	}
	return flush()
}

// bestByScore finds the max-score element, ties broken by
// first-occurrence (stable), per invariant 3.
func bestByScore(chunk []Signature) int {
	best := 0
	for i := 1; i < len(chunk); i++ {
		if chunk[i].Score > chunk[best].Score {
			best = i
		}
	}
	return best
}
