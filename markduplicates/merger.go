package markduplicates

import (
	"io"

	"github.com/biogo/hts/sam"
	"github.com/pkg/errors"

	"github.com/s70c3/markdup/sortcol"
)

// sentinelIndex is the "+∞" an exhausted cursor yields, per spec
// §4.5's advance rule.
const sentinelIndex = ^uint64(0)

// indexCursor drives the sticky, dual-mode matching spec §4.5
// describes for the duplicate-index and optical-index streams: it
// holds the next pending file index, and — under query-name ordering
// only — remembers the query-name of the group that most recently
// matched, so later records sharing that name inherit the same
// decision even though their raw file position has moved past the
// stored index.
type indexCursor struct {
	it        sortcol.Iterator[uint64]
	next      uint64
	exhausted bool

	lastQueryName string
	hasMatch      bool
}

func newIndexCursor(it sortcol.Iterator[uint64]) (*indexCursor, error) {
	c := &indexCursor{it: it}
	return c, c.advance()
}

func (c *indexCursor) advance() error {
	if !c.it.Scan() {
		c.exhausted = true
		c.next = sentinelIndex
		return c.it.Err()
	}
	c.next = c.it.Record()
	return nil
}

func (c *indexCursor) check(i uint64, queryName string, order SortOrder) (bool, error) {
	if i == c.next {
		c.lastQueryName = queryName
		c.hasMatch = true
		return true, c.advance()
	}
	if order == QueryNameOrder && c.hasMatch && queryName == c.lastQueryName {
		return true, nil
	}
	return false, nil
}

// repInfoCursor is the same sticky discipline over the
// representative-info stream, whose payload (set size, representative
// read name) a match carries along.
type repInfoCursor struct {
	it        sortcol.Iterator[RepInfo]
	next      RepInfo
	exhausted bool

	lastQueryName string
	lastPayload   RepInfo
	hasMatch      bool
}

func newRepInfoCursor(it sortcol.Iterator[RepInfo]) (*repInfoCursor, error) {
	c := &repInfoCursor{it: it, next: RepInfo{Index: sentinelIndex}}
	return c, c.advance()
}

func (c *repInfoCursor) advance() error {
	if !c.it.Scan() {
		c.exhausted = true
		c.next = RepInfo{Index: sentinelIndex}
		return c.it.Err()
	}
	c.next = c.it.Record()
	return nil
}

func (c *repInfoCursor) check(i uint64, queryName string, order SortOrder) (RepInfo, bool, error) {
	if i == c.next.Index {
		c.lastPayload = c.next
		c.lastQueryName = queryName
		c.hasMatch = true
		payload := c.lastPayload
		return payload, true, c.advance()
	}
	if order == QueryNameOrder && c.hasMatch && queryName == c.lastQueryName {
		return c.lastPayload, true, nil
	}
	return RepInfo{}, false, nil
}

// runPass3 implements spec §4.5: replay the input a second time, in
// original file order, merging it against the sorted duplicate-index,
// optical-index, and (optionally) representative-info streams with
// one forward cursor each, and write every record's final form —
// tagged, flagged, or dropped — to out.
func (e *Engine) runPass3(b *buildResult, d *detectResult, replay RecordSource, out Sink) (*MetricsCollection, error) {
	dupIt, err := d.dupIndex.Iterate()
	if err != nil {
		return nil, errors.Wrap(err, "iterating duplicate-index sorter")
	}
	defer dupIt.Close()
	dupCursor, err := newIndexCursor(dupIt)
	if err != nil {
		return nil, errors.Wrap(err, "duplicate-index cursor")
	}

	opticalIt, err := d.opticalIndex.Iterate()
	if err != nil {
		return nil, errors.Wrap(err, "iterating optical-index sorter")
	}
	defer opticalIt.Close()
	opticalCursor, err := newIndexCursor(opticalIt)
	if err != nil {
		return nil, errors.Wrap(err, "optical-index cursor")
	}

	var repCursor *repInfoCursor
	if d.repInfo != nil {
		repIt, err := d.repInfo.Iterate()
		if err != nil {
			return nil, errors.Wrap(err, "iterating representative-info sorter")
		}
		defer repIt.Close()
		repCursor, err = newRepInfoCursor(repIt)
		if err != nil {
			return nil, errors.Wrap(err, "representative-info cursor")
		}
	}

	cfg := e.cfg
	metrics := d.metrics

	var index int64
	for {
		r, err := replay.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newDataError(index, "replay source", err)
		}

		lib := getLibrary(b.readGroupLibrary, r)
		switch {
		case r.Flags&sam.Unmapped != 0:
			metrics.observeUnmapped(lib)
		case r.Flags&(sam.Secondary|sam.Supplementary) != 0:
			metrics.observeSecondaryOrSupplementary(lib)
		}

		clearDupFlagTags(r)

		fileIdx := uint64(index)
		isDup, err := dupCursor.check(fileIdx, r.Name, e.order)
		if err != nil {
			return nil, newDataError(index, "duplicate-index sorter", err)
		}

		if isDup {
			isOptical, err := opticalCursor.check(fileIdx, r.Name, e.order)
			if err != nil {
				return nil, newDataError(index, "optical-index sorter", err)
			}

			if cfg.RemoveDuplicates || (cfg.RemoveSequencingDuplicates && isOptical) {
				index++
				continue
			}

			r.Flags |= sam.Duplicate
			if cfg.TaggingPolicy == All || (cfg.TaggingPolicy == OpticalOnly && isOptical) {
				dt := "LB"
				if isOptical {
					dt = "SQ"
				}
				aux, err := sam.NewAux(dtTag, dt)
				if err != nil {
					return nil, newDataError(index, "DT tag", err)
				}
				r.AuxFields = append(r.AuxFields, aux)
			}
		}

		if cfg.TagRepresentativeRead && repCursor != nil {
			rep, ok, err := repCursor.check(fileIdx, r.Name, e.order)
			if err != nil {
				return nil, newDataError(index, "representative-info sorter", err)
			}
			if ok {
				rrAux, err := sam.NewAux(rrTag, rep.ReadName)
				if err != nil {
					return nil, newDataError(index, "RR tag", err)
				}
				dsAux, err := sam.NewAux(dsTag, int(rep.SetSize))
				if err != nil {
					return nil, newDataError(index, "DS tag", err)
				}
				r.AuxFields = append(r.AuxFields, rrAux, dsAux)
			}
		}

		if err := out.Put(r); err != nil {
			return nil, newDataError(index, "output sink", err)
		}
		index++
	}

	return metrics, nil
}
