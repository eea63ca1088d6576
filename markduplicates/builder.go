package markduplicates

import (
	"io"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/s70c3/markdup/matemap"
	"github.com/s70c3/markdup/sortcol"
)

// buildResult holds everything Pass 1 produces for Pass 2 to consume:
// the two signature sorters, the library-id table, and the read-group
// lookups needed again during Pass 3's tagging.
type buildResult struct {
	pairSorter *sortcol.SortingCollection[Signature]
	fragSorter *sortcol.SortingCollection[Signature]
	mates      *matemap.Map[Signature]

	libraries        *libraryIDTable
	readGroupLibrary map[string]string
	rgOrdinal        map[string]int32

	cfg Config
}

func (b *buildResult) cleanup() {
	b.pairSorter.Cleanup()
	b.fragSorter.Cleanup()
	b.mates.Close()
}

// sorterBudget converts the configured heap fraction into a record
// count, per §5's "max_heap * SORTING_COLLECTION_SIZE_RATIO /
// record_size" split between the pair and fragment sorters.
func (c Config) sorterBudget() int {
	if c.AverageSignatureBytes <= 0 || c.MaxHeapBytes <= 0 {
		return 100000
	}
	n := int(float64(c.MaxHeapBytes) * c.SortingCollectionSizeRatio / float64(c.AverageSignatureBytes))
	if n < 1000 {
		n = 1000
	}
	return n
}

const sorterSpillHandleBudget = 100000

func (e *Engine) runPass1(src RecordSource) (*buildResult, error) {
	cfg := e.cfg
	budget := cfg.sorterBudget()

	pairSorter, err := sortcol.New[Signature](func(a, b Signature) bool { return pairLess(&a, &b) }, signatureCodec{}, budget, cfg.TempDirs, sorterSpillHandleBudget)
	if err != nil {
		return nil, wrapConfigError(err, "constructing pair sorter")
	}
	fragSorter, err := sortcol.New[Signature](func(a, b Signature) bool { return fragmentLess(&a, &b) }, signatureCodec{}, budget, cfg.TempDirs, sorterSpillHandleBudget)
	if err != nil {
		return nil, wrapConfigError(err, "constructing fragment sorter")
	}
	handleQuota := cfg.MaxFileHandlesForReadEndsMap
	if handleQuota == 0 {
		handleQuota = matemap.DefaultHandleQuota()
	}
	mates, err := matemap.New[Signature](signatureCodec{}, cfg.TempDirs, handleQuota)
	if err != nil {
		return nil, wrapConfigError(err, "constructing unmatched-mate map")
	}

	b := &buildResult{
		pairSorter:       pairSorter,
		fragSorter:       fragSorter,
		mates:            mates,
		libraries:        newLibraryIDTable(),
		readGroupLibrary: readGroupLibraries(e.header),
		rgOrdinal:        readGroupOrdinals(e.header),
		cfg:              cfg,
	}

	var index int64
	var queryNameIndex int64
	lastQName := ""

	for {
		r, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newDataError(index, "record source", err)
		}

		if e.order == QueryNameOrder && r.Name != lastQName {
			queryNameIndex = index
			lastQName = r.Name
		}
		indexForRead := index
		if e.order == QueryNameOrder {
			indexForRead = queryNameIndex
		}

		if r.Flags&sam.Unmapped != 0 {
			if e.order == CoordinateOrder && r.Ref == nil {
				break
			}
			index++
			continue
		}
		if r.Flags&(sam.Secondary|sam.Supplementary) != 0 {
			index++
			continue
		}

		if err := b.processPrimary(r, uint64(indexForRead)); err != nil {
			return nil, newDataError(index, "signature builder", err)
		}
		index++
	}

	if err := pairSorter.DoneAdding(); err != nil {
		return nil, errors.Wrap(err, "pair sorter")
	}
	if err := fragSorter.DoneAdding(); err != nil {
		return nil, errors.Wrap(err, "fragment sorter")
	}
	return b, nil
}

func refID(r *sam.Record) int32 {
	if r.Ref == nil {
		return sentinelRefID
	}
	return int32(r.Ref.ID())
}

func mateRefID(r *sam.Record) int32 {
	if r.MateRef == nil {
		return sentinelRefID
	}
	return int32(r.MateRef.ID())
}

// processPrimary implements the per-record disposition of spec §4.3
// for a primary, mapped record: build and emit its fragment
// signature, then attempt mate-pair completion via the unmatched-mate
// map.
func (b *buildResult) processPrimary(r *sam.Record, indexForRead uint64) error {
	cfg := b.cfg
	lib := getLibrary(b.readGroupLibrary, r)
	libID := b.libraries.intern(lib)
	score := cfg.scorer()(r)
	reversed := isReversedRead(r)
	pos := int32(unclippedFivePrimePosition(r))
	loc := parseOpticalLocation(r.Name)

	sig := Signature{
		LibraryID:        libID,
		Read1RefID:       refID(r),
		Read1Coord:       pos,
		Orientation:      orientationSingle(reversed),
		Read1FileIdx:     indexForRead,
		Read2RefID:       sentinelRefID,
		Read2Coord:       sentinelCoord,
		Score:            score,
		ReadGroupOrdinal: rgOrdinalFor(b.rgOrdinal, r),
		IsRead1:          isRead1(r),
	}
	if loc.ok {
		sig.HasLocation = true
		sig.Lane, sig.Tile, sig.X, sig.Y = int32(loc.Lane), int32(loc.Tile), int32(loc.X), int32(loc.Y)
	}
	if !hasNoMappedMate(r) {
		sig.Read2RefID = mateRefID(r)
	}
	if cfg.barcodesInUse() {
		applyBarcodes(&sig, r, cfg)
	}

	if err := b.fragSorter.Add(sig); err != nil {
		return err
	}

	if hasNoMappedMate(r) {
		return nil
	}

	rg, _ := getReadGroup(r)
	key := rg + ":" + r.Name

	if partner, ok := b.mates.Remove(refID(r), key); ok {
		return b.completePair(&partner, &sig, r.Name)
	}
	if err := b.mates.Err(refID(r)); err != nil {
		return err
	}
	return b.mates.Put(mateRefID(r), key, sig)
}

func rgOrdinalFor(table map[string]int32, r *sam.Record) int32 {
	rg, ok := getReadGroup(r)
	if !ok {
		log.Debug.Printf("record %s has no RG tag, treating as read-group-ordinal 0", r.Name)
		return 0
	}
	return table[rg]
}

func applyBarcodes(sig *Signature, r *sam.Record, cfg Config) {
	sig.HasBarcodes = true
	if cfg.BarcodeTag != "" {
		if v, ok := auxString(r, cfg.BarcodeTag); ok {
			sig.Barcode = v
			sig.BarcodeHash = hashBarcode(v)
		}
	}
	if cfg.ReadOneBarcodeTag != "" {
		if v, ok := auxString(r, cfg.ReadOneBarcodeTag); ok {
			sig.Read1Barcode = v
			sig.Read1BarcodeHash = hashBarcode(v)
		}
	}
	if cfg.ReadTwoBarcodeTag != "" {
		if v, ok := auxString(r, cfg.ReadTwoBarcodeTag); ok {
			sig.Read2Barcode = v
			sig.Read2BarcodeHash = hashBarcode(v)
		}
	}
}

func auxString(r *sam.Record, tagName string) (string, bool) {
	if len(tagName) != 2 {
		return "", false
	}
	tag := sam.Tag{tagName[0], tagName[1]}
	aux := r.AuxFields.Get(tag)
	if aux == nil {
		return "", false
	}
	v, ok := aux.Value().(string)
	return v, ok
}

// completePair merges the stored partial signature (the first-seen
// mate) with the completing mate's signature, per spec §4.3's "Hit"
// branch: reorder by (reference-index, coordinate), recompute
// orientation and the optical-specific orientation, sum the scores,
// and emit the combined pair signature.
func (b *buildResult) completePair(partner, cur *Signature, completingReadName string) error {
	first, second := partner, cur
	if laterThan(partner, cur) {
		first, second = cur, partner
	}

	pairSig := *first
	pairSig.Read2RefID = second.Read1RefID
	pairSig.Read2Coord = second.Read1Coord
	pairSig.Read2FileIdx = second.Read1FileIdx
	pairSig.Orientation = orientationPair(leftReversed(first), leftReversed(second))
	pairSig.Score = first.Score + second.Score

	// OrientationForOptical fixes first-of-pair in the leading
	// position regardless of genomic order.
	r1, r2 := partner, cur
	if cur.IsRead1 {
		r1, r2 = cur, partner
	}
	pairSig.OrientationForOptical = orientationPair(leftReversed(r1), leftReversed(r2))
	pairSig.IsRead1 = false

	if pairSig.HasBarcodes || second.HasBarcodes {
		pairSig.HasBarcodes = true
		if pairSig.Barcode == "" {
			pairSig.Barcode = second.Barcode
			pairSig.BarcodeHash = second.BarcodeHash
		}
		if pairSig.Read1Barcode == "" {
			pairSig.Read1Barcode = second.Read1Barcode
			pairSig.Read1BarcodeHash = second.Read1BarcodeHash
		}
		if pairSig.Read2Barcode == "" {
			pairSig.Read2Barcode = second.Read2Barcode
			pairSig.Read2BarcodeHash = second.Read2BarcodeHash
		}
	}

	// Per spec §9's documented behavior, FirstEncounteredReadName is
	// the completing (second-observed) mate's name, not the earlier
	// one — regardless of which side sorts "first" genomically.
	pairSig.FirstEncounteredReadName = completingReadName

	return b.pairSorter.Add(pairSig)
}

// laterThan reports whether a sorts after b by (reference-index,
// unclipped-5'-coordinate), the ordering used to assign read1/read2
// roles when a pair completes.
func laterThan(a, b *Signature) bool {
	if a.Read1RefID != b.Read1RefID {
		return a.Read1RefID > b.Read1RefID
	}
	return a.Read1Coord > b.Read1Coord
}

func leftReversed(s *Signature) bool {
	return s.Orientation == OrientR
}
