package markduplicates

// TaggingPolicy controls when the DT tag is emitted on a duplicate
// record.
type TaggingPolicy int

const (
	DontTag TaggingPolicy = iota
	OpticalOnly
	All
)

// ScoringStrategy selects the per-read score function used to pick a
// duplicate set's representative.
type ScoringStrategy int

const (
	SumOfBaseQ ScoringStrategy = iota
	TotalMappedReferenceLength
)

// Config collects every recognized option from spec §6, plus the
// SPEC_FULL.md barcode-mismatch supplement.
type Config struct {
	// MaxFileHandlesForReadEndsMap caps simultaneously open spill
	// files in the unmatched-mate map. 0 means auto-derive from the
	// process's rlimit (see matemap.DefaultHandleQuota).
	MaxFileHandlesForReadEndsMap int

	// SortingCollectionSizeRatio is the fraction of the configured
	// heap budget given to each of the pair and fragment sorters.
	SortingCollectionSizeRatio float64

	// MaxHeapBytes is the memory ceiling the startup budget split in
	// §5 ("Shared resources") is computed from.
	MaxHeapBytes int64

	// AverageSignatureBytes estimates one Signature's encoded size,
	// used to convert a byte budget into a record-count budget for
	// the pair/fragment sorters.
	AverageSignatureBytes int64

	BarcodeTag        string
	ReadOneBarcodeTag string
	ReadTwoBarcodeTag string

	// BarcodeMaxMismatch is a SPEC_FULL.md supplement: 0 preserves
	// spec.md's literal exact-hash-match comparability; >0 enables
	// matchr.Levenshtein fuzzy matching over raw barcode strings.
	BarcodeMaxMismatch int

	TagRepresentativeRead      bool
	RemoveDuplicates           bool
	RemoveSequencingDuplicates bool
	TaggingPolicy              TaggingPolicy
	ScoringStrategy            ScoringStrategy

	// ReadNameRegex, if empty, disables optical clustering per
	// invariant 13. Any non-empty value enables it; the pattern itself
	// is not applied to read names. Flowcell locations are always
	// parsed by parseOpticalLocation from colon-separated Illumina read
	// names of 5, 7, or 8 fields.
	ReadNameRegex string

	// OpticalDuplicatePixelDistance is the flowcell proximity
	// threshold (Euclidean distance, see clusterOptical) used to
	// sub-classify optical duplicates.
	OpticalDuplicatePixelDistance int

	TempDirs []string
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		SortingCollectionSizeRatio:    0.25,
		MaxHeapBytes:                  2 << 30,
		AverageSignatureBytes:         96,
		TaggingPolicy:                 DontTag,
		ScoringStrategy:               SumOfBaseQ,
		OpticalDuplicatePixelDistance: 100,
		TempDirs:                      []string{"."},
	}
}

// barcodesInUse reports whether any barcode tag is configured, per
// spec §6's "presence of any enables barcode-aware comparability".
func (c Config) barcodesInUse() bool {
	return c.BarcodeTag != "" || c.ReadOneBarcodeTag != "" || c.ReadTwoBarcodeTag != ""
}

func (c Config) opticalClusteringEnabled() bool {
	return c.ReadNameRegex != ""
}

func (c Config) scorer() scoreStrategy {
	if c.ScoringStrategy == TotalMappedReferenceLength {
		return totalMappedReferenceLengthScore
	}
	return sumOfBaseQScore
}
