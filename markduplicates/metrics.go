package markduplicates

import (
	"fmt"
	"io"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Metrics holds one library's counters from spec §6's metrics table.
// ReadPairsExamined, ReadPairDuplicates, and ReadPairOpticalDuplicates
// are accumulated per-mate (so every completed pair contributes 2)
// and divided by two at finalization, matching the teacher's
// convention of counting both reads then halving once at the end
// rather than threading a "count once per pair" special case through
// every call site.
type Metrics struct {
	UnmappedReads               int64
	SecondaryOrSupplementaryRds int64
	UnpairedReadsExamined       int64
	ReadPairsExamined           int64
	UnpairedReadDuplicates      int64
	ReadPairDuplicates          int64
	ReadPairOpticalDuplicates   int64
}

func (m *Metrics) percentDuplication() float64 {
	examined := m.UnpairedReadsExamined + m.ReadPairsExamined/2
	if examined == 0 {
		return 0
	}
	dups := m.UnpairedReadDuplicates + m.ReadPairDuplicates/2
	return 100 * float64(dups) / float64(examined)
}

func (m *Metrics) estimatedLibrarySize() (uint64, error) {
	readPairs := uint64(m.ReadPairsExamined / 2)
	uniquePairs := readPairs - uint64(m.ReadPairDuplicates/2)
	return estimateLibrarySize(readPairs, uniquePairs)
}

// MetricsCollection is the full metrics table: one Metrics per
// library, plus the optical-distance histogram bucketed by duplicate-
// set size, matching the teacher's four size bands.
type MetricsCollection struct {
	byLibrary map[string]*Metrics
	libraries *libraryIDTable

	// opticalDistances holds every recorded optical-duplicate distance
	// per size band, kept raw (rather than pre-binned) so gonum/stat
	// can summarize the histogram at write time.
	opticalDistances [4][]float64
}

func newMetricsCollection(libraries *libraryIDTable) *MetricsCollection {
	return &MetricsCollection{byLibrary: make(map[string]*Metrics), libraries: libraries}
}

func (mc *MetricsCollection) get(libraryID int32) *Metrics {
	name := mc.libraries.name(libraryID)
	return mc.byLibraryName(name)
}

func (mc *MetricsCollection) observePairExamined(chunk []Signature) {
	for _, s := range chunk {
		mc.get(s.LibraryID).ReadPairsExamined += 2
	}
}

func (mc *MetricsCollection) observePairDuplicates(libraryID int32, nonBestCount int) {
	mc.get(libraryID).ReadPairDuplicates += int64(nonBestCount) * 2
}

func (mc *MetricsCollection) observePairOptical(libraryID int32, opticalCount int) {
	mc.get(libraryID).ReadPairOpticalDuplicates += int64(opticalCount) * 2
}

func (mc *MetricsCollection) observeFragmentExamined(chunk []Signature) {
	for _, s := range chunk {
		if !s.IsPairLike() {
			mc.get(s.LibraryID).UnpairedReadsExamined++
		}
	}
}

func (mc *MetricsCollection) observeFragmentDuplicate(libraryID int32) {
	mc.get(libraryID).UnpairedReadDuplicates++
}

func (mc *MetricsCollection) observeUnmapped(library string) {
	mc.byLibraryName(library).UnmappedReads++
}

func (mc *MetricsCollection) observeSecondaryOrSupplementary(library string) {
	mc.byLibraryName(library).SecondaryOrSupplementaryRds++
}

func (mc *MetricsCollection) byLibraryName(name string) *Metrics {
	m, ok := mc.byLibrary[name]
	if !ok {
		m = &Metrics{}
		mc.byLibrary[name] = m
	}
	return m
}

// addOpticalDistance records one optical-duplicate pairwise distance
// into the histogram band selected by the duplicate set's size,
// matching the teacher's bagsize-2 / 3-4 / 5-7 / 8+ bands.
func (mc *MetricsCollection) addOpticalDistance(setSize int, distance float64) {
	band := opticalBand(setSize)
	mc.opticalDistances[band] = append(mc.opticalDistances[band], distance)
}

func opticalBand(setSize int) int {
	switch {
	case setSize <= 2:
		return 0
	case setSize <= 4:
		return 1
	case setSize <= 7:
		return 2
	default:
		return 3
	}
}

// WriteMetrics writes the per-library metrics table, with the columns
// in the order of the header row below, one row per library, sorted by
// name for deterministic output.
func (mc *MetricsCollection) WriteMetrics(w io.Writer) error {
	if _, err := io.WriteString(w, "LIBRARY\tUNPAIRED_READS_EXAMINED\tREAD_PAIRS_EXAMINED\t"+
		"SECONDARY_OR_SUPPLEMENTARY_RDS\tUNMAPPED_READS\tUNPAIRED_READ_DUPLICATES\t"+
		"READ_PAIR_DUPLICATES\tREAD_PAIR_OPTICAL_DUPLICATES\tPERCENT_DUPLICATION\t"+
		"ESTIMATED_LIBRARY_SIZE\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(mc.byLibrary))
	for name := range mc.byLibrary {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := mc.byLibrary[name]
		librarySize := "0"
		if n, err := m.estimatedLibrarySize(); err == nil {
			librarySize = fmt.Sprintf("%d", n)
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%0.6f\t%s\n",
			name, m.UnpairedReadsExamined, m.ReadPairsExamined/2,
			m.SecondaryOrSupplementaryRds, m.UnmappedReads, m.UnpairedReadDuplicates,
			m.ReadPairDuplicates/2, m.ReadPairOpticalDuplicates/2,
			m.percentDuplication(), librarySize); err != nil {
			return err
		}
	}
	return nil
}

// WriteOpticalHistogram writes the optical-distance histogram as one
// summary row per non-empty size band: the band's mean and standard
// deviation (via gonum/stat) and its number of recorded distances. The
// raw per-distance values are not written.
func (mc *MetricsCollection) WriteOpticalHistogram(w io.Writer) error {
	if _, err := io.WriteString(w, "#bag_size_range\tmean_distance\tstddev_distance\tcount\n"); err != nil {
		return err
	}
	for i, label := range []string{"bagsize-2", "bagsize3-4", "bagsize5-7", "bagsize8-"} {
		distances := mc.opticalDistances[i]
		if len(distances) == 0 {
			continue
		}
		mean := stat.Mean(distances, nil)
		stddev := stat.StdDev(distances, nil)
		if _, err := fmt.Fprintf(w, "%s\t%0.3f\t%0.3f\t%d\n", label, mean, stddev, len(distances)); err != nil {
			return err
		}
	}
	return nil
}
