// Command markdup marks or removes duplicate sequencing reads from a
// coordinate- or query-name-sorted BAM stream. See
// github.com/s70c3/markdup/markduplicates/doc.go for the algorithm.
package main

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/s70c3/markdup/markduplicates"
)

var (
	bamFile            = flag.String("bam", "", "input BAM filename")
	outputPath         = flag.String("output", "", "output BAM filename")
	metricsFile        = flag.String("metrics", "", "output metrics file")
	opticalHistogram   = flag.String("optical-histogram", "", "output path for the optical-duplicate distance histogram")
	tempDirs           = flag.String("temp-dirs", "/tmp", "comma-separated list of directories for spill files, round-robin")
	maxHeapBytes       = flag.Int64("max-heap-bytes", 2<<30, "memory budget the sorter/index-sorter split is computed from")
	sizeRatio          = flag.Float64("sorting-collection-size-ratio", 0.25, "fraction of max-heap-bytes given to each of the pair and fragment sorters")
	maxFileHandles     = flag.Int("max-file-handles-for-read-ends-map", 0, "cap on open spill files in the unmatched-mate map; 0 auto-derives from the process rlimit")
	removeDups         = flag.Bool("remove-duplicates", false, "remove duplicate records instead of flagging them")
	removeSeqDups      = flag.Bool("remove-sequencing-duplicates", false, "remove only optical/sequencing duplicates")
	taggingPolicy      = flag.String("tagging-policy", "DontTag", "DT tag emission policy: DontTag, OpticalOnly, or All")
	tagRepresentative  = flag.Bool("tag-representative-read", false, "attach RR/DS tags naming each duplicate set's representative and size")
	scoringStrategy    = flag.String("duplicate-scoring-strategy", "SumOfBaseQ", "representative-read scoring: SumOfBaseQ or TotalMappedReferenceLength")
	readNameRegex      = flag.String("read-name-regex", "", "Illumina-style read-name layout; unset disables optical-duplicate classification")
	opticalDistance    = flag.Int("optical-duplicate-pixel-distance", 100, "pixel distance threshold for optical duplicates")
	barcodeTag         = flag.String("barcode-tag", "", "aux tag holding a per-pair barcode")
	readOneBarcodeTag  = flag.String("read-one-barcode-tag", "", "aux tag holding read 1's barcode")
	readTwoBarcodeTag  = flag.String("read-two-barcode-tag", "", "aux tag holding read 2's barcode")
	barcodeMaxMismatch = flag.Int("barcode-max-mismatch", 0, "maximum Levenshtein distance between barcodes still considered a match")
	queryNameSorted    = flag.Bool("query-name-sorted", false, "input is query-name-ordered rather than coordinate-ordered")
)

func main() {
	flag.Parse()
	if flag.NArg() > 0 {
		log.Fatalf("unparsed flags, please check flag syntax: %q", strings.Join(flag.Args(), " "))
	}

	if err := run(); err != nil {
		log.Fatalf(err.Error())
	}
}

func run() error {
	cfg := markduplicates.DefaultConfig()
	cfg.TempDirs = strings.Split(*tempDirs, ",")
	cfg.MaxHeapBytes = *maxHeapBytes
	cfg.SortingCollectionSizeRatio = *sizeRatio
	cfg.MaxFileHandlesForReadEndsMap = *maxFileHandles
	cfg.RemoveDuplicates = *removeDups
	cfg.RemoveSequencingDuplicates = *removeSeqDups
	cfg.TagRepresentativeRead = *tagRepresentative
	cfg.ReadNameRegex = *readNameRegex
	cfg.OpticalDuplicatePixelDistance = *opticalDistance
	cfg.BarcodeTag = *barcodeTag
	cfg.ReadOneBarcodeTag = *readOneBarcodeTag
	cfg.ReadTwoBarcodeTag = *readTwoBarcodeTag
	cfg.BarcodeMaxMismatch = *barcodeMaxMismatch

	policy, err := parseTaggingPolicy(*taggingPolicy)
	if err != nil {
		return err
	}
	cfg.TaggingPolicy = policy

	strategy, err := parseScoringStrategy(*scoringStrategy)
	if err != nil {
		return err
	}
	cfg.ScoringStrategy = strategy

	order := markduplicates.CoordinateOrder
	if *queryNameSorted {
		order = markduplicates.QueryNameOrder
	}

	if *bamFile == "" {
		return errors.New("you must specify an input bam file with --bam")
	}
	if *outputPath == "" {
		return errors.New("you must specify an output bam file with --output")
	}

	// Pass 1 and Pass 3 each need their own forward-only reader over
	// the same input, so we open the file twice rather than buffer
	// records from a single reader.
	src, srcHeader, err := openBAM(*bamFile)
	if err != nil {
		return errors.Wrap(err, "opening bam for pass 1")
	}
	defer src.Close()

	replay, _, err := openBAM(*bamFile)
	if err != nil {
		return errors.Wrap(err, "opening bam for pass 3")
	}
	defer replay.Close()

	out, err := os.Create(*outputPath)
	if err != nil {
		return errors.Wrap(err, "creating output bam")
	}
	defer out.Close()

	writer, err := bam.NewWriter(out, srcHeader, 0)
	if err != nil {
		return errors.Wrap(err, "constructing bam writer")
	}
	defer writer.Close()

	engine, err := markduplicates.NewEngine(cfg, srcHeader, order)
	if err != nil {
		return errors.Wrap(err, "constructing engine")
	}

	metrics, err := engine.Run(src, replay, &bamSink{w: writer})
	if err != nil {
		return errors.Wrap(err, "running markduplicates engine")
	}

	if *metricsFile != "" {
		f, err := os.Create(*metricsFile)
		if err != nil {
			return errors.Wrap(err, "creating metrics file")
		}
		defer f.Close()
		if err := metrics.WriteMetrics(f); err != nil {
			return errors.Wrap(err, "writing metrics")
		}
	}
	if *opticalHistogram != "" {
		f, err := os.Create(*opticalHistogram)
		if err != nil {
			return errors.Wrap(err, "creating optical-histogram file")
		}
		defer f.Close()
		if err := metrics.WriteOpticalHistogram(f); err != nil {
			return errors.Wrap(err, "writing optical histogram")
		}
	}
	return nil
}

func parseTaggingPolicy(s string) (markduplicates.TaggingPolicy, error) {
	switch s {
	case "DontTag":
		return markduplicates.DontTag, nil
	case "OpticalOnly":
		return markduplicates.OpticalOnly, nil
	case "All":
		return markduplicates.All, nil
	default:
		return 0, errors.Errorf("unrecognized tagging-policy %q", s)
	}
}

func parseScoringStrategy(s string) (markduplicates.ScoringStrategy, error) {
	switch s {
	case "SumOfBaseQ":
		return markduplicates.SumOfBaseQ, nil
	case "TotalMappedReferenceLength":
		return markduplicates.TotalMappedReferenceLength, nil
	default:
		return 0, errors.Errorf("unrecognized duplicate-scoring-strategy %q", s)
	}
}

// bamReader adapts *bam.Reader to markduplicates.RecordSource.
type bamReader struct {
	r *bam.Reader
}

func openBAM(path string) (*bamReader, *sam.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r, err := bam.NewReader(f, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return &bamReader{r: r}, r.Header(), nil
}

func (b *bamReader) Next() (*sam.Record, error) {
	rec, err := b.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (b *bamReader) Close() error {
	return b.r.Close()
}

// bamSink adapts *bam.Writer to markduplicates.Sink.
type bamSink struct {
	w *bam.Writer
}

func (s *bamSink) Put(r *sam.Record) error {
	return s.w.Write(r)
}
