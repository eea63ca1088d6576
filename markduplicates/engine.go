package markduplicates

import (
	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/log"
)

// SortOrder is the incoming alignment stream's order, per spec §6's
// "ordered by genomic coordinate or by query-name" input contract.
type SortOrder int

const (
	CoordinateOrder SortOrder = iota
	QueryNameOrder
)

// RecordSource yields one alignment record at a time, in the stream's
// declared SortOrder. It returns io.EOF once exhausted. The parser
// that produces records (e.g. a bam.Reader) is an external
// collaborator, out of this package's scope.
type RecordSource interface {
	Next() (*sam.Record, error)
}

// Sink receives every record after Pass 3 has applied its duplicate
// decision, in original input order. The writer that serializes
// records (e.g. a bam.Writer) is likewise an external collaborator.
type Sink interface {
	Put(*sam.Record) error
}

// readGroupLibraries builds the read-group-id → library-name table
// from a header, used by getLibrary throughout signature building.
func readGroupLibraries(h *sam.Header) map[string]string {
	m := make(map[string]string, len(h.RGs()))
	for _, rg := range h.RGs() {
		m[rg.Name()] = rg.Library()
	}
	return m
}

// readGroupOrdinals assigns a stable 0-based ordinal to each read
// group, stored on each Signature as ReadGroupOrdinal.
func readGroupOrdinals(h *sam.Header) map[string]int32 {
	m := make(map[string]int32, len(h.RGs()))
	for i, rg := range h.RGs() {
		m[rg.Name()] = int32(i)
	}
	return m
}

// Engine orchestrates the three passes over one alignment stream.
type Engine struct {
	cfg    Config
	header *sam.Header
	order  SortOrder
}

// NewEngine constructs an Engine for one run. header supplies the
// read-group → library mapping; order declares the input's sort
// order, which governs both Pass 1's trailing-unmapped-block rule and
// Pass 3's sticky query-name semantics.
func NewEngine(cfg Config, header *sam.Header, order SortOrder) (*Engine, error) {
	if err := validate(&cfg, order); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, header: header, order: order}, nil
}

// Run executes all three passes: Pass 1 builds signatures from src,
// Pass 2 detects duplicate groups, and Pass 3 re-reads replay (a
// second RecordSource over the same records, in the same order as
// src) and writes each record's duplicate decision to out. A second
// source, rather than buffering src in memory, is what makes the
// three-pass design viable on inputs larger than RAM; callers
// typically construct it as a fresh reader over the same file.
func (e *Engine) Run(src RecordSource, replay RecordSource, out Sink) (*MetricsCollection, error) {
	if !e.cfg.opticalClusteringEnabled() {
		log.Debug.Printf("READ_NAME_REGEX unset: optical-duplicate classification disabled")
	}

	log.Debug.Printf("pass 1: building signatures")
	build, err := e.runPass1(src)
	if err != nil {
		return nil, err
	}
	defer build.cleanup()
	log.Debug.Printf("pass 1 done: %d pair signatures, %d fragment signatures", build.pairSorter.Len(), build.fragSorter.Len())

	log.Debug.Printf("pass 2: detecting duplicate groups")
	detect, err := e.runPass2(build)
	if err != nil {
		return nil, err
	}
	defer detect.cleanup()
	log.Debug.Printf("pass 2 done: %d duplicate indices, %d optical indices", detect.dupIndex.Len(), detect.opticalIndex.Len())

	log.Debug.Printf("pass 3: applying duplicate decisions")
	metrics, err := e.runPass3(build, detect, replay, out)
	if err != nil {
		return nil, err
	}
	return metrics, nil
}
