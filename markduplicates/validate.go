package markduplicates

import "os"

// validate checks a Config for the configuration errors spec §7
// requires to fail fast, before Pass 1 opens any sorter or spill file.
func validate(cfg *Config, order SortOrder) error {
	if order != CoordinateOrder && order != QueryNameOrder {
		return newConfigError("unsupported sort order %d", order)
	}
	if len(cfg.TempDirs) == 0 {
		return newConfigError("at least one temp directory is required")
	}
	for _, dir := range cfg.TempDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return wrapConfigError(err, "temp dir %s", dir)
		}
		if !info.IsDir() {
			return newConfigError("temp dir %s is not a directory", dir)
		}
	}
	if cfg.MaxFileHandlesForReadEndsMap < 0 {
		return newConfigError("MAX_FILE_HANDLES_FOR_READ_ENDS_MAP must be non-negative")
	}
	if cfg.SortingCollectionSizeRatio <= 0 || cfg.SortingCollectionSizeRatio >= 1 {
		return newConfigError("SORTING_COLLECTION_SIZE_RATIO must be in (0, 1)")
	}
	if cfg.BarcodeMaxMismatch < 0 {
		return newConfigError("BARCODE_MAX_MISMATCH must be non-negative")
	}
	if cfg.RemoveDuplicates && cfg.RemoveSequencingDuplicates {
		return newConfigError("REMOVE_DUPLICATES and REMOVE_SEQUENCING_DUPLICATES are mutually exclusive")
	}
	if cfg.TaggingPolicy == OpticalOnly && cfg.ReadNameRegex == "" {
		return newConfigError("TAGGING_POLICY=OpticalOnly requires READ_NAME_REGEX to be set")
	}
	return nil
}
