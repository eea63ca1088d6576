package markduplicates

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TempDirs = []string{t.TempDir()}
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, validate(&cfg, CoordinateOrder))
}

func TestValidateRejectsUnsupportedSortOrder(t *testing.T) {
	cfg := validConfig(t)
	err := validate(&cfg, SortOrder(99))
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidateRejectsNoTempDirs(t *testing.T) {
	cfg := validConfig(t)
	cfg.TempDirs = nil
	assert.Error(t, validate(&cfg, CoordinateOrder))
}

func TestValidateRejectsMissingTempDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.TempDirs = []string{t.TempDir() + "/does-not-exist"}
	assert.Error(t, validate(&cfg, CoordinateOrder))
}

func TestValidateRejectsTempDirThatIsAFile(t *testing.T) {
	cfg := validConfig(t)
	dir := t.TempDir()
	file := dir + "/not-a-dir"
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.TempDirs = []string{file}
	assert.Error(t, validate(&cfg, CoordinateOrder))
}

func TestValidateRejectsNegativeMaxFileHandles(t *testing.T) {
	cfg := validConfig(t)
	cfg.MaxFileHandlesForReadEndsMap = -1
	assert.Error(t, validate(&cfg, CoordinateOrder))
}

func TestValidateRejectsOutOfRangeSortingCollectionSizeRatio(t *testing.T) {
	cfg := validConfig(t)
	cfg.SortingCollectionSizeRatio = 0
	assert.Error(t, validate(&cfg, CoordinateOrder))

	cfg2 := validConfig(t)
	cfg2.SortingCollectionSizeRatio = 1
	assert.Error(t, validate(&cfg2, CoordinateOrder))
}

func TestValidateRejectsNegativeBarcodeMaxMismatch(t *testing.T) {
	cfg := validConfig(t)
	cfg.BarcodeMaxMismatch = -1
	assert.Error(t, validate(&cfg, CoordinateOrder))
}

func TestValidateRejectsMutuallyExclusiveRemovalFlags(t *testing.T) {
	cfg := validConfig(t)
	cfg.RemoveDuplicates = true
	cfg.RemoveSequencingDuplicates = true
	assert.Error(t, validate(&cfg, CoordinateOrder))
}

func TestValidateRejectsOpticalOnlyWithoutReadNameRegex(t *testing.T) {
	cfg := validConfig(t)
	cfg.TaggingPolicy = OpticalOnly
	cfg.ReadNameRegex = ""
	assert.Error(t, validate(&cfg, CoordinateOrder))
}

func TestValidateAcceptsOpticalOnlyWithReadNameRegex(t *testing.T) {
	cfg := validConfig(t)
	cfg.TaggingPolicy = OpticalOnly
	cfg.ReadNameRegex = `(?:[a-zA-Z0-9]+:){4}([0-9]+):([0-9]+):([0-9]+)$`
	assert.NoError(t, validate(&cfg, CoordinateOrder))
}
