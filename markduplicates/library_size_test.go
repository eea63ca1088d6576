package markduplicates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateLibrarySize(t *testing.T) {
	cases := []struct {
		readPairs, uniqueReadPairs, want uint64
	}{
		{1000000, 800000, 2154184},
		{171512300, 171512299, 14708234445116054},
	}
	for _, c := range cases {
		got, err := estimateLibrarySize(c.readPairs, c.uniqueReadPairs)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func TestEstimateLibrarySizeNoDuplicatesIsError(t *testing.T) {
	_, err := estimateLibrarySize(1000, 1000)
	assert.Error(t, err)
}

func TestEstimateLibrarySizeZeroReadPairsIsError(t *testing.T) {
	_, err := estimateLibrarySize(0, 0)
	assert.Error(t, err)
}

func TestEstimateLibrarySizeUniqueExceedsTotalIsError(t *testing.T) {
	_, err := estimateLibrarySize(100, 200)
	assert.Error(t, err)
}
