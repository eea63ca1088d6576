package markduplicates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s70c3/markdup/sortcol"
)

// fakeUint64Iterator replays a fixed slice, matching the
// sortcol.Iterator[uint64] contract used by indexCursor.
type fakeUint64Iterator struct {
	vals []uint64
	idx  int
}

func (f *fakeUint64Iterator) Scan() bool {
	if f.idx >= len(f.vals) {
		return false
	}
	f.idx++
	return true
}
func (f *fakeUint64Iterator) Record() uint64 { return f.vals[f.idx-1] }
func (f *fakeUint64Iterator) Err() error     { return nil }
func (f *fakeUint64Iterator) Close() error   { return nil }

var _ sortcol.Iterator[uint64] = (*fakeUint64Iterator)(nil)

type fakeRepInfoIterator struct {
	vals []RepInfo
	idx  int
}

func (f *fakeRepInfoIterator) Scan() bool {
	if f.idx >= len(f.vals) {
		return false
	}
	f.idx++
	return true
}
func (f *fakeRepInfoIterator) Record() RepInfo { return f.vals[f.idx-1] }
func (f *fakeRepInfoIterator) Err() error      { return nil }
func (f *fakeRepInfoIterator) Close() error    { return nil }

var _ sortcol.Iterator[RepInfo] = (*fakeRepInfoIterator)(nil)

func TestIndexCursorExactMatchesAdvance(t *testing.T) {
	c, err := newIndexCursor(&fakeUint64Iterator{vals: []uint64{2, 5, 9}})
	require.NoError(t, err)

	for _, tc := range []struct {
		i    uint64
		want bool
	}{{0, false}, {1, false}, {2, true}, {3, false}, {4, false}, {5, true}} {
		got, err := c.check(tc.i, "q", CoordinateOrder)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "index %d", tc.i)
	}
}

func TestIndexCursorExhaustedNeverMatches(t *testing.T) {
	c, err := newIndexCursor(&fakeUint64Iterator{vals: nil})
	require.NoError(t, err)
	assert.True(t, c.exhausted)

	got, err := c.check(0, "q", CoordinateOrder)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestIndexCursorStickyUnderQueryNameOrder(t *testing.T) {
	// One group (file indices 3 and 7) shares query name "readA"; only
	// index 3 is present in the sorted index stream, but under
	// query-name ordering index 7 must still match because it shares
	// readA's name with the index that already matched.
	c, err := newIndexCursor(&fakeUint64Iterator{vals: []uint64{3}})
	require.NoError(t, err)

	match3, err := c.check(3, "readA", QueryNameOrder)
	require.NoError(t, err)
	assert.True(t, match3)

	match7, err := c.check(7, "readA", QueryNameOrder)
	require.NoError(t, err)
	assert.True(t, match7, "second mate sharing the matched query name must stick")

	// A subsequent, unrelated query name must not inherit the stale match.
	matchOther, err := c.check(8, "readB", QueryNameOrder)
	require.NoError(t, err)
	assert.False(t, matchOther)
}

func TestIndexCursorNotStickyUnderCoordinateOrder(t *testing.T) {
	c, err := newIndexCursor(&fakeUint64Iterator{vals: []uint64{3}})
	require.NoError(t, err)

	match3, err := c.check(3, "readA", CoordinateOrder)
	require.NoError(t, err)
	assert.True(t, match3)

	// Same query name, but coordinate order never applies the sticky rule.
	match7, err := c.check(7, "readA", CoordinateOrder)
	require.NoError(t, err)
	assert.False(t, match7)
}

func TestRepInfoCursorExactMatchCarriesPayload(t *testing.T) {
	want := RepInfo{Index: 4, SetSize: 3, ReadName: "rep1"}
	c, err := newRepInfoCursor(&fakeRepInfoIterator{vals: []RepInfo{want}})
	require.NoError(t, err)

	got, ok, err := c.check(4, "q", CoordinateOrder)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestRepInfoCursorStickyUnderQueryNameOrder(t *testing.T) {
	want := RepInfo{Index: 10, SetSize: 2, ReadName: "rep2"}
	c, err := newRepInfoCursor(&fakeRepInfoIterator{vals: []RepInfo{want}})
	require.NoError(t, err)

	_, ok, err := c.check(10, "mateGroup", QueryNameOrder)
	require.NoError(t, err)
	require.True(t, ok)

	got, ok, err := c.check(11, "mateGroup", QueryNameOrder)
	require.NoError(t, err)
	require.True(t, ok, "mate sharing the matched query name inherits the payload")
	assert.Equal(t, want, got)
}

func TestRepInfoCursorExhaustedNeverMatches(t *testing.T) {
	c, err := newRepInfoCursor(&fakeRepInfoIterator{vals: nil})
	require.NoError(t, err)
	assert.True(t, c.exhausted)

	_, ok, err := c.check(0, "q", CoordinateOrder)
	require.NoError(t, err)
	assert.False(t, ok)
}
