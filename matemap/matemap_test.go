package matemap

import (
	"bufio"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uint64Codec is a minimal Codec[uint64] fixture for exercising Map
// independent of the markduplicates.Signature codec it's used with in
// production.
type uint64Codec struct{}

func (uint64Codec) Encode(w *bufio.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func (uint64Codec) Decode(r *bufio.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := ioReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func ioReadFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestMapPutRemoveSamePartitionNoSpill(t *testing.T) {
	m, err := New[uint64](uint64Codec{}, []string{t.TempDir()}, 10)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Put(0, "A", 100))
	require.NoError(t, m.Put(0, "B", 200))
	assert.Equal(t, int64(2), m.Size())

	v, ok := m.Remove(0, "A")
	assert.True(t, ok)
	assert.Equal(t, uint64(100), v)
	assert.Equal(t, int64(1), m.Size())

	v, ok = m.Remove(0, "B")
	assert.True(t, ok)
	assert.Equal(t, uint64(200), v)
	assert.Equal(t, int64(0), m.Size())
}

func TestMapRemoveMissingKeyNotFound(t *testing.T) {
	m, err := New[uint64](uint64Codec{}, []string{t.TempDir()}, 10)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Put(0, "A", 1))
	_, ok := m.Remove(0, "nonexistent")
	assert.False(t, ok)
	// The partition still loaded and the real entry remains retrievable.
	v, ok := m.Remove(0, "A")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), v)
}

func TestMapRemoveUnknownPartition(t *testing.T) {
	m, err := New[uint64](uint64Codec{}, []string{t.TempDir()}, 10)
	require.NoError(t, err)
	defer m.Close()

	_, ok := m.Remove(99, "A")
	assert.False(t, ok)
	assert.NoError(t, m.Err(99))
}

func TestMapPartitionsByReferenceIndex(t *testing.T) {
	m, err := New[uint64](uint64Codec{}, []string{t.TempDir()}, 10)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Put(0, "X", 10))
	require.NoError(t, m.Put(1, "X", 20))

	// Same key, different reference-index partitions: independent entries.
	v0, ok := m.Remove(0, "X")
	require.True(t, ok)
	assert.Equal(t, uint64(10), v0)

	v1, ok := m.Remove(1, "X")
	require.True(t, ok)
	assert.Equal(t, uint64(20), v1)
}

func TestMapSpillsToDiskAndLoadsOnFirstRemove(t *testing.T) {
	m, err := New[uint64](uint64Codec{}, []string{t.TempDir()}, 10)
	require.NoError(t, err)
	defer m.Close()

	for i := 0; i < 50; i++ {
		require.NoError(t, m.Put(7, keyFor(i), uint64(i)))
	}
	assert.Equal(t, 0, m.SizeInRAM(), "entries stay spilled until the first Remove against their partition")

	v, ok := m.Remove(7, keyFor(25))
	require.True(t, ok)
	assert.Equal(t, uint64(25), v)
	assert.True(t, m.SizeInRAM() > 0, "first Remove should have loaded the whole partition into RAM")

	for i := 0; i < 50; i++ {
		if i == 25 {
			continue
		}
		v, ok := m.Remove(7, keyFor(i))
		require.True(t, ok, "key %d", i)
		assert.Equal(t, uint64(i), v)
	}
}

// TestMapPutAfterLoadTriggeringRemoveIsRetrievable reproduces the
// coordinate-order interleaving processPrimary produces for two pairs
// on the same reference: m1a(keyA) m1b(keyB) m2a(keyA) m2b(keyB). The
// Put for pair B's first mate (keyB) happens to fall after pair A's
// completing Remove(keyA) has already triggered the partition load; it
// must still be retrievable by a later Remove rather than silently
// lost to a truncated spill file.
func TestMapPutAfterLoadTriggeringRemoveIsRetrievable(t *testing.T) {
	m, err := New[uint64](uint64Codec{}, []string{t.TempDir()}, 10)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Put(7, "keyA", 100)) // m1a
	v, ok := m.Remove(7, "keyA")              // m1b completes pair A, loads the partition
	require.True(t, ok)
	assert.Equal(t, uint64(100), v)

	require.NoError(t, m.Put(7, "keyB", 200)) // m2a, arrives after the partition is loaded
	v, ok = m.Remove(7, "keyB")               // m2b completes pair B
	require.True(t, ok, "pair B's mate must not be lost to the already-loaded partition")
	assert.Equal(t, uint64(200), v)
}

func TestMapDrainsPartitionOnceEmptied(t *testing.T) {
	m, err := New[uint64](uint64Codec{}, []string{t.TempDir()}, 10)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Put(3, "only", 1))
	_, ok := m.Remove(3, "only")
	require.True(t, ok)

	// The partition's spill file should be gone and its slot freed;
	// a subsequent Remove against the same (now-unknown) partition
	// must report not-found rather than erroring.
	_, ok = m.Remove(3, "only")
	assert.False(t, ok)
}

func keyFor(i int) string {
	return "key-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestNewRejectsNoTempDirs(t *testing.T) {
	_, err := New[uint64](uint64Codec{}, nil, 10)
	assert.Error(t, err)
}

func TestNewDefaultsHandleQuota(t *testing.T) {
	m, err := New[uint64](uint64Codec{}, []string{t.TempDir()}, 0)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, 8000, m.handleQuota)
}
