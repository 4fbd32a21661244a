package journal

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talkincode/wagate/pkg/common"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppendAndRecentOrder(t *testing.T) {
	j := openTestJournal(t)

	var ids []int64
	for i := 0; i < 5; i++ {
		id := common.UUIDint64()
		ids = append(ids, id)
		payload := []byte(fmt.Sprintf(`{"seq":%d}`, i))
		require.NoError(t, j.Append(42, id, payload))
	}

	got, err := j.Recent(42, 10)
	require.NoError(t, err)
	require.Len(t, got, 5)
	// oldest first
	assert.Equal(t, `{"seq":0}`, string(got[0]))
	assert.Equal(t, `{"seq":4}`, string(got[4]))

	// limit keeps the newest entries
	got, err = j.Recent(42, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, `{"seq":3}`, string(got[0]))
	assert.Equal(t, `{"seq":4}`, string(got[1]))
}

func TestRecentUnknownInstance(t *testing.T) {
	j := openTestJournal(t)
	got, err := j.Recent(999, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInstancesAreIsolated(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Append(1, common.UUIDint64(), []byte("a")))
	require.NoError(t, j.Append(2, common.UUIDint64(), []byte("b")))

	got, err := j.Recent(1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", string(got[0]))
}

func TestDropIsTolerant(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.Append(1, common.UUIDint64(), []byte("a")))
	require.NoError(t, j.Drop(1))

	got, err := j.Recent(1, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	// dropping an instance that never journaled succeeds
	require.NoError(t, j.Drop(12345))
}

func TestPurgeOlderThan(t *testing.T) {
	j := openTestJournal(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, j.Append(7, common.UUIDint64(), []byte("x")))
	}

	// cutoff in the past removes nothing
	n, err := j.PurgeOlderThan(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	// cutoff in the future removes everything
	n, err = j.PurgeOlderThan(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := j.Recent(7, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
