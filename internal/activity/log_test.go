package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := NewLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })
	return log
}

func TestRecordAndHistory(t *testing.T) {
	log := newTestLog(t)

	require.NoError(t, log.Record("createFolder", "admin", "/Projects/Reports", map[string]string{"name": "Reports"}))
	require.NoError(t, log.Record("uploadFile", "contributor", "/Projects/Reports/q3.pdf", nil))
	require.NoError(t, log.Record("deleteItem", "admin", "/Projects/Reports/q3.pdf", map[string]string{"kind": "file"}))

	records, err := log.History(10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first
	assert.Equal(t, "deleteItem", records[0].Action)
	assert.Equal(t, "uploadFile", records[1].Action)
	assert.Equal(t, "createFolder", records[2].Action)

	assert.Equal(t, "admin", records[0].User)
	assert.Equal(t, map[string]string{"kind": "file"}, records[0].Details)
	assert.Nil(t, records[1].Details)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestHistoryRespectsLimit(t *testing.T) {
	log := newTestLog(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, log.Record("rename", "viewer", "/x", nil))
	}

	records, err := log.History(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestHistoryEmptyJournal(t *testing.T) {
	log := newTestLog(t)

	records, err := log.History(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryRejectsNonPositiveLimit(t *testing.T) {
	log := newTestLog(t)

	_, err := log.History(0)
	assert.Error(t, err)
	_, err = log.History(-3)
	assert.Error(t, err)
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	log := newTestLog(t)
	assert.Error(t, log.Record("", "admin", "/x", nil))
}

func TestNewLogRejectsEmptyDataDir(t *testing.T) {
	_, err := NewLog("")
	assert.Error(t, err)
}
