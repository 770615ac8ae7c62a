package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAll(t *testing.T) map[string]Slot {
	t.Helper()
	dir := t.TempDir()

	sqliteSlot, err := Open(KindSQLite, filepath.Join(dir, "chat.db"), "slot")
	require.NoError(t, err)
	boltSlot, err := Open(KindBolt, filepath.Join(dir, "chat.bolt"), "slot")
	require.NoError(t, err)
	fileSlot, err := Open(KindFile, filepath.Join(dir, "files"), "slot")
	require.NoError(t, err)
	memSlot, err := Open(KindMemory, "", "slot")
	require.NoError(t, err)

	slots := map[string]Slot{
		KindSQLite: sqliteSlot,
		KindBolt:   boltSlot,
		KindFile:   fileSlot,
		KindMemory: memSlot,
	}
	t.Cleanup(func() {
		for _, s := range slots {
			_ = s.Close()
		}
	})
	return slots
}

func TestSlotLifecycle(t *testing.T) {
	for name, slot := range openAll(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := slot.Read()
			require.NoError(t, err)
			assert.False(t, ok, "fresh slot should be empty")

			require.NoError(t, slot.Write([]byte(`[{"id":"1"}]`)))
			require.NoError(t, slot.Write([]byte(`[{"id":"2"}]`)))

			got, ok, err := slot.Read()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `[{"id":"2"}]`, string(got))

			require.NoError(t, slot.Remove())
			_, ok, err = slot.Read()
			require.NoError(t, err)
			assert.False(t, ok)

			// removing twice is fine
			require.NoError(t, slot.Remove())
		})
	}
}

func TestSlotsAreKeyed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := OpenSQLite(path, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSQLite(path, "b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Write([]byte("alpha")))

	_, ok, err := b.Read()
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := a.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alpha", string(got))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open("redis", "", "slot")
	assert.ErrorContains(t, err, "unknown slot backend")

	_, err = Open(KindMemory, "", "")
	assert.Error(t, err)
}

func TestFileSlotPath(t *testing.T) {
	dir := t.TempDir()
	slot, err := NewFileSlot(dir, "supplyGuardChatMessages")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "supplyGuardChatMessages.json"), slot.Path())
}
