package conversation_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"SupplyGuard/internal/conversation"
	"SupplyGuard/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenSlot struct {
	readErr  error
	writeErr error
}

func (b brokenSlot) Read() ([]byte, bool, error) { return nil, false, b.readErr }
func (b brokenSlot) Write([]byte) error          { return b.writeErr }
func (b brokenSlot) Remove() error               { return nil }

func fixedClock() func() time.Time {
	at := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	return func() time.Time { return at }
}

func assertWelcomeOnly(t *testing.T, store *conversation.Store) {
	t.Helper()
	msgs := store.Messages()
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsUser)
	assert.Equal(t, conversation.WelcomeText, msgs[0].Text)
	assert.True(t, msgs[0].IsWelcome())
}

func TestLoadWithoutSnapshotSeedsWelcome(t *testing.T) {
	store := conversation.NewStore(storage.NewMemorySlot(), conversation.WithClock(fixedClock()))
	store.Load()

	assertWelcomeOnly(t, store)
	assert.Equal(t, "welcome-1741944413589", store.Messages()[0].ID)
}

func TestLoadRecoversFromBadSnapshots(t *testing.T) {
	cases := map[string]string{
		"malformed":   `{not json`,
		"wrong shape": `{"id":"1"}`,
		"empty list":  `[]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			slot := storage.NewMemorySlot()
			require.NoError(t, slot.Write([]byte(raw)))

			store := conversation.NewStore(slot)
			store.Load()
			assertWelcomeOnly(t, store)
		})
	}
}

func TestLoadRecoversFromReadError(t *testing.T) {
	store := conversation.NewStore(brokenSlot{readErr: errors.New("disk on fire")})
	store.Load()
	assertWelcomeOnly(t, store)
}

func TestPersistLoadRoundTrip(t *testing.T) {
	slot := storage.NewMemorySlot()
	clock := fixedClock()
	store := conversation.NewStore(slot, conversation.WithClock(clock))
	store.Load()

	first := conversation.NewMessage(store.Messages(), "How do I filter suppliers by risk level?", true, clock())
	require.NoError(t, store.Append(first))
	second := conversation.NewMessage(store.Messages(), "Use the risk filter.", false, clock().Add(1500*time.Microsecond))
	require.NoError(t, store.Append(second))

	want := store.Messages()

	reloaded := conversation.NewStore(slot)
	reloaded.Load()
	got := reloaded.Messages()

	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Text, got[i].Text)
		assert.Equal(t, want[i].IsUser, got[i].IsUser)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp), "timestamp %d differs", i)
	}

	raw, ok, err := slot.Read()
	require.NoError(t, err)
	require.True(t, ok)
	var wire []map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	require.Len(t, wire, 3)
	assert.Equal(t, true, wire[1]["isUser"])
	_, err = time.Parse(time.RFC3339, wire[1]["timestamp"].(string))
	assert.NoError(t, err, "timestamp must be a parseable date string")
}

func TestAppendKeepsMessageWhenPersistFails(t *testing.T) {
	store := conversation.NewStore(brokenSlot{writeErr: errors.New("quota exceeded")})
	store.Load()

	err := store.Append(conversation.NewMessage(store.Messages(), "hi", true, time.Now()))
	require.Error(t, err)
	assert.ErrorContains(t, err, "quota exceeded")
	assert.Equal(t, 2, store.Len())
}

func TestClearLeavesOnlyWelcome(t *testing.T) {
	slot := storage.NewMemorySlot()
	store := conversation.NewStore(slot)
	store.Load()
	require.NoError(t, store.Append(conversation.NewMessage(store.Messages(), "report?", true, time.Now())))

	require.NoError(t, store.Clear())

	assertWelcomeOnly(t, store)
	_, ok, err := slot.Read()
	require.NoError(t, err)
	assert.False(t, ok, "clear must remove the persisted snapshot")
}

func TestResetInstallsGivenWelcome(t *testing.T) {
	slot := storage.NewMemorySlot()
	store := conversation.NewStore(slot, conversation.WithClock(fixedClock()))
	store.Load()
	require.NoError(t, store.Append(conversation.NewMessage(store.Messages(), "alerts", true, time.Now())))

	welcome := conversation.NewWelcome(time.UnixMilli(42))
	require.NoError(t, store.Reset(welcome))

	assert.Equal(t, []conversation.Message{welcome}, store.Messages())
	_, ok, err := slot.Read()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextIDIsStrictlyIncreasing(t *testing.T) {
	at := time.UnixMilli(1_000)
	history := []conversation.Message{
		conversation.NewWelcome(at),
		{ID: "1005"},
	}

	assert.Equal(t, "1006", conversation.NextID(history, at))
	assert.Equal(t, "2000", conversation.NextID(history, time.UnixMilli(2_000)))
	assert.Equal(t, "1000", conversation.NextID(history[:1], at))
}

func TestMessageRole(t *testing.T) {
	assert.Equal(t, "user", conversation.Message{IsUser: true}.Role())
	assert.Equal(t, "assistant", conversation.Message{}.Role())
}
