package clientcache

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStorage struct {
	*MemoryStorage
	setErr error
	getErr error
}

func (f *failingStorage) SetItem(key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStorage.SetItem(key, value)
}

func (f *failingStorage) GetItem(key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	return f.MemoryStorage.GetItem(key)
}

func TestStore_SetThenGet(t *testing.T) {
	s := NewStore(NewMemoryStorage())
	before := time.Now().UnixMilli()

	require.NoError(t, s.Set("k", json.RawMessage(`{"a":1}`), `"abc"`))
	entry, ok := s.Get("k")

	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(entry.Value))
	assert.Equal(t, `"abc"`, entry.Validator)
	assert.GreaterOrEqual(t, entry.FetchedAt, before)
}

func TestStore_RejectsEmptyValidator(t *testing.T) {
	for _, validator := range []string{"", "   "} {
		s := NewStore(NewMemoryStorage())
		err := s.Set("k", json.RawMessage(`1`), validator)
		assert.ErrorIs(t, err, ErrInvalidValidator)

		_, ok := s.Get("k")
		assert.False(t, ok)
	}
}

func TestStore_DurableFallbackRepopulatesMemory(t *testing.T) {
	durable := NewMemoryStorage()
	require.NoError(t, NewStore(durable).Set("k", json.RawMessage(`[1,2]`), "1700"))

	fresh := NewStore(durable)
	entry, ok := fresh.Get("k")
	require.True(t, ok)
	assert.Equal(t, "1700", entry.Validator)

	require.NoError(t, durable.RemoveItem("k"))
	_, ok = fresh.Get("k")
	assert.True(t, ok, "served from memory after repopulation")
}

func TestStore_PurgesCorruptRecords(t *testing.T) {
	tests := []struct {
		name   string
		record string
	}{
		{"not json", "{oops"},
		{"missing validator", `{"value":1,"timestamp":5}`},
		{"empty validator", `{"value":1,"etag":"","timestamp":5}`},
		{"missing value", `{"etag":"\"x\"","timestamp":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			durable := NewMemoryStorage()
			require.NoError(t, durable.SetItem("k", tt.record))

			_, ok := NewStore(durable).Get("k")
			assert.False(t, ok)

			_, present, _ := durable.GetItem("k")
			assert.False(t, present, "corrupt record must be purged")
		})
	}
}

func TestStore_DurableWriteFailureKeepsMemoryCopy(t *testing.T) {
	durable := &failingStorage{MemoryStorage: NewMemoryStorage(), setErr: ErrQuotaExceeded}
	s := NewStore(durable)

	require.NoError(t, s.Set("k", json.RawMessage(`"v"`), "42"))
	entry, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "42", entry.Validator)
}

func TestStore_DurableReadFailureIsMiss(t *testing.T) {
	durable := &failingStorage{MemoryStorage: NewMemoryStorage(), getErr: errors.New("disabled")}
	_, ok := NewStore(durable).Get("k")
	assert.False(t, ok)
}

func TestMemoryStorage_Quota(t *testing.T) {
	m := NewMemoryStorage()
	m.Quota = 4
	require.NoError(t, m.SetItem("a", "abcd"))
	assert.ErrorIs(t, m.SetItem("b", "x"), ErrQuotaExceeded)
	require.NoError(t, m.SetItem("a", "xy"), "replacing an item frees its space")
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "cache.json")
	f := NewFileStorage(path)

	_, ok, err := f.GetItem("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.SetItem("b", "2"))
	require.NoError(t, f.SetItem("a", "1"))

	v, ok, err := NewFileStorage(path).GetItem("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	keys, err := f.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, f.RemoveItem("a"))
	_, ok, _ = f.GetItem("a")
	assert.False(t, ok)

	require.NoError(t, f.Clear())
	keys, err = f.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_Delete(t *testing.T) {
	durable := NewMemoryStorage()
	s := NewStore(durable)
	require.NoError(t, s.Set("k", json.RawMessage(`1`), "9"))

	s.Delete("k")
	_, ok := s.Get("k")
	assert.False(t, ok)
}
