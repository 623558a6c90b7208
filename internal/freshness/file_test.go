package freshness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersister_MissingFileIsEmpty(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "absent.json"))
	stamps, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stamps)
}

func TestFilePersister_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "freshness.json")
	p := NewFilePersister(path)
	ctx := context.Background()

	want := map[string]int64{"allUsers": 1700000000000, "vendorQuestionnaire:v1": 1700000000123}
	require.NoError(t, p.Save(ctx, want))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestFilePersister_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freshness.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFilePersister(path).Load(context.Background())
	assert.Error(t, err)
}

func TestRegistry_SurvivesRestartWithFilePersister(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freshness.json")
	ctx := context.Background()

	first := New(NewFilePersister(path), WithClock(fixedClock(1234)))
	first.Load(ctx)
	first.Touch("companyDashboardStats")
	require.NoError(t, first.Close())

	second := New(NewFilePersister(path))
	second.Load(ctx)
	defer second.Close()

	got, ok := second.Get("companyDashboardStats")
	require.True(t, ok)
	assert.Equal(t, int64(1234), got)
}

func TestNewPersister(t *testing.T) {
	p, err := NewPersister(Config{Path: filepath.Join(t.TempDir(), "f.json")})
	require.NoError(t, err)
	assert.IsType(t, &FilePersister{}, p)

	_, err = NewPersister(Config{Backend: "etcd"})
	assert.Error(t, err)

	assert.Equal(t, DefaultPath, NewFilePersister("").Path())
}
