package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProducts() []Product {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []Product{
		{ID: "a", Name: "Tulsi", Category: "Herbs", Price: 4.5, Image: "tulsi.png", Details: "holy basil", CreatedAt: at, UpdatedAt: at},
		{ID: "b", Name: "Neem", Category: "Herbs", Price: 3, Image: "neem.png", CreatedAt: at, UpdatedAt: at},
	}
}

func Test_FileMedium_SaveAndLoad(t *testing.T) {
	// given
	path := filepath.Join(t.TempDir(), "nested", "products.json")
	m := NewFileMedium(path)

	// when
	require.NoError(t, m.Save(context.Background(), sampleProducts()))
	loaded, err := m.Load(context.Background())

	// then
	require.NoError(t, err)
	assert.Equal(t, sampleProducts(), loaded)
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp file may be left behind")
}

func Test_FileMedium_Load(t *testing.T) {
	testCases := []struct {
		name             string
		content          *string
		expectErr        error
		expectQuarantine bool
	}{
		{name: "Missing file", content: nil, expectErr: ErrMediumEmpty},
		{name: "Blank file", content: ptrTo("  \n"), expectErr: ErrMediumEmpty},
		{name: "Empty array", content: ptrTo("[]")},
		{name: "Not JSON", content: ptrTo("{not json"), expectErr: ErrMediumCorrupted, expectQuarantine: true},
		{name: "Object instead of array", content: ptrTo(`{"id":"a"}`), expectErr: ErrMediumCorrupted, expectQuarantine: true},
		{name: "JSON null", content: ptrTo("null"), expectErr: ErrMediumCorrupted, expectQuarantine: true},
		{name: "Missing id", content: ptrTo(`[{"name":"x"}]`), expectErr: ErrMediumCorrupted, expectQuarantine: true},
		{name: "Duplicate id", content: ptrTo(`[{"id":"a"},{"id":"a"}]`), expectErr: ErrMediumCorrupted, expectQuarantine: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			path := filepath.Join(t.TempDir(), "products.json")
			if tc.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tc.content), 0o644))
			}
			m := NewFileMedium(path)
			m.now = func() time.Time { return time.Unix(1700000000, 0) }

			// when
			loaded, err := m.Load(context.Background())

			// then
			if tc.expectErr == nil {
				require.NoError(t, err)
				assert.Empty(t, loaded)
				return
			}
			require.ErrorIs(t, err, tc.expectErr)
			var corruption *CorruptionError
			if !tc.expectQuarantine {
				assert.False(t, errors.As(err, &corruption))
				return
			}
			require.ErrorAs(t, err, &corruption)
			assert.Equal(t, path+".corrupt-1700000000", corruption.Quarantine)
			kept, readErr := os.ReadFile(corruption.Quarantine)
			require.NoError(t, readErr)
			assert.Equal(t, *tc.content, string(kept), "unreadable content is preserved")
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func Test_FileMedium_FailedSaveKeepsPreviousDocument(t *testing.T) {
	// given
	path := filepath.Join(t.TempDir(), "products.json")
	m := NewFileMedium(path)
	require.NoError(t, m.Save(context.Background(), sampleProducts()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	// when
	broken := append(sampleProducts(), Product{ID: "c", Name: "NaN", Price: math.NaN()})
	err = m.Save(context.Background(), broken)

	// then
	require.Error(t, err)
	after, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, before, after)
}

func Test_FileMedium_SaveFailsWhenDirectoryIsAFile(t *testing.T) {
	// given
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	m := NewFileMedium(filepath.Join(blocker, "products.json"))

	// when
	err := m.Save(context.Background(), sampleProducts())

	// then
	assert.Error(t, err)
}

func ptrTo[T any](v T) *T {
	return &v
}
