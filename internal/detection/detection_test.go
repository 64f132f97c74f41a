package detection

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"Jackal", Jackal, true},
		{"jackal", Jackal, true},
		{" NILGAI ", Nilgai, true},
		{"unknown", Unknown, true},
		{"Dragon", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCategory(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCategoryFromPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Jackal, CategoryFromPath("/srv/ngl/Jackal.jpg"))
	assert.Equal(t, Pig, CategoryFromPath("pig.PNG"))
	assert.Equal(t, Unknown, CategoryFromPath("/srv/ngl/frame_0001.jpg"))
	assert.Equal(t, Unknown, CategoryFromPath("Jackal.tar.gz"))
}

func TestCategoriesOrder(t *testing.T) {
	t.Parallel()

	cats := Categories()
	require.Len(t, cats, 16)
	assert.Equal(t, Bull, cats[0])
	assert.Equal(t, Unknown, cats[len(cats)-1])

	cats[0] = "mutated"
	assert.Equal(t, Bull, Categories()[0])
}

func TestCategoryValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Person.Valid())
	assert.False(t, Category("person").Valid())
	assert.False(t, Category("Yeti").Valid())
}

func TestOutcomes(t *testing.T) {
	t.Parallel()

	assert.False(t, Detected.Terminal())
	assert.True(t, Correct.Terminal())
	assert.True(t, None.Terminal())

	o, ok := ParseOutcome("incorrect")
	require.True(t, ok)
	assert.Equal(t, Incorrect, o)

	_, ok = ParseOutcome("maybe")
	assert.False(t, ok)

	snap := Snapshot{Detected: {Jackal: 3}}
	assert.Equal(t, int64(3), snap.Get(Detected, Jackal))
	assert.Equal(t, int64(0), snap.Get(Correct, Jackal))
}

func TestEventFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Nilgai.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o600))
	mtime := time.Date(2024, 3, 1, 6, 30, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	ev, err := EventFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, Nilgai, ev.Category)
	assert.True(t, ev.Timestamp.Equal(mtime))
	assert.Equal(t, ".jpg", ev.Ext())

	empty := filepath.Join(dir, "Pig.jpg")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = EventFromFile(empty)
	require.Error(t, err)

	_, err = EventFromFile(dir)
	require.Error(t, err)

	_, err = EventFromFile(filepath.Join(dir, "missing.jpg"))
	require.Error(t, err)
}
