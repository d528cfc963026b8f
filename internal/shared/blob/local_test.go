package blob

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())
	s.now = func() time.Time { return time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC) }

	path, err := s.Put(ctx, "abc.pdf", strings.NewReader("%PDF-1.7"), 8, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "2024/03/abc.pdf", path)

	rc, err := s.Get(ctx, path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(data))

	require.NoError(t, s.Delete(ctx, path))
	_, err = s.Get(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(ctx, path))
}

func TestLocalStoreRejectsEscapingPaths(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	_, err := s.Get(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
	assert.Error(t, s.Delete(context.Background(), "/etc/passwd"))
}

func TestLocalStoreRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())

	_, err := s.Put(ctx, "same.txt", strings.NewReader("one"), 3, "text/plain")
	require.NoError(t, err)
	_, err = s.Put(ctx, "same.txt", strings.NewReader("two"), 3, "text/plain")
	assert.Error(t, err)
}
