package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// plainTextExtractor treats the source bytes as the document text.
type plainTextExtractor struct {
	calls atomic.Int32
	delay time.Duration
}

func (e *plainTextExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	e.calls.Add(1)
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	return string(data), nil
}

// letterEmbedding embeds text as its letter frequency histogram.
func letterEmbedding() chromem.EmbeddingFunc {
	return NormalizedEmbedding(func(_ context.Context, text string) ([]float32, error) {
		v := make([]float32, 27)
		for _, r := range strings.ToLower(text) {
			if r >= 'a' && r <= 'z' {
				v[r-'a']++
			} else {
				v[26] += 0.01
			}
		}
		return v, nil
	})
}

const policyText = "alpha beta\n\nalpha beta\n\nalpha beta\n\ngamma delta\n\nzeta kappa"

func writeSource(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.pdf")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func newTestIndex(t *testing.T, source, snapshotDir string, extractor TextExtractor) *PolicyIndex {
	t.Helper()
	return NewPolicyIndex(PolicyIndexConfig{
		SourcePath:     source,
		SnapshotDir:    snapshotDir,
		ChunkSize:      12,
		ChunkOverlap:   0,
		EmbeddingModel: "letters",
		Concurrency:    2,
	}, extractor, letterEmbedding(), zap.NewNop())
}

func TestPolicyIndex_VerifyMissingSource(t *testing.T) {
	idx := newTestIndex(t, filepath.Join(t.TempDir(), "missing.pdf"), "", &plainTextExtractor{})

	err := idx.Verify()
	require.Error(t, err)
	var buildErr *IndexBuildError
	assert.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "verify", buildErr.Stage)

	_, err = idx.GetOrBuild(context.Background())
	assert.ErrorAs(t, err, &buildErr)
}

func TestPolicyIndex_VerifyUnreadableSource(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	source := writeSource(t, t.TempDir(), policyText)
	require.NoError(t, os.Chmod(source, 0o000))
	t.Cleanup(func() { _ = os.Chmod(source, 0o644) })

	err := newTestIndex(t, source, "", &plainTextExtractor{}).Verify()
	var buildErr *IndexBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "verify", buildErr.Stage)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestPolicyIndex_VerifyDirectorySource(t *testing.T) {
	err := newTestIndex(t, t.TempDir(), "", &plainTextExtractor{}).Verify()
	var buildErr *IndexBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "verify", buildErr.Stage)
}

func TestPolicyIndex_ConcurrentFirstCallsBuildOnce(t *testing.T) {
	dir := t.TempDir()
	extractor := &plainTextExtractor{delay: 50 * time.Millisecond}
	idx := newTestIndex(t, writeSource(t, dir, policyText), filepath.Join(dir, "store"), extractor)

	const callers = 16
	handles := make([]*PolicyIndexHandle, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := idx.GetOrBuild(context.Background())
			assert.NoError(t, err)
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), extractor.calls.Load())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
	assert.Equal(t, "fresh", handles[0].Source())

	// later calls return the cached handle
	h, err := idx.GetOrBuild(context.Background())
	require.NoError(t, err)
	assert.Same(t, handles[0], h)
	assert.Equal(t, int32(1), extractor.calls.Load())
}

func TestPolicyIndex_ReusesSnapshot(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, policyText)
	store := filepath.Join(dir, "store")

	first, err := newTestIndex(t, source, store, &plainTextExtractor{}).GetOrBuild(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(store, snapshotFile))
	assert.FileExists(t, filepath.Join(store, manifestFile))

	extractor := &plainTextExtractor{}
	second, err := newTestIndex(t, source, store, extractor).GetOrBuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(0), extractor.calls.Load())
	assert.Equal(t, "snapshot", second.Source())
	assert.Equal(t, first.Len(), second.Len())
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())

	a, err := first.Search(context.Background(), "gamma delta", 2)
	require.NoError(t, err)
	b, err := second.Search(context.Background(), "gamma delta", 2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPolicyIndex_RebuildsStaleSnapshot(t *testing.T) {
	dir := t.TempDir()
	source := writeSource(t, dir, policyText)
	store := filepath.Join(dir, "store")

	old, err := newTestIndex(t, source, store, &plainTextExtractor{}).GetOrBuild(context.Background())
	require.NoError(t, err)

	writeSource(t, dir, policyText+"\n\nomega sigma")

	extractor := &plainTextExtractor{}
	fresh, err := newTestIndex(t, source, store, extractor).GetOrBuild(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), extractor.calls.Load())
	assert.Equal(t, "fresh", fresh.Source())
	assert.NotEqual(t, old.Fingerprint(), fresh.Fingerprint())
	assert.Greater(t, fresh.Len(), old.Len())
}

func TestPolicyIndex_EmptySourceText(t *testing.T) {
	dir := t.TempDir()
	idx := newTestIndex(t, writeSource(t, dir, "   \n\n  "), "", &plainTextExtractor{})

	_, err := idx.GetOrBuild(context.Background())
	var buildErr *IndexBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "extract", buildErr.Stage)
}

func TestPolicyIndexHandle_Search(t *testing.T) {
	dir := t.TempDir()
	h, err := newTestIndex(t, writeSource(t, dir, policyText), "", &plainTextExtractor{}).GetOrBuild(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, h.Len(), 3)

	t.Run("default k", func(t *testing.T) {
		chunks, err := h.Search(context.Background(), "alpha beta", 0)
		require.NoError(t, err)
		assert.Len(t, chunks, defaultTopK)
	})

	t.Run("k capped at chunk count", func(t *testing.T) {
		chunks, err := h.Search(context.Background(), "alpha beta", 100)
		require.NoError(t, err)
		assert.Len(t, chunks, h.Len())
	})

	t.Run("ordered by score then chunk index", func(t *testing.T) {
		chunks, err := h.Search(context.Background(), "alpha beta", h.Len())
		require.NoError(t, err)

		assert.Contains(t, chunks[0].Text, "alpha beta")
		for i := 1; i < len(chunks); i++ {
			prev, cur := chunks[i-1], chunks[i]
			assert.GreaterOrEqual(t, prev.Score, cur.Score)
			if prev.Score == cur.Score {
				assert.Less(t, prev.Index, cur.Index)
			}
		}
	})

	t.Run("repeatable", func(t *testing.T) {
		a, err := h.Search(context.Background(), "gamma", 3)
		require.NoError(t, err)
		b, err := h.Search(context.Background(), "gamma", 3)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := h.Search(context.Background(), "  ", 3)
		assert.Error(t, err)
	})
}
