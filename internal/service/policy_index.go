package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"recanalysis/internal/models"
	"recanalysis/pkg/config"

	"github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	policyCollection    = "politica_recursal"
	snapshotFile        = "policy.gob.gz"
	manifestFile        = "manifest.json"
	chunkIndexKey       = "chunk_index"
	defaultTopK         = 3
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

type PolicyIndexConfig struct {
	SourcePath     string
	SnapshotDir    string
	ChunkSize      int
	ChunkOverlap   int
	EmbeddingModel string
	Concurrency    int
}

// snapshotManifest sits next to the exported collection and records what it
// was built from.
type snapshotManifest struct {
	Fingerprint    string    `json:"fingerprint"`
	Chunks         int       `json:"chunks"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	EmbeddingModel string    `json:"embedding_model"`
	BuiltAt        time.Time `json:"built_at"`
}

// PolicyIndex is the searchable index over the policy reference document. It
// is built at most once per process; concurrent first callers share the build.
type PolicyIndex struct {
	cfg       PolicyIndexConfig
	extractor TextExtractor
	embed     chromem.EmbeddingFunc
	logger    *zap.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	handle *PolicyIndexHandle
}

// PolicyIndexHandle is a loaded index. It is read-only and safe for concurrent use.
type PolicyIndexHandle struct {
	collection  *chromem.Collection
	fingerprint string
	source      string
}

func NewPolicyIndex(cfg PolicyIndexConfig, extractor TextExtractor, embed chromem.EmbeddingFunc, logger *zap.Logger) *PolicyIndex {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = defaultChunkOverlap
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyIndex{
		cfg:       cfg,
		extractor: extractor,
		embed:     embed,
		logger:    logger,
	}
}

// Verify checks that the policy source document is readable. It is meant to
// run at startup so a missing source fails the process instead of every job.
func (p *PolicyIndex) Verify() error {
	f, err := os.Open(p.cfg.SourcePath)
	if err != nil {
		return &IndexBuildError{Stage: "verify", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &IndexBuildError{Stage: "verify", Err: err}
	}
	if info.IsDir() {
		return &IndexBuildError{Stage: "verify", Err: fmt.Errorf("%s is a directory", p.cfg.SourcePath)}
	}
	// a one-byte read surfaces I/O errors that open alone misses
	if _, err := f.Read(make([]byte, 1)); err != nil && err != io.EOF {
		return &IndexBuildError{Stage: "verify", Err: err}
	}
	return nil
}

// GetOrBuild returns the loaded index, loading a matching snapshot or building
// a fresh one on first use.
func (p *PolicyIndex) GetOrBuild(ctx context.Context) (*PolicyIndexHandle, error) {
	p.mu.RLock()
	h := p.handle
	p.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	// the build outlives any single caller's cancellation
	buildCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan("policy-index", func() (interface{}, error) {
		p.mu.RLock()
		h := p.handle
		p.mu.RUnlock()
		if h != nil {
			return h, nil
		}

		h, err := p.load(buildCtx)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.handle = h
		p.mu.Unlock()
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*PolicyIndexHandle), nil
	}
}

// Search is a shortcut for GetOrBuild followed by a handle search.
func (p *PolicyIndex) Search(ctx context.Context, query string, k int) ([]models.PolicyChunk, error) {
	h, err := p.GetOrBuild(ctx)
	if err != nil {
		return nil, err
	}
	return h.Search(ctx, query, k)
}

func (p *PolicyIndex) load(ctx context.Context) (*PolicyIndexHandle, error) {
	data, err := os.ReadFile(p.cfg.SourcePath)
	if err != nil {
		return nil, &IndexBuildError{Stage: "read source", Err: err}
	}
	fingerprint := p.fingerprint(data)

	if h, ok := p.loadSnapshot(fingerprint); ok {
		policyIndexBuilds.WithLabelValues("snapshot").Inc()
		return h, nil
	}

	h, err := p.build(ctx, data, fingerprint)
	if err != nil {
		return nil, err
	}
	policyIndexBuilds.WithLabelValues("fresh").Inc()
	return h, nil
}

func (p *PolicyIndex) fingerprint(source []byte) string {
	h := sha256.New()
	h.Write(source)
	fmt.Fprintf(h, "|chunk_size=%d|chunk_overlap=%d|model=%s", p.cfg.ChunkSize, p.cfg.ChunkOverlap, p.cfg.EmbeddingModel)
	return hex.EncodeToString(h.Sum(nil))
}

func (p *PolicyIndex) loadSnapshot(fingerprint string) (*PolicyIndexHandle, bool) {
	if p.cfg.SnapshotDir == "" {
		return nil, false
	}

	raw, err := os.ReadFile(filepath.Join(p.cfg.SnapshotDir, manifestFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("Failed to read policy snapshot manifest", zap.Error(err))
		}
		return nil, false
	}

	var manifest snapshotManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		p.logger.Warn("Policy snapshot manifest is corrupt, rebuilding", zap.Error(err))
		return nil, false
	}
	if manifest.Fingerprint != fingerprint {
		p.logger.Warn("Policy snapshot is stale, rebuilding",
			zap.String("snapshot_fingerprint", manifest.Fingerprint),
			zap.String("source_fingerprint", fingerprint),
			zap.Time("built_at", manifest.BuiltAt),
		)
		return nil, false
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(filepath.Join(p.cfg.SnapshotDir, snapshotFile), "", policyCollection); err != nil {
		p.logger.Warn("Failed to import policy snapshot, rebuilding", zap.Error(err))
		return nil, false
	}
	coll := db.GetCollection(policyCollection, p.embed)
	if coll == nil || coll.Count() != manifest.Chunks || coll.Count() == 0 {
		p.logger.Warn("Policy snapshot is incomplete, rebuilding", zap.Int("expected_chunks", manifest.Chunks))
		return nil, false
	}

	p.logger.Info("Policy index loaded from snapshot",
		zap.String("dir", p.cfg.SnapshotDir),
		zap.Int("chunks", coll.Count()),
	)
	return &PolicyIndexHandle{collection: coll, fingerprint: fingerprint, source: "snapshot"}, true
}

func (p *PolicyIndex) build(ctx context.Context, source []byte, fingerprint string) (*PolicyIndexHandle, error) {
	started := time.Now()

	text, err := p.extractor.ExtractText(ctx, source)
	if err != nil {
		return nil, &IndexBuildError{Stage: "extract", Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &IndexBuildError{Stage: "extract", Err: &EmptyDocumentError{}}
	}

	chunks, err := p.split(text)
	if err != nil {
		return nil, &IndexBuildError{Stage: "split", Err: err}
	}
	if len(chunks) == 0 {
		return nil, &IndexBuildError{Stage: "split", Err: errors.New("no chunks produced")}
	}

	db := chromem.NewDB()
	coll, err := db.CreateCollection(policyCollection, nil, p.embed)
	if err != nil {
		return nil, &IndexBuildError{Stage: "create collection", Err: err}
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:       fmt.Sprintf("chunk-%05d", i),
			Metadata: map[string]string{chunkIndexKey: strconv.Itoa(i)},
			Content:  chunk,
		}
	}
	if err := coll.AddDocuments(ctx, docs, p.cfg.Concurrency); err != nil {
		return nil, &IndexBuildError{Stage: "embed", Err: err}
	}

	p.logger.Info("Policy index built",
		zap.String("source", p.cfg.SourcePath),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(started)),
	)

	if err := p.persist(db, len(chunks), fingerprint); err != nil {
		// the in-memory index is still usable; the next process rebuilds
		p.logger.Warn("Failed to persist policy snapshot", zap.Error(err))
	}

	return &PolicyIndexHandle{collection: coll, fingerprint: fingerprint, source: "fresh"}, nil
}

func (p *PolicyIndex) split(text string) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.cfg.ChunkSize),
		textsplitter.WithChunkOverlap(p.cfg.ChunkOverlap),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks, nil
}

// persist writes the snapshot then the manifest, each through a rename, so a
// crash never leaves a manifest pointing at a partial snapshot.
func (p *PolicyIndex) persist(db *chromem.DB, chunks int, fingerprint string) error {
	if p.cfg.SnapshotDir == "" {
		return nil
	}
	if err := os.MkdirAll(p.cfg.SnapshotDir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	snapshotPath := filepath.Join(p.cfg.SnapshotDir, snapshotFile)
	tmp := snapshotPath + ".tmp"
	if err := db.ExportToFile(tmp, true, "", policyCollection); err != nil {
		return fmt.Errorf("failed to export snapshot: %w", err)
	}
	if err := os.Rename(tmp, snapshotPath); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	manifest, err := json.MarshalIndent(snapshotManifest{
		Fingerprint:    fingerprint,
		Chunks:         chunks,
		ChunkSize:      p.cfg.ChunkSize,
		ChunkOverlap:   p.cfg.ChunkOverlap,
		EmbeddingModel: p.cfg.EmbeddingModel,
		BuiltAt:        time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(p.cfg.SnapshotDir, manifestFile)
	if err := os.WriteFile(manifestPath+".tmp", manifest, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return os.Rename(manifestPath+".tmp", manifestPath)
}

func (h *PolicyIndexHandle) Len() int {
	return h.collection.Count()
}

// Source reports whether the handle came from a snapshot or a fresh build.
func (h *PolicyIndexHandle) Source() string {
	return h.source
}

func (h *PolicyIndexHandle) Fingerprint() string {
	return h.fingerprint
}

// Search returns the k chunks most similar to query, ordered by descending
// similarity and then by ascending chunk index. k <= 0 means the default of 3.
func (h *PolicyIndexHandle) Search(ctx context.Context, query string, k int) ([]models.PolicyChunk, error) {
	if k <= 0 {
		k = defaultTopK
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is empty")
	}

	// rank everything so ties are broken by chunk index, not by map order
	results, err := h.collection.Query(ctx, query, h.collection.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy index: %w", err)
	}

	chunks := make([]models.PolicyChunk, len(results))
	for i, r := range results {
		idx, err := strconv.Atoi(r.Metadata[chunkIndexKey])
		if err != nil {
			return nil, fmt.Errorf("chunk %s has no index: %w", r.ID, err)
		}
		chunks[i] = models.PolicyChunk{Index: idx, Text: r.Content, Score: r.Similarity}
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Score != chunks[j].Score {
			return chunks[i].Score > chunks[j].Score
		}
		return chunks[i].Index < chunks[j].Index
	})

	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}

// NewPolicyIndexFromConfig wires the policy index to the configured PDF
// reader and embedding provider.
func NewPolicyIndexFromConfig(cfg *config.Config, logger *zap.Logger) (*PolicyIndex, error) {
	embed, err := NewEmbeddingFunc(&cfg.Embedding)
	if err != nil {
		return nil, err
	}
	return NewPolicyIndex(PolicyIndexConfig{
		SourcePath:     cfg.Policy.SourcePath,
		SnapshotDir:    cfg.Policy.SnapshotDir,
		ChunkSize:      cfg.Policy.ChunkSize,
		ChunkOverlap:   cfg.Policy.ChunkOverlap,
		EmbeddingModel: cfg.Embedding.Provider + "/" + cfg.Embedding.Model,
		Concurrency:    cfg.Embedding.Concurrency,
	}, NewPDFTextService(logger), embed, logger), nil
}
