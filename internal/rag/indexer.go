package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arin/pagesum/internal/config"
	"github.com/sirupsen/logrus"
)

const indexDirName = "index"

// Builder embeds page text into an Index. Built indexes are cached on disk
// keyed by the embedding model and the exact text, so reopening a page
// does not re-embed it.
type Builder struct {
	embedder  Embedder
	model     string
	cacheDir  string
	chunkSize int
	overlap   int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithCacheDir stores cached indexes under dir. An empty dir disables
// caching.
func WithCacheDir(dir string) BuilderOption {
	return func(b *Builder) { b.cacheDir = dir }
}

// WithChunking overrides the chunk size and overlap.
func WithChunking(size, overlap int) BuilderOption {
	return func(b *Builder) {
		b.chunkSize = size
		b.overlap = overlap
	}
}

// NewBuilder creates a Builder that embeds with e. model names the
// embedding model and is part of the cache key.
func NewBuilder(e Embedder, model string, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:  e,
		model:     model,
		cacheDir:  filepath.Join(config.Dir(), indexDirName),
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Index splits text, embeds every chunk and returns the searchable Index.
// progress, if non-nil, is called after each chunk is embedded.
func (b *Builder) Index(ctx context.Context, text string, progress func(done, total int)) (*Index, error) {
	log := logrus.WithField("component", "rag")

	path := ""
	if b.cacheDir != "" {
		path = filepath.Join(b.cacheDir, cacheKey(b.model, b.chunkSize, b.overlap, text)+".bin")
		cached := NewStore()
		if err := cached.Load(path); err == nil {
			log.WithField("chunks", cached.Len()).Debug("index cache hit")
			return NewIndex(cached, b.embedder), nil
		} else if !os.IsNotExist(err) {
			log.WithError(err).Warn("ignoring unreadable index cache")
		}
	}

	chunks := SplitText(text, b.chunkSize, b.overlap)
	store := NewStore()
	for i, chunk := range chunks {
		vec, err := b.embedder.Embed(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d/%d: %w", i+1, len(chunks), err)
		}
		store.Add(Document{Text: chunk, Chunk: i, Vector: vec})
		if progress != nil {
			progress(i+1, len(chunks))
		}
	}

	if path != "" && store.Len() > 0 {
		if err := store.Save(path); err != nil {
			log.WithError(err).Warn("failed to cache index")
		}
	}
	log.WithField("chunks", store.Len()).Debug("page indexed")
	return NewIndex(store, b.embedder), nil
}

func cacheKey(model string, size, overlap int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00", model, size, overlap)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
