// Package indexer turns source documents into persisted per-domain vector indexes.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/iasistente/internal/config"
	"github.com/hyperjump/iasistente/internal/embedding"
	"github.com/hyperjump/iasistente/internal/extract"
	"github.com/hyperjump/iasistente/internal/knowledge"
	"github.com/hyperjump/iasistente/internal/metrics"
	"github.com/hyperjump/iasistente/internal/models"
	"github.com/hyperjump/iasistente/internal/storage"
	"github.com/hyperjump/iasistente/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EmbedderFactory creates the embedder used for one ingestion. The API key travels with
// each request, so the embedder cannot be built ahead of time.
type EmbedderFactory func(ctx context.Context, apiKey string) (embedding.Embedder, error)

// IngestRequest names a source file, the base directory for its index and the API key.
type IngestRequest struct {
	Path    string
	BaseDir string
	APIKey  string
}

// Indexer runs the load, split, embed and persist pipeline for one file at a time.
type Indexer struct {
	extractor   *extract.Extractor
	chunker     *Chunker
	newEmbedder EmbedderFactory
	ledger      storage.IngestionLog
	workers     int
	logger      *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for pipeline events and failures.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithLedger records every ingestion result in log.
func WithLedger(log storage.IngestionLog) IndexerOption {
	return func(idx *Indexer) { idx.ledger = log }
}

// NewIndexer creates an indexer using the splitting and worker settings from cfg.
func NewIndexer(cfg *config.IngestConfig, newEmbedder EmbedderFactory, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		extractor:   extract.NewExtractor(),
		chunker:     NewChunker(cfg.ChunkSize, cfg.ChunkOverlapOrDefault()),
		newEmbedder: newEmbedder,
		workers:     max(cfg.Workers, 1),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexFile ingests pdfPath into <baseDir>/faiss_index_<name>, where name is the file name
// without its extension. It reports success; failures are logged, never raised.
func (idx *Indexer) IndexFile(ctx context.Context, pdfPath, baseDir, apiKey string) bool {
	res, _ := idx.Ingest(ctx, IngestRequest{Path: pdfPath, BaseDir: baseDir, APIKey: apiKey})
	return res.Succeeded()
}

// Ingest runs the pipeline for one file and returns its typed result. On failure the result
// is also returned, with ErrorKind naming the failed step. Nothing is written unless every
// step succeeds.
func (idx *Indexer) Ingest(ctx context.Context, req IngestRequest) (*models.IngestionResult, error) {
	doc := models.NewDocument(req.Path)
	res := &models.IngestionResult{
		ID:        uuid.New().String(),
		Source:    req.Path,
		Name:      doc.Name,
		StartedAt: time.Now().UTC(),
	}
	err := idx.run(ctx, req, doc, res)
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		res.Fail(err)
		idx.logger.Error("ingestion failed",
			zap.String("path", req.Path),
			zap.String("kind", res.ErrorKind),
			zap.Error(err),
		)
	} else {
		res.Status = models.IngestionSucceeded
		idx.logger.Info("ingestion succeeded",
			zap.String("path", req.Path),
			zap.String("index", res.IndexPath),
			zap.Int("pages", res.Pages),
			zap.Int("chunks", res.Chunks),
			zap.Duration("duration", res.Duration),
		)
	}
	metrics.IngestionsTotal.WithLabelValues(string(res.Status), res.ErrorKind).Inc()
	idx.record(ctx, res)
	return res, err
}

func (idx *Indexer) run(ctx context.Context, req IngestRequest, doc *models.Document, res *models.IngestionResult) error {
	if req.APIKey == "" {
		idx.logger.Error("ingestion stopped: missing Google API key", zap.String("path", req.Path))
		return models.NewError(models.ErrConfig, "ingest", "GOOGLE_API_KEY is not set")
	}
	if req.BaseDir == "" {
		return models.NewError(models.ErrConfig, "ingest", "FAISS base path is not configured")
	}
	if err := knowledge.ValidateDomain(doc.Name); err != nil {
		return err
	}
	store := knowledge.NewStore(req.BaseDir, knowledge.WithLogger(idx.logger))

	pages, err := idx.extractor.Load(req.Path)
	if err != nil {
		return models.WrapError(models.ErrDocumentLoad, "load document", err)
	}
	doc.Pages = pages
	res.Pages = len(pages)
	if !doc.HasText() {
		return models.WrapError(models.ErrEmptyDocument, "load document", fmt.Errorf("%s", req.Path))
	}

	chunks := idx.chunker.ChunkPages(doc.Name, doc.Pages)
	if len(chunks) == 0 {
		return models.WrapError(models.ErrEmptyDocument, "split document", fmt.Errorf("%s", req.Path))
	}
	idx.logger.Debug("document split", zap.String("path", req.Path), zap.Int("chunks", len(chunks)))

	embedder, err := idx.newEmbedder(ctx, req.APIKey)
	if err != nil {
		return err
	}
	defer embedder.Close()

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		if models.IsKind(err, models.ErrProvider) {
			return err
		}
		return models.WrapError(models.ErrProvider, "embed documents", err)
	}
	if len(vectors) != len(chunks) || len(vectors[0]) == 0 {
		return models.NewError(models.ErrProvider, "embed documents",
			fmt.Sprintf("got %d embeddings for %d chunks", len(vectors), len(chunks)))
	}

	index, err := vector.NewFlatIndex(len(vectors[0]))
	if err != nil {
		return models.WrapError(models.ErrIndexBuild, "build index", err)
	}
	if err := index.Add(ctx, chunks, vectors); err != nil {
		return models.WrapError(models.ErrIndexBuild, "build index", err)
	}

	path, err := store.Write(doc.Name, index, models.Manifest{
		FormatVersion:  models.ManifestFormatVersion,
		EmbeddingModel: embedder.Model(),
		Dimensions:     index.Dimensions(),
		Chunks:         index.Size(),
		Source:         filepath.Base(req.Path),
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	res.IndexPath = path
	res.Chunks = index.Size()
	res.EmbeddingModel = embedder.Model()
	return nil
}

func (idx *Indexer) record(ctx context.Context, res *models.IngestionResult) {
	if idx.ledger == nil {
		return
	}
	if err := idx.ledger.Record(context.WithoutCancel(ctx), res); err != nil {
		idx.logger.Warn("failed to record ingestion", zap.String("id", res.ID), zap.Error(err))
	}
}

// IngestBatch ingests every path into baseDir and returns one result per path, in input
// order. A failed file never stops the batch.
func (idx *Indexer) IngestBatch(ctx context.Context, paths []string, baseDir, apiKey string) []*models.IngestionResult {
	results := make([]*models.IngestionResult, len(paths))
	var g errgroup.Group
	g.SetLimit(idx.workers)
	for i, p := range paths {
		g.Go(func() error {
			results[i], _ = idx.Ingest(ctx, IngestRequest{Path: p, BaseDir: baseDir, APIKey: apiKey})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CollectFiles expands paths into the regular files to ingest. Files are kept as given;
// directories are walked recursively and filtered by allowedExts (all files when empty).
func CollectFiles(paths []string, allowedExts []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
				return nil
			}
			if finfo, statErr := os.Stat(path); statErr != nil || !finfo.Mode().IsRegular() {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	return files, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
