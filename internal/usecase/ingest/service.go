// Package ingest turns uploaded documents into embedded, tenant-scoped
// chunks in the vector store.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strugglingman/rag-chatbot/internal/domain"
	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
	"github.com/strugglingman/rag-chatbot/internal/domain/tenant"
	"github.com/strugglingman/rag-chatbot/internal/metrics"
)

// Config holds chunking geometry.
type Config struct {
	ChunkTarget  int
	ChunkOverlap int
}

// Request describes one document to ingest. Path points at the uploaded
// bytes on local disk; Filename is the user-facing source name.
type Request struct {
	Path     string
	Filename string
	Tags     []string
	Shared   bool
	Scope    tenant.Filter
}

// Result reports what one ingestion produced. Zero Chunks with an empty
// FileID means the document held no extractable text.
type Result struct {
	FileID string
	Chunks int
}

// Service is the ingestion pipeline: read, chunk, embed, upsert, invalidate.
type Service struct {
	reader    DocumentReader
	embed     Embedder
	store     ChunkStore
	lexical   Invalidator
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
	newFileID func() string
}

// New creates the ingestion service.
func New(
	rd DocumentReader, embed Embedder, store ChunkStore, lexical Invalidator,
	cfg Config, logger *zap.Logger,
) *Service {
	if cfg.ChunkTarget <= 0 {
		cfg.ChunkTarget = DefaultChunkTarget
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	return &Service{
		reader:    rd,
		embed:     embed,
		store:     store,
		lexical:   lexical,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newFileID: uuid.NewString,
	}
}

// Ingest processes one document end to end. Unsupported formats return
// domain.ErrUnsupportedFile; documents with no extractable text return an
// empty Result without error.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	res, err := s.ingest(ctx, req)

	switch {
	case err != nil:
		metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
	case res.Chunks == 0:
		metrics.IngestRequestsTotal.WithLabelValues("empty").Inc()
	default:
		metrics.IngestRequestsTotal.WithLabelValues("success").Inc()
		metrics.IngestedChunksTotal.Add(float64(res.Chunks))
	}

	return res, err
}

func (s *Service) ingest(ctx context.Context, req Request) (Result, error) {
	if req.Filename == "" {
		return Result{}, fmt.Errorf("%w: empty filename", domain.ErrUnsupportedFile)
	}

	pages, err := s.reader.Read(req.Path)
	if err != nil {
		return Result{}, fmt.Errorf("read document: %w", err)
	}

	pieces := chunkPages(pages, s.cfg.ChunkTarget, s.cfg.ChunkOverlap)
	if len(pieces) == 0 {
		s.logger.Info("document has no extractable text",
			zap.String("source", req.Filename))
		return Result{}, nil
	}

	now := s.now()
	meta := chunk.Meta{
		Source:     req.Filename,
		Ext:        strings.TrimPrefix(strings.ToLower(filepath.Ext(req.Filename)), "."),
		Tags:       strings.ToLower(strings.Join(req.Tags, ",")),
		DeptID:     req.Scope.DeptID(),
		UserID:     req.Scope.UserID(),
		Shared:     req.Shared,
		FileID:     s.newFileID(),
		UploadAt:   now.Format(time.RFC3339),
		UploadedTS: now.Unix(),
	}

	chunks := make([]chunk.Chunk, 0, len(pieces))
	texts := make([]string, 0, len(pieces))
	seen := make(map[string]struct{}, len(pieces))
	for _, p := range pieces {
		m := meta
		m.Page = p.page
		c := chunk.New(m, p.text)
		if _, dup := seen[c.ID()]; dup {
			continue
		}
		seen[c.ID()] = struct{}{}
		chunks = append(chunks, c)
		texts = append(texts, p.text)
	}

	vectors, err := s.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return Result{}, fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrEmbeddingProviderError, len(vectors), len(chunks))
	}

	if err := s.store.Upsert(ctx, chunks, vectors); err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrVectorStoreUnavailable, err)
	}

	s.lexical.Invalidate()

	s.logger.Info("document ingested",
		zap.String("source", req.Filename),
		zap.String("file_id", meta.FileID),
		zap.Int("chunks", len(chunks)),
		zap.Bool("shared", req.Shared))

	return Result{FileID: meta.FileID, Chunks: len(chunks)}, nil
}
