package ports

import (
	"context"
	"time"

	"github.com/kirillkom/casefile/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByBatch(ctx context.Context, batchID string) ([]domain.Document, error)
	ListCompletedByCase(ctx context.Context, caseID string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SavePreparation(ctx context.Context, id string, prep domain.Prepared) error
	SaveExtraction(ctx context.Context, id string, category domain.Category, ext *domain.Extraction) error
	MarkBatchFailed(ctx context.Context, batchID, errMessage string) error
}

// SynthesisRepository persists the per-case aggregates.
type SynthesisRepository interface {
	GetByCase(ctx context.Context, caseID string, category domain.Category) (*domain.Synthesis, error)
	Upsert(ctx context.Context, synthesis *domain.Synthesis) error
	DeleteByCase(ctx context.Context, caseID string, category domain.Category) (bool, error)
}

// ObjectStorage stores source documents as immutable blobs.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MessageQueue hands submitted batches from the api to the worker.
type MessageQueue interface {
	PublishBatchSubmitted(ctx context.Context, batch domain.Batch) error
	SubscribeBatchSubmitted(ctx context.Context, handler func(context.Context, domain.Batch) error) error
}

// DocumentPreparer inspects a raw file before analysis. It never fails:
// unreadable input simply yields an empty Prepared.
type DocumentPreparer interface {
	Prepare(ctx context.Context, data []byte) domain.Prepared
}

// ClassifyInput carries whichever representation of the document is
// available. Text is preferred; Raw goes to the model when the file has no
// extractable text layer.
type ClassifyInput struct {
	Filename string
	Text     string
	Raw      []byte
}

// DocumentClassifier assigns one category from the closed set. Labels the
// model invents collapse to CategoryOther inside the implementation.
type DocumentClassifier interface {
	Classify(ctx context.Context, in ClassifyInput) (domain.Category, error)
}

type ExtractInput struct {
	Filename string
	Category domain.Category
	Text     string
	Raw      []byte
	Language string
}

// FactExtractor pulls structured facts from one document. It degrades rather
// than fails: any unrecoverable model output becomes a fallback extraction.
type FactExtractor interface {
	Extract(ctx context.Context, in ExtractInput) *domain.Extraction
}

// CaseSynthesizer aggregates completed documents into one case-level view.
// Failures degrade to a placeholder synthesis instead of an error.
type CaseSynthesizer interface {
	Synthesize(ctx context.Context, caseID string, docs []domain.Document, language string) *domain.Synthesis
}
