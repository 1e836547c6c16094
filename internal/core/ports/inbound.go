package ports

import (
	"context"

	"github.com/kirillkom/casefile/internal/core/domain"
)

// BatchUpload is one file as received from the api surface. A non-empty
// StorageKey marks a blob already sitting in object storage; Data is then
// ignored and nothing is uploaded.
type BatchUpload struct {
	Filename    string
	ContentType string
	Data        []byte
	StorageKey  string
}

// BatchSubmitter is the inbound contract for accepting a batch of case
// documents. It stores the blobs, registers pending documents and hands the
// batch to the worker.
type BatchSubmitter interface {
	Submit(ctx context.Context, caseID, language string, uploads []BatchUpload) (*domain.Batch, error)
}

// BatchProcessor is the inbound contract for asynchronous batch processing.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, batch domain.Batch) error
}

// BatchStatusReport is the aggregate view the api serves for one batch.
type BatchStatusReport struct {
	BatchID   string               `json:"batch_id"`
	CaseID    string               `json:"case_id"`
	Status    domain.BatchStatus   `json:"status"`
	Progress  domain.BatchProgress `json:"progress"`
	Documents []domain.Document    `json:"documents"`
	Synthesis *domain.Synthesis    `json:"synthesis,omitempty"`
}

// BatchStatusReader derives batch state from its member documents.
type BatchStatusReader interface {
	BatchStatus(ctx context.Context, batchID string) (*BatchStatusReport, error)
}

// SynthesisService is the inbound contract for reading and amending the
// case-level aggregate.
type SynthesisService interface {
	Get(ctx context.Context, caseID string) (*domain.Synthesis, error)
	Regenerate(ctx context.Context, caseID, language string) (*domain.Synthesis, error)
	ApplyOverrides(ctx context.Context, caseID string, patch map[string]any) (*domain.Synthesis, error)
}

// DocumentReader is the inbound read model for single documents.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}
