package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/casefile/internal/core/domain"
	"github.com/kirillkom/casefile/internal/core/ports"
)

type SubmitBatchUseCase struct {
	repo            ports.DocumentRepository
	storage         ports.ObjectStorage
	queue           ports.MessageQueue
	defaultLanguage string
}

func NewSubmitBatchUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	defaultLanguage string,
) *SubmitBatchUseCase {
	return &SubmitBatchUseCase{
		repo:            repo,
		storage:         storage,
		queue:           queue,
		defaultLanguage: defaultLanguage,
	}
}

// Submit stores every uploaded file, registers one pending document per file
// under a fresh batch and publishes the batch for the worker. The documents
// exist before the event goes out, so a worker can never see a batch whose
// members are missing.
func (uc *SubmitBatchUseCase) Submit(
	ctx context.Context,
	caseID, language string,
	uploads []ports.BatchUpload,
) (*domain.Batch, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch", errors.New("case id is required"))
	}
	if len(uploads) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch", errors.New("at least one file is required"))
	}
	if strings.TrimSpace(language) == "" {
		language = uc.defaultLanguage
	}

	now := time.Now().UTC()
	batch := &domain.Batch{
		ID:             uuid.NewString(),
		CaseID:         caseID,
		OutputLanguage: language,
		SubmittedAt:    now,
		Members:        make([]domain.BatchMember, 0, len(uploads)),
	}

	for _, upload := range uploads {
		id := uuid.NewString()

		storageKey := upload.StorageKey
		if storageKey == "" {
			if len(upload.Data) == 0 {
				return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch",
					fmt.Errorf("%s has neither content nor a storage key", upload.Filename))
			}
			storageKey = fmt.Sprintf("cases/%s/%s_%s", caseID, id, sanitizeFilename(upload.Filename))
			if err := uc.storage.Put(ctx, storageKey, upload.Data, upload.ContentType); err != nil {
				return nil, fmt.Errorf("store %s: %w", upload.Filename, err)
			}
		}

		doc := &domain.Document{
			ID:         id,
			CaseID:     caseID,
			BatchID:    batch.ID,
			Filename:   upload.Filename,
			StorageKey: storageKey,
			Status:     domain.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := uc.repo.Create(ctx, doc); err != nil {
			return nil, fmt.Errorf("create document metadata: %w", err)
		}

		batch.Members = append(batch.Members, domain.BatchMember{
			DocumentID: id,
			StorageKey: storageKey,
			Filename:   upload.Filename,
		})
	}

	if err := uc.queue.PublishBatchSubmitted(ctx, *batch); err != nil {
		return nil, fmt.Errorf("publish batch event: %w", err)
	}

	return batch, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
