package domain

import "time"

type BatchStatus string

const (
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchProcessing BatchStatus = "processing"
	BatchUnknown    BatchStatus = "unknown"
)

// Batch is the unit of work handed from the api to the worker. It is never
// stored on its own; membership lives on the documents and the full payload
// travels over the queue.
type Batch struct {
	ID             string        `json:"id"`
	CaseID         string        `json:"case_id"`
	OutputLanguage string        `json:"output_language,omitempty"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	Members        []BatchMember `json:"members"`
}

type BatchMember struct {
	DocumentID string `json:"document_id"`
	StorageKey string `json:"storage_key"`
	Filename   string `json:"filename"`
}

type BatchProgress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Processing int `json:"processing"`
	Pending    int `json:"pending"`
	Percentage int `json:"percentage"`
}

// DeriveBatchStatus folds member statuses into one batch-level status:
// completed only when every member completed, failed only when every member
// failed, processing while any member is still pending or in flight.
func DeriveBatchStatus(docs []Document) BatchStatus {
	if len(docs) == 0 {
		return BatchUnknown
	}

	completed, failed, active := 0, 0, 0
	for _, doc := range docs {
		switch doc.Status {
		case StatusCompleted:
			completed++
		case StatusFailed:
			failed++
		case StatusPending, StatusProcessing:
			active++
		}
	}

	switch {
	case completed == len(docs):
		return BatchCompleted
	case failed == len(docs):
		return BatchFailed
	case active > 0:
		return BatchProcessing
	default:
		return BatchUnknown
	}
}

func ComputeProgress(docs []Document) BatchProgress {
	progress := BatchProgress{Total: len(docs)}
	for _, doc := range docs {
		switch doc.Status {
		case StatusCompleted:
			progress.Completed++
		case StatusFailed:
			progress.Failed++
		case StatusProcessing:
			progress.Processing++
		case StatusPending:
			progress.Pending++
		}
	}
	if progress.Total > 0 {
		progress.Percentage = progress.Completed * 100 / progress.Total
	}
	return progress
}
