package vault

import "github.com/starford/othala/internal/models"

// BatchMetadata accounts for every item a batch touched.
type BatchMetadata struct {
	TotalProcessed int `json:"total_processed"`
	SuccessCount   int `json:"success_count"`
	ErrorCount     int `json:"error_count"`
}

// BatchResult is the uniform envelope for multi-document operations:
// the successfully produced data travels alongside per-item error
// records. A batch never aborts for one bad document and never drops
// a failure silently.
type BatchResult[T any] struct {
	Data     T                       `json:"data"`
	Errors   []models.OperationError `json:"errors,omitempty"`
	Metadata BatchMetadata           `json:"metadata"`
}

func newBatchResult[T any](data T, errs []models.OperationError, total int) *BatchResult[T] {
	return &BatchResult[T]{
		Data:   data,
		Errors: errs,
		Metadata: BatchMetadata{
			TotalProcessed: total,
			SuccessCount:   total - len(errs),
			ErrorCount:     len(errs),
		},
	}
}
