package file

import "errors"

var (
	// Validation errors
	ErrInvalidKey    = errors.New("invalid object key") // Prevents path traversal and empty keys
	ErrInvalidConfig = errors.New("invalid configuration")

	// Object errors
	ErrFileNotFound = errors.New("file not found")

	// I/O operation errors - wrapped with context for debugging
	ErrFailedToReadFile        = errors.New("failed to read file")
	ErrFailedToWriteFile       = errors.New("failed to write file")
	ErrFailedToDeleteFile      = errors.New("failed to delete file")
	ErrFailedToCreateDirectory = errors.New("failed to create directory")
	ErrFailedToGetAbsolutePath = errors.New("failed to get absolute path")

	// S3-specific errors for proper error classification
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrRequestTimeout     = errors.New("request timed out")
	ErrServiceUnavailable = errors.New("service temporarily unavailable") // Used for throttling and retries
	ErrPresignUnsupported = errors.New("client does not support presigned URLs")

	// Context and cancellation errors
	ErrOperationTimeout  = errors.New("operation timed out")
	ErrOperationCanceled = errors.New("operation canceled")

	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
)
