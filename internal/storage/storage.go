package storage

import "errors"

var (
	ErrDraftNotFound    = errors.New("draft not found")
	ErrAlbumNotFound    = errors.New("album not found")
	ErrRecordNotFound   = errors.New("publish record not found")
	ErrAlreadyStarted   = errors.New("publication already started")
	ErrNotStarted       = errors.New("publication not started")
	ErrRecordsExist     = errors.New("publish records already persisted")
	ErrInvalidStatus    = errors.New("invalid draft status for operation")
	ErrSelfApproval     = errors.New("approver owns the draft")
	ErrUploadIncomplete = errors.New("content upload incomplete")
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrBlobTooLarge = errors.New("blob size exceeds limit")
)
