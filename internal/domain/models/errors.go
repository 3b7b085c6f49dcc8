package models

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError кастомный тип ошибки для валидации входных данных
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CollaboratorError оборачивает сбой внешнего участника: леджера, sealing, хранилища блобов или кошелька.
// Сохранённое состояние при этом остаётся согласованным, операцию можно повторить.
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}

type ItemFailure struct {
	Index  int    `json:"index"`
	BlobID string `json:"blob_id,omitempty"`
	Reason string `json:"reason"`
}

// PartialBatchError перечисляет сбои отдельных элементов пакета, в котором часть прошла успешно
type PartialBatchError struct {
	Op       string
	Total    int
	Failures []ItemFailure
}

func (e *PartialBatchError) Error() string {
	idx := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		idx = append(idx, fmt.Sprint(f.Index))
	}
	return fmt.Sprintf("%s: %d of %d items failed (indexes %s)", e.Op, len(e.Failures), e.Total, strings.Join(idx, ","))
}

func IsPartialBatchError(err error) bool {
	var pe *PartialBatchError
	return errors.As(err, &pe)
}
