package apperr

import (
	"errors"
	"fmt"
)

// ValidationError: request rejected before touching storage.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func NotFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// StockShortageError is returned when a line item asks for more than the
// product has left at submission time.
type StockShortageError struct {
	ProductID int64
	Name      string
	Requested int
	Remaining int
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("%s is out of stock: only %d left", e.Name, e.Remaining)
}

// StorageError wraps any database failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err unless it already carries one of the domain errors.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		ve *ValidationError
		nf *NotFoundError
		se *StockShortageError
		st *StorageError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &se) || errors.As(err, &st) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
