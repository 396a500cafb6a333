package billing

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is raised before any request is sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validation failures of the invoice composer
var (
	ErrNoCustomer = &ValidationError{Message: "no customer"}
	ErrNoItems    = &ValidationError{Message: "no items"}
)

// ErrNotNumeric marks a quantity or price that does not parse as a number.
var ErrNotNumeric = errors.New("not a number")

// APIError is a non-2xx response from the backend
type APIError struct {
	Status int
	Detail string // Human-readable "detail" field, may be empty
	Body   string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("API error %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("API error %d: %s", e.Status, http.StatusText(e.Status))
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// MessageFor turns err into the text shown to the user. Validation messages and
// backend details are shown as-is; anything else gets the fallback.
func MessageFor(err error, fallback string) string {
	if err == nil {
		return ""
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		switch valErr {
		case ErrNoCustomer:
			return "Please select a customer"
		case ErrNoItems:
			return "Please add at least one item"
		}
		return valErr.Message
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}

	return fallback
}
