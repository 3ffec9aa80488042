package dbmo

import (
	"errors"
	"fmt"
)

var (
	// ErrBinding is returned when a placeholder cannot be resolved from the supplied parameters.
	ErrBinding = errors.New("dbmo: parameter binding failed")

	// ErrAutoComplete is returned when an INSERT/UPDATE shorthand has no column list.
	ErrAutoComplete = errors.New("dbmo: sql auto-completion failed")

	// ErrExecution wraps any failure raised by the backend while opening, executing or reading.
	ErrExecution = errors.New("dbmo: execution failed")

	// ErrTransaction is returned when commit or rollback fails.
	ErrTransaction = errors.New("dbmo: transaction failed")

	// ErrTransactionActive is returned by Begin when a transaction is already pending or active.
	ErrTransactionActive = errors.New("dbmo: transaction already begun")

	// ErrConversion is returned when a column value cannot be converted to the target member type.
	ErrConversion = errors.New("dbmo: value conversion failed")

	// ErrUnsupported is returned by providers for operations the backend cannot perform.
	ErrUnsupported = errors.New("dbmo: operation not supported by provider")

	// ErrNoProvider is returned when an engine is built without a provider.
	ErrNoProvider = errors.New("dbmo: provider is nil")
)

// BindError describes which placeholder failed to bind and in which statement.
type BindError struct {
	Placeholder string
	SQL         string
	Reason      string
}

func (e *BindError) Error() string {
	if e.Placeholder == "" {
		return fmt.Sprintf("dbmo: %s, sql: [%s]", e.Reason, e.SQL)
	}
	return fmt.Sprintf("dbmo: placeholder [%s] %s, sql: [%s]", e.Placeholder, e.Reason, e.SQL)
}

// Unwrap lets errors.Is(err, ErrBinding) match.
func (e *BindError) Unwrap() error { return ErrBinding }

func bindErrorf(placeholder, sql, format string, args ...any) error {
	return &BindError{Placeholder: placeholder, SQL: sql, Reason: fmt.Sprintf(format, args...)}
}
