package provider

import (
	"errors"
	"fmt"
)

// ErrSymbolNotFound marks an upstream that explicitly reported no such
// symbol. Other providers are still worth trying: data-source coverage
// differs, so "not found" in one source does not imply the same elsewhere.
var ErrSymbolNotFound = errors.New("symbol not found")

// Error is a single provider's failure. The orchestrator aggregates these;
// they are never surfaced to callers directly.
type Error struct {
	Provider  string
	Symbol    string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf wraps a retryable failure (network, timeout, upstream 5xx).
func Errorf(provider, symbol, format string, args ...any) *Error {
	return &Error{Provider: provider, Symbol: symbol, Retryable: true, Err: fmt.Errorf(format, args...)}
}

// NotFound wraps ErrSymbolNotFound for the given provider and symbol.
func NotFound(provider, symbol string) *Error {
	return &Error{Provider: provider, Symbol: symbol, Retryable: false, Err: fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)}
}

// IsNotFound reports whether err (anywhere in its chain) is a
// symbol-not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSymbolNotFound)
}
