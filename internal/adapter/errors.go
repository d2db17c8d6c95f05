package adapter

import (
	"fmt"
	"strings"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
)

// Attempt records one provider's failure during a fetch.
type Attempt struct {
	Provider string
	Err      error
}

// FetchError is the terminal failure: every provider in the try-order
// failed and no cached data, fresh or stale, exists.
type FetchError struct {
	Symbol   string
	Attempts []Attempt
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Err.Error())
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.Symbol, strings.Join(parts, "; "))
}

// AllNotFound reports whether every provider explicitly said the symbol
// does not exist, as opposed to being down or throttled.
func (e *FetchError) AllNotFound() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if !provider.IsNotFound(a.Err) {
			return false
		}
	}
	return true
}
