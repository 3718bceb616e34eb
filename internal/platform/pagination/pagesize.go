package pagination

import (
	"errors"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits pageSize.
	DefaultPageSize = 50
	// MaxPageSize caps the supported pageSize to prevent unbounded queries.
	MaxPageSize = 100
)

// ErrInvalidPageSize marks pageSize values outside the supported range.
var ErrInvalidPageSize = errors.New("pagination: pageSize must be a positive integer not exceeding 100")

// ParsePageSize validates the raw pageSize query value. An empty value returns
// zero so callers can apply their own default.
func ParsePageSize(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size < 1 || size > MaxPageSize {
		return 0, ErrInvalidPageSize
	}
	return size, nil
}
