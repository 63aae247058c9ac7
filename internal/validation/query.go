package validation

import (
	"strconv"
	"strings"
	"time"

	"github.com/jarvis/MissionControl/api/internal/apperr"
)

/* ParseLimit parses a list limit; an absent value yields 0 so the caller applies its default */
func ParseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, apperr.Validation("limit", "must be a positive integer")
	}
	return n, nil
}

/* ParseSince parses an optional RFC 3339 timestamp */
func ParseSince(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, apperr.Validation("since", "must be an RFC 3339 timestamp")
	}
	return &t, nil
}
