package validation

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jarvis/MissionControl/api/internal/apperr"
)

/* ParseUUID parses a UUID path or query value, reporting a validation error on fieldName */
func ParseUUID(s, fieldName string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, apperr.Validation(fieldName, "is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Validation(fieldName, "must be a valid UUID")
	}
	return id, nil
}

/* ParseOptionalUUID parses a UUID that may be absent */
func ParseOptionalUUID(s, fieldName string) (*uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	id, err := ParseUUID(s, fieldName)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
