package validation

import (
	"testing"
	"time"

	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUUID(t *testing.T) {
	id, err := ParseUUID(" 6f1c2a8e-3b0c-4d8e-9a55-0c7f4a6b1e22 ", "id")
	require.NoError(t, err)
	assert.Equal(t, "6f1c2a8e-3b0c-4d8e-9a55-0c7f4a6b1e22", id.String())

	_, err = ParseUUID("not-a-uuid", "id")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = ParseUUID("", "agentId")
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "agentId", appErr.Field)
}

func TestParseOptionalUUID(t *testing.T) {
	id, err := ParseOptionalUUID("", "agentId")
	require.NoError(t, err)
	assert.Nil(t, id)

	_, err = ParseOptionalUUID("zzz", "agentId")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"25", 25, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLimit(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseSince(t *testing.T) {
	since, err := ParseSince("")
	require.NoError(t, err)
	assert.Nil(t, since)

	since, err = ParseSince("2026-03-01T12:00:00Z")
	require.NoError(t, err)
	assert.True(t, since.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))

	_, err = ParseSince("yesterday")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestValidateOrigins(t *testing.T) {
	assert.NoError(t, ValidateOrigins([]string{"*", "http://localhost:5173", "https://ops.example.com"}, "CORS_ALLOWED_ORIGINS"))
	assert.Error(t, ValidateOrigins([]string{"localhost:5173"}, "CORS_ALLOWED_ORIGINS"))
	assert.Error(t, ValidateOrigins([]string{"https://ops.example.com/app"}, "CORS_ALLOWED_ORIGINS"))
}

func TestValidateDSN(t *testing.T) {
	assert.NoError(t, ValidateDSN("postgres://mc:pw@localhost:5432/missioncontrol?sslmode=disable", "DATABASE_URL"))
	assert.NoError(t, ValidateDSN("host=localhost dbname=missioncontrol user=mc", "DATABASE_URL"))
	assert.Error(t, ValidateDSN("postgres://localhost:5432/", "DATABASE_URL"))
	assert.Error(t, ValidateDSN("host=localhost user=mc", "DATABASE_URL"))
	assert.Error(t, ValidateDSN("", "DATABASE_URL"))
}
