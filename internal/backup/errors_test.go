package backup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")

	err := NewExtractionError("pg_dump appdb", cause).WithKind(StoreKindPostgreSQL)

	assert.Contains(t, err.Error(), "extraction")
	assert.Contains(t, err.Error(), "postgresql")
	assert.Contains(t, err.Error(), "pg_dump appdb")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewTransmissionError("uploading archive", cause)

	assert.ErrorIs(t, err, cause)
}

func TestPipelineErrorStages(t *testing.T) {
	tests := []struct {
		err   *PipelineError
		stage Stage
	}{
		{NewDiscoveryError("m", nil), StageDiscovery},
		{NewExtractionError("m", nil), StageExtraction},
		{NewPackagingError("m", nil), StagePackaging},
		{NewTransmissionError("m", nil), StageTransmission},
		{NewRetentionError("m", nil), StageRetention},
		{NewConfigurationError("m", nil), StageConfiguration},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.stage, tt.err.Stage)
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())

	errs.Add("backup.password", "password is required when encryption is enabled")
	errs.Add("stores", "at least one store must be enabled")

	require.True(t, errs.HasErrors())
	assert.Contains(t, errs.Error(), "backup.password")
	assert.Contains(t, errs.Error(), "stores")
}
