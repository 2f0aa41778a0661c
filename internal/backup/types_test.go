package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunReportStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []OutcomeStatus
		expected RunStatus
	}{
		{
			name:     "all succeeded",
			statuses: []OutcomeStatus{OutcomeSuccess, OutcomeSuccess},
			expected: RunStatusSuccess,
		},
		{
			name:     "all failed",
			statuses: []OutcomeStatus{OutcomeFailed, OutcomeFailed},
			expected: RunStatusFailed,
		},
		{
			name:     "mixed results",
			statuses: []OutcomeStatus{OutcomeSuccess, OutcomeFailed, OutcomeSuccess},
			expected: RunStatusPartialSuccess,
		},
		{
			name:     "skips do not taint success",
			statuses: []OutcomeStatus{OutcomeSuccess, OutcomeSkipped},
			expected: RunStatusSuccess,
		},
		{
			name:     "skips do not soften failure",
			statuses: []OutcomeStatus{OutcomeSkipped, OutcomeFailed},
			expected: RunStatusFailed,
		},
		{
			name:     "all skipped counts as success",
			statuses: []OutcomeStatus{OutcomeSkipped, OutcomeSkipped},
			expected: RunStatusSuccess,
		},
		{
			name:     "no targets",
			statuses: nil,
			expected: RunStatusSuccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewRunReport(time.Now())
			for _, status := range tt.statuses {
				report.Append(TargetOutcome{Kind: StoreKindMySQL, Status: status})
			}
			report.Finalize(time.Now())

			assert.Equal(t, tt.expected, report.Status())
		})
	}
}

func TestRunReportFilters(t *testing.T) {
	report := NewRunReport(time.Now())
	report.Append(TargetOutcome{Kind: StoreKindPostgreSQL, Status: OutcomeSuccess})
	report.Append(TargetOutcome{Kind: StoreKindMySQL, Status: OutcomeFailed})
	report.Append(TargetOutcome{Kind: StoreKindRedis, Status: OutcomeSkipped})
	report.Append(TargetOutcome{Kind: StoreKindMongoDB, Status: OutcomeSuccess})

	succeeded := report.Succeeded()
	assert.Len(t, succeeded, 2)
	assert.Equal(t, StoreKindPostgreSQL, succeeded[0].Kind)
	assert.Equal(t, StoreKindMongoDB, succeeded[1].Kind)

	failed := report.Failed()
	assert.Len(t, failed, 1)
	assert.Equal(t, StoreKindMySQL, failed[0].Kind)
}

func TestRunReportHasUniqueID(t *testing.T) {
	a := NewRunReport(time.Now())
	b := NewRunReport(time.Now())

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0.00 B"},
		{512, "512.00 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.00 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatSize(tt.bytes))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{45 * time.Minute, "45m0s"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatDuration(tt.duration))
	}
}
