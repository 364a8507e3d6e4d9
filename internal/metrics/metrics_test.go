package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TwoRegistriesDoNotPanicOnDuplicateNames(t *testing.T) {
	require.NotPanics(t, func() {
		New()
		New()
	})
}

func TestHandler_ExposesRecordedCounters(t *testing.T) {
	r := New()
	r.RecordJobClaimed()
	r.RecordCaseOpened()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "caseflow_jobs_claimed_total 1")
	assert.Contains(t, body, "caseflow_cases_opened_total 1")
}
