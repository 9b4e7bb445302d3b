package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/routeingest/internal/models"
)

func TestStateSummary(t *testing.T) {
	s := models.NewPipelineState()
	s.ResetQueue([]models.WorkItem{{SourceID: "a"}, {SourceID: "b"}, {SourceID: "c"}})
	s.Advance(2)
	s.PendingContinuation = "local-4"
	s.UpdatedAt = time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

	out := stateSummary(s)
	assert.Contains(t, out, "queue:        3")
	assert.Contains(t, out, "remaining:    1")
	assert.Contains(t, out, "continuation: local-4")
	assert.Contains(t, out, "2026-03-02 07:30:00 UTC")
}

func TestMetricsRouter(t *testing.T) {
	srv := httptest.NewServer(metricsRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
