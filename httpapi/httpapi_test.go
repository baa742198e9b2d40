// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"oralift.io/oralift/config"
	"oralift.io/oralift/job"
	"oralift.io/oralift/sql/sqlclient"
	"oralift.io/oralift/state"
)

func newTestServer(t *testing.T) (*httptest.Server, *job.Service) {
	t.Helper()
	cfg := config.New()
	conns := sqlclient.New(nil, cfg)
	r := job.NewRegistry()
	r.Register(job.Oracle, job.SchemaExtract, func() job.Job {
		return job.New(job.Description{Kind: job.SchemaExtract, Database: job.Oracle}, func(_ context.Context, env *job.Env) (*job.Result, error) {
			return &job.Result{
				Payload: []string{"HR", "SCOTT"},
				Counts:  job.Counts{Extracted: 2},
			}, nil
		})
	})
	jobs := job.NewService(nil, r, state.New(), cfg, conns)
	t.Cleanup(func() { _ = jobs.Close() })
	srv := httptest.NewServer(New(nil, cfg, conns, jobs).Router())
	t.Cleanup(srv.Close)
	return srv, jobs
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, into any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp.StatusCode
}

func TestStartAndPollJob(t *testing.T) {
	srv, _ := newTestServer(t)

	var started struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
	}
	code := postJSON(t, srv.URL+"/api/schemas/oracle/extract", "", &started)
	require.Equal(t, http.StatusAccepted, code)
	require.NotEmpty(t, started.JobID)
	require.Equal(t, "PENDING", started.Status)

	var status statusResponse
	require.Eventually(t, func() bool {
		getJSON(t, srv.URL+"/api/jobs/"+started.JobID+"/status", &status)
		return status.IsComplete
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, job.Completed, status.Status)
	require.Equal(t, 100, status.Progress.Percentage)

	var result struct {
		Result  *job.Summary `json:"result"`
		Payload []string     `json:"payload"`
	}
	code = getJSON(t, srv.URL+"/api/jobs/"+started.JobID+"/result", &result)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "success", result.Result.Status)
	require.Equal(t, 2, result.Result.Extracted)
	require.Equal(t, []string{"HR", "SCOTT"}, result.Payload)
}

func TestStartUnregisteredJob(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]any
	code := postJSON(t, srv.URL+"/api/tables/postgres/create", "", &body)
	require.Equal(t, http.StatusNotFound, code)
}

func TestJobStatusUnknown(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]any
	code := getJSON(t, srv.URL+"/api/jobs/nope/status", &body)
	require.Equal(t, http.StatusNotFound, code)
}

func TestJobResultNotReady(t *testing.T) {
	srv, jobs := newTestServer(t)
	// Submit through the service and race the poll: either the job is
	// still running (409) or already done (200).
	id, err := jobs.Submit(job.Oracle, job.SchemaExtract)
	require.NoError(t, err)
	var body map[string]any
	code := getJSON(t, srv.URL+"/api/jobs/"+id+"/result", &body)
	require.Contains(t, []int{http.StatusOK, http.StatusConflict}, code)
}

func TestConfigRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	var all map[string]any
	code := postJSON(t, srv.URL+"/api/config", `{"exclude.lob-data": true, "oracle.url": "oracle://db:1521/XE"}`, &all)
	require.Equal(t, http.StatusOK, code)

	all = nil
	code = getJSON(t, srv.URL+"/api/config", &all)
	require.Equal(t, http.StatusOK, code)
	exclude, ok := all["exclude"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, exclude["lob-data"])

	code = getJSON(t, srv.URL+"/api/config/reset", &all)
	require.Equal(t, http.StatusOK, code)
}

func TestConfigRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]any
	code := postJSON(t, srv.URL+"/api/config", "{not json", &body)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestStateReset(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]any
	code := getJSON(t, srv.URL+"/api/state/reset", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "reset", body["status"])
}
