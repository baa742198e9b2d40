// Copyright 2024-present The OraLift Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

// Package httpapi exposes the migration engine over REST. All responses
// are JSON; phase starts return a job id immediately and the caller
// polls the status and result endpoints.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"oralift.io/oralift/config"
	"oralift.io/oralift/job"
	"oralift.io/oralift/sql/sqlclient"
)

// A Server holds the handler dependencies.
type Server struct {
	log   *zap.Logger
	cfg   *config.Store
	conns *sqlclient.Client
	jobs  *job.Service
}

// New returns a server over the given collaborators.
func New(log *zap.Logger, cfg *config.Store, conns *sqlclient.Client, jobs *job.Service) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, cfg: cfg, conns: conns, jobs: jobs}
}

// phaseRoutes maps the phase-start endpoints onto registered jobs.
var phaseRoutes = []struct {
	path string
	db   job.DatabaseTag
	kind job.OperationKind
}{
	{"/api/schemas/oracle/extract", job.Oracle, job.SchemaExtract},
	{"/api/schemas/postgres/create", job.Postgres, job.SchemaCreate},
	{"/api/synonyms/oracle/extract", job.Oracle, job.SynonymExtract},
	{"/api/synonyms/postgres/views", job.Postgres, job.SynonymViews},
	{"/api/object-types/oracle/extract", job.Oracle, job.ObjectTypeExtract},
	{"/api/object-types/postgres/create", job.Postgres, job.ObjectTypeCreate},
	{"/api/sequences/oracle/extract", job.Oracle, job.SequenceExtract},
	{"/api/sequences/postgres/create", job.Postgres, job.SequenceCreate},
	{"/api/tables/oracle/extract", job.Oracle, job.TableMetadataExtract},
	{"/api/tables/postgres/create", job.Postgres, job.TableCreate},
	{"/api/transfer/oracle/row-counts", job.Oracle, job.RowCountExtract},
	{"/api/transfer/postgres/execute", job.Oracle, job.DataTransfer},
	{"/api/constraints/oracle/extract", job.Oracle, job.ConstraintExtract},
	{"/api/constraints/postgres/create", job.Postgres, job.ConstraintCreate},
	{"/api/constraints/postgres/fk-indexes", job.Postgres, job.FKIndexCreate},
	{"/api/views/oracle/extract", job.Oracle, job.ViewExtract},
	{"/api/views/postgres/stubs", job.Postgres, job.ViewStubCreate},
	{"/api/views/postgres/implement", job.Postgres, job.ViewImplementation},
	{"/api/views/postgres/verify", job.Postgres, job.ViewVerify},
	{"/api/functions/oracle/extract", job.Oracle, job.FunctionExtract},
	{"/api/functions/postgres/stubs", job.Postgres, job.FunctionStubCreate},
	{"/api/type-methods/oracle/extract", job.Oracle, job.TypeMethodExtract},
	{"/api/type-methods/postgres/stubs", job.Postgres, job.TypeMethodStubCreate},
	{"/api/type-methods/postgres/implement", job.Postgres, job.TypeMethodImpl},
	{"/api/triggers/oracle/extract", job.Oracle, job.TriggerExtract},
	{"/api/triggers/postgres/implement", job.Postgres, job.TriggerImpl},
	{"/api/triggers/postgres/verify", job.Postgres, job.TriggerVerify},
	{"/api/compat/postgres/install", job.Postgres, job.CompatInstall},
	{"/api/compat/postgres/verify", job.Postgres, job.CompatVerify},
	{"/api/migration/start", job.Oracle, job.FullMigration},
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/api/database/test/oracle", s.testOracle).Methods(http.MethodGet)
	r.HandleFunc("/api/database/test/postgres", s.testPostgres).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.getConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.setConfig).Methods(http.MethodPost)
	r.HandleFunc("/api/config/reset", s.resetConfig).Methods(http.MethodGet, http.MethodPost)
	for _, pr := range phaseRoutes {
		pr := pr
		r.HandleFunc(pr.path, func(w http.ResponseWriter, req *http.Request) {
			s.startJob(w, req, pr.db, pr.kind)
		}).Methods(http.MethodPost)
	}
	r.HandleFunc("/api/jobs/{jobId}/status", s.jobStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{jobId}/result", s.jobResult).Methods(http.MethodGet)
	r.HandleFunc("/api/jobs/{jobId}/cancel", s.jobCancel).Methods(http.MethodPost)
	r.HandleFunc("/api/state/reset", s.resetState).Methods(http.MethodGet, http.MethodPost)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.log.Debug("http request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path))
		next.ServeHTTP(w, req)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": errorBody{Code: code, Message: message}})
}

func (s *Server) testOracle(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.conns.TestOracle(req.Context()))
}

func (s *Server) testPostgres(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.conns.TestPostgres(req.Context()))
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.All())
}

// setConfig overwrites the posted keys. Connection caches are dropped
// so the next database access sees the new credentials.
func (s *Server) setConfig(w http.ResponseWriter, req *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(req.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "CONFIG_ERROR", err.Error())
		return
	}
	s.cfg.SetAll(values)
	s.conns.Invalidate()
	writeJSON(w, http.StatusOK, s.cfg.All())
}

func (s *Server) resetConfig(w http.ResponseWriter, _ *http.Request) {
	s.cfg.Reset()
	s.conns.Invalidate()
	writeJSON(w, http.StatusOK, s.cfg.All())
}

func (s *Server) startJob(w http.ResponseWriter, _ *http.Request, db job.DatabaseTag, kind job.OperationKind) {
	id, err := s.jobs.Submit(db, kind)
	if err != nil {
		status, code := http.StatusInternalServerError, "INTERNAL"
		switch {
		case job.ErrNotFound.Has(err):
			status, code = http.StatusNotFound, "NOT_FOUND"
		case job.ErrBusy.Has(err):
			status, code = http.StatusConflict, "ALREADY_RUNNING"
		}
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"jobId":         id,
		"operationKind": kind,
		"status":        job.Pending,
	})
}

// statusResponse is the stable polling shape.
type statusResponse struct {
	JobID      string       `json:"jobId"`
	Status     job.State    `json:"status"`
	IsComplete bool         `json:"isComplete"`
	Progress   job.Progress `json:"progress"`
	Error      string       `json:"error,omitempty"`
}

func (s *Server) jobStatus(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["jobId"]
	d, ok := s.jobs.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown job "+id)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		JobID:      d.ID,
		Status:     d.State,
		IsComplete: d.State.Terminal(),
		Progress:   d.Progress,
		Error:      d.Err,
	})
}

func (s *Server) jobResult(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["jobId"]
	d, ok := s.jobs.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown job "+id)
		return
	}
	if !d.State.Terminal() {
		writeError(w, http.StatusConflict, "NOT_READY", "job "+id+" is "+string(d.State))
		return
	}
	body := map[string]any{"result": job.Summarize(d)}
	if d.Result != nil && d.Result.Payload != nil {
		body["payload"] = d.Result.Payload
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) jobCancel(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["jobId"]
	if !s.jobs.Cancel(id) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "job "+id+" is unknown or already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobId": id, "cancelRequested": true})
}

func (s *Server) resetState(w http.ResponseWriter, req *http.Request) {
	if err := s.jobs.ResetAll(req.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset"})
}
