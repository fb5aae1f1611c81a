// Package api serves benchmark batches and rendered charts over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"

	"hebench/bench"
	"hebench/report"
)

// LatestBatch is the batch alias resolving to the most recent batch.
const LatestBatch = "latest"

type Server struct {
	store  report.Store
	logger *log.Logger
	router *mux.Router
}

func NewServer(store report.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{store: store, logger: logger, router: mux.NewRouter()}
	s.router.Use(s.logRequests)
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/batches", s.listBatches).Methods(http.MethodGet)
	api.HandleFunc("/batches/{batch}/tools", s.listTools).Methods(http.MethodGet)
	api.HandleFunc("/batches/{batch}/summary/{benchmark}", s.summary).Methods(http.MethodGet)
	api.HandleFunc("/batches/{batch}/plot/{file}", s.plot).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Printf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// batchRoot resolves the {batch} variable to a store folder.
func (s *Server) batchRoot(r *http.Request) (string, int, error) {
	batch := mux.Vars(r)["batch"]
	if batch == LatestBatch {
		root, err := report.MostRecentFolder(r.Context(), s.store)
		if errors.Is(err, report.ErrNoBatch) {
			return "", http.StatusNotFound, err
		}
		if err != nil {
			return "", http.StatusInternalServerError, err
		}
		return root, 0, nil
	}
	if !report.IsBatchFolder(batch) {
		return "", http.StatusNotFound, fmt.Errorf("unknown batch %q", batch)
	}
	return batch + "/", 0, nil
}

type batchesResponse struct {
	Batches []string `json:"batches"`
	Latest  string   `json:"latest,omitempty"`
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	folders, err := s.store.ListFolders(r.Context(), "")
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	resp := batchesResponse{Batches: []string{}}
	for _, f := range folders {
		name := strings.TrimSuffix(f, "/")
		if report.IsBatchFolder(name) {
			resp.Batches = append(resp.Batches, name)
		}
	}
	for _, b := range resp.Batches {
		if b > resp.Latest {
			resp.Latest = b
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	root, status, err := s.batchRoot(r)
	if err != nil {
		s.fail(w, status, err)
		return
	}
	folders, err := s.store.ListFolders(r.Context(), root)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	if len(folders) == 0 {
		s.fail(w, http.StatusNotFound, fmt.Errorf("batch %s is empty", strings.TrimSuffix(root, "/")))
		return
	}
	tools := []string{}
	for _, f := range folders {
		name := strings.TrimSuffix(strings.TrimPrefix(f, root), "/")
		if name != "plot" {
			tools = append(tools, name)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"batch": strings.TrimSuffix(root, "/"), "tools": tools})
}

// ToolSummary aggregates the runs of one tool.
type ToolSummary struct {
	Tool   string             `json:"tool"`
	Runs   int                `json:"runs"`
	Phases []report.PhaseStat `json:"phases,omitempty"`
	Total  float64            `json:"total_s"`
	Error  float64            `json:"error_s"`
	Means  map[string]float64 `json:"means"`
}

func summarize(label string, t *bench.Table) (ToolSummary, error) {
	sum := ToolSummary{Tool: label, Runs: t.Len(), Means: report.ColumnMeans(t)}
	for _, c := range bench.PhaseColumns {
		if !t.HasColumn(c) {
			return sum, nil
		}
	}
	if t.Len() == 0 {
		return sum, nil
	}
	stats, err := report.PhaseStats(t, bench.PhaseColumns)
	if err != nil {
		return sum, err
	}
	sum.Phases = stats
	sum.Total = report.Total(stats)
	sum.Error = report.ErrorBar(stats)
	return sum, nil
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	root, status, err := s.batchRoot(r)
	if err != nil {
		s.fail(w, status, err)
		return
	}
	benchmark := mux.Vars(r)["benchmark"]
	d, err := report.GetLabelsData(r.Context(), s.store, benchmark, root, s.logger.Writer())
	var dup *report.DuplicateTableError
	switch {
	case errors.Is(err, report.ErrNoData):
		s.fail(w, http.StatusNotFound, fmt.Errorf("no %s data in batch %s", benchmark, strings.TrimSuffix(root, "/")))
		return
	case errors.As(err, &dup):
		s.fail(w, http.StatusConflict, err)
		return
	case err != nil:
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	tools := make([]ToolSummary, 0, d.Len())
	for i, label := range d.Labels {
		sum, err := summarize(label, d.Tables[i])
		if err != nil {
			s.fail(w, http.StatusInternalServerError, fmt.Errorf("%s: %w", label, err))
			return
		}
		tools = append(tools, sum)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batch":     strings.TrimSuffix(d.Root, "/"),
		"benchmark": benchmark,
		"tools":     tools,
	})
}

var contentTypes = map[string]string{
	".pdf": "application/pdf",
	".png": "image/png",
}

// knownPlot reports whether file is a chart the plotter produces.
func knownPlot(file string) bool {
	ext := path.Ext(file)
	if _, ok := contentTypes[ext]; !ok {
		return false
	}
	for _, c := range report.Categories() {
		if c.File == strings.TrimSuffix(file, ext) {
			return true
		}
	}
	return false
}

func (s *Server) plot(w http.ResponseWriter, r *http.Request) {
	root, status, err := s.batchRoot(r)
	if err != nil {
		s.fail(w, status, err)
		return
	}
	file := mux.Vars(r)["file"]
	if !knownPlot(file) {
		s.fail(w, http.StatusNotFound, fmt.Errorf("unknown plot %q", file))
		return
	}
	body, err := s.store.Open(r.Context(), path.Join(root, "plot", file))
	if err != nil {
		s.fail(w, http.StatusNotFound, fmt.Errorf("plot %s not rendered for batch %s", file, strings.TrimSuffix(root, "/")))
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", contentTypes[path.Ext(file)])
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Printf("sending %s: %v", file, err)
	}
}
