package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jobsrepo "github.com/kotobalab/kotoba-backend/internal/data/repos/jobs"
	"github.com/kotobalab/kotoba-backend/internal/data/repos/testutil"
	domainjobs "github.com/kotobalab/kotoba-backend/internal/domain/jobs"
	"github.com/kotobalab/kotoba-backend/internal/domain/lexicon"
	apperrors "github.com/kotobalab/kotoba-backend/internal/pkg/errors"
	"github.com/kotobalab/kotoba-backend/internal/services"
)

func newJobRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MemDB(t)
	repo := jobsrepo.NewJobRunRepo(db, testutil.Logger(t))
	svc := services.NewJobService(db, repo, testutil.Logger(t))
	h := NewJobHandler(svc)

	r := gin.New()
	r.POST("/api/jobs", h.StartJob)
	r.GET("/api/jobs", h.ListJobs)
	r.GET("/api/jobs/:id", h.GetJob)
	r.POST("/api/jobs/:id/cancel", h.CancelJob)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func startedJobID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Job struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"job"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Job.Status != domainjobs.JobStatusQueued {
		t.Fatalf("expected queued, got %q", body.Job.Status)
	}
	return body.Job.ID
}

func TestStartJobEndpoint(t *testing.T) {
	r := newJobRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/jobs", map[string]any{
		"job_type": domainjobs.JobTypeRelationBuild,
		"payload":  map[string]any{"max_words": 5, "pos_filter": "noun"},
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	startedJobID(t, w)
}

func TestStartJobEndpointRejectsBadPayload(t *testing.T) {
	r := newJobRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/jobs", map[string]any{
		"job_type": domainjobs.JobTypeRelationBuild,
		"payload": map[string]any{
			"word_list":  []string{"静か"},
			"pos_filter": "noun",
		},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetJobEndpoint(t *testing.T) {
	r := newJobRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/jobs", map[string]any{
		"job_type": domainjobs.JobTypeClusterAnalysis,
		"payload":  map[string]any{"limit": 5},
	})
	id := startedJobID(t, w)

	got := doJSON(t, r, http.MethodGet, "/api/jobs/"+id, nil)
	if got.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", got.Code, got.Body.String())
	}

	missing := doJSON(t, r, http.MethodGet, "/api/jobs/"+uuid.NewString(), nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", missing.Code)
	}
}

func TestCancelJobEndpoint(t *testing.T) {
	r := newJobRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/jobs", map[string]any{
		"job_type": domainjobs.JobTypeClusterAnalysis,
		"payload":  map[string]any{},
	})
	id := startedJobID(t, w)

	first := doJSON(t, r, http.MethodPost, "/api/jobs/"+id+"/cancel", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}

	second := doJSON(t, r, http.MethodPost, "/api/jobs/"+id+"/cancel", nil)
	if second.Code != http.StatusConflict {
		t.Fatalf("second cancel should conflict, got %d", second.Code)
	}
}

type stubResolver struct {
	outcome lexicon.Outcome
	err     error
}

func (s *stubResolver) ResolveTarget(context.Context, string, string, string) (lexicon.Outcome, error) {
	return s.outcome, s.err
}

func TestResolveEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewResolveHandler(&stubResolver{
		outcome: lexicon.Resolved("穏やか", 1000, []string{"kanji"}),
	})
	r := gin.New()
	r.POST("/api/resolve", h.Resolve)

	w := doJSON(t, r, http.MethodPost, "/api/resolve", map[string]any{"orthography": "穏やかな"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Outcome lexicon.Outcome `json:"outcome"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Outcome.Kind != lexicon.OutcomeResolved || body.Outcome.TargetKanji != "穏やか" {
		t.Fatalf("unexpected outcome: %+v", body.Outcome)
	}
}

func TestResolveEndpointStoreDown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewResolveHandler(&stubResolver{
		err: fmt.Errorf("neo4j down: %w", apperrors.ErrStoreUnavailable),
	})
	r := gin.New()
	r.POST("/api/resolve", h.Resolve)

	w := doJSON(t, r, http.MethodPost, "/api/resolve", map[string]any{"orthography": "静か"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
