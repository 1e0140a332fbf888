package endpoints

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redlinehq/redline/internal/analysis"
	"github.com/redlinehq/redline/internal/api"
	"github.com/redlinehq/redline/internal/blob"
	"github.com/redlinehq/redline/internal/engine"
	"github.com/redlinehq/redline/internal/extraction"
	"github.com/redlinehq/redline/internal/model"
	"github.com/redlinehq/redline/internal/process"
	"github.com/redlinehq/redline/internal/store"
	"github.com/redlinehq/redline/internal/svcctx"
)

func testServer(t *testing.T) (*httptest.Server, *engine.MockExtractionEngine) {
	t.Helper()

	pool := extraction.NewPool(extraction.PoolConfig{Workers: 4, QueueSize: 50})
	content := store.NewMemoryStore()
	extractEng := engine.NewMockExtractionEngine()

	coordinator := extraction.NewCoordinator(extraction.CoordinatorConfig{
		Pool:    pool,
		Blobs:   blob.NewMemoryStore(),
		Engine:  extractEng,
		Content: content,
	})
	analyzer := analysis.NewOrchestrator(analysis.Config{
		Content: content,
		Engine:  engine.NewMockAnalysisEngine(),
		Mode:    analysis.ModeSync,
	})
	facade := process.NewFacade(process.FacadeConfig{
		Content:     content,
		Coordinator: coordinator,
		Analyzer:    analyzer,
		StatusTTL:   time.Minute,
	})

	services := &svcctx.Services{Facade: facade, Content: content}

	registry := api.NewRegistry()
	for _, ep := range All() {
		registry.Register(ep)
	}
	mux := http.NewServeMux()
	registry.RegisterRoutes(mux, func(h http.HandlerFunc) http.HandlerFunc { return h })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	}))
	t.Cleanup(srv.Close)

	pool.Start(t.Context())
	return srv, extractEng
}

func multipartUpload(t *testing.T, userID string, filenames ...string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("user_id", userID); err != nil {
		t.Fatalf("writing field: %v", err)
	}
	for i, name := range filenames {
		fw, err := mw.CreateFormFile("pages", name)
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		fw.Write([]byte{0x89, byte(i)})
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
}

func TestProcessCompleteFlow(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartUpload(t, "user-1", "p0.png", "p1.png")
	resp, err := http.Post(srv.URL+"/api/documents/process", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	res := decode[process.ProcessResult](t, resp.Body)
	if res.Extraction.Succeeded != 2 {
		t.Errorf("extracted %d pages", res.Extraction.Succeeded)
	}
	if res.Analysis == nil || res.Analysis.Status != model.RunCompleted {
		t.Fatalf("analysis = %+v", res.Analysis)
	}
	docID := res.Extraction.DocumentID

	t.Run("status reflects completion", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/documents/" + docID + "/status")
		if err != nil {
			t.Fatalf("GET status: %v", err)
		}
		defer resp.Body.Close()
		info := decode[process.StatusInfo](t, resp.Body)
		if info.Status != model.ProcessAllCompleted {
			t.Errorf("status = %s", info.Status)
		}
		if info.Message == "" {
			t.Error("expected human-readable message")
		}
	})

	t.Run("pages are readable", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/documents/" + docID + "/pages")
		if err != nil {
			t.Fatalf("GET pages: %v", err)
		}
		defer resp.Body.Close()
		info := decode[process.PagesInfo](t, resp.Body)
		if len(info.Pages) != 4 {
			t.Errorf("got %d fragments", len(info.Pages))
		}
		if info.Content == "" {
			t.Error("expected concatenated content")
		}
	})

	t.Run("analysis result is readable", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/documents/" + docID + "/analysis")
		if err != nil {
			t.Fatalf("GET analysis: %v", err)
		}
		defer resp.Body.Close()
		detail := decode[analysis.RunDetail](t, resp.Body)
		if detail.Run.Status != model.RunCompleted {
			t.Errorf("run status = %s", detail.Run.Status)
		}
		if len(detail.Findings) != 1 {
			t.Errorf("got %d findings", len(detail.Findings))
		}
	})

	t.Run("repeat analysis trigger reports existing run", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/documents/"+docID+"/analysis", "application/json", nil)
		if err != nil {
			t.Fatalf("POST analysis: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("repeat trigger status = %d", resp.StatusCode)
		}
		res := decode[analysis.TriggerResult](t, resp.Body)
		if !res.AlreadyExists {
			t.Error("expected alreadyExists")
		}
	})
}

func TestProcessDocument_PartialFailureIsMultiStatus(t *testing.T) {
	srv, extractEng := testServer(t)
	extractEng.FailPages = map[int]bool{1: true}

	body, contentType := multipartUpload(t, "user-1", "p0.png", "p1.png", "p2.png")
	resp, err := http.Post(srv.URL+"/api/documents", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMultiStatus {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMultiStatus)
	}
}

func TestProcessDocument_NoPagesIsBadRequest(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartUpload(t, "user-1")
	resp, err := http.Post(srv.URL+"/api/documents", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestDocumentStatus_Unknown(t *testing.T) {
	srv, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/api/documents/missing/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestEditPage(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartUpload(t, "user-1", "p0.png")
	resp, err := http.Post(srv.URL+"/api/documents", contentType, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	res := decode[process.ProcessResult](t, resp.Body)
	resp.Body.Close()
	docID := res.Extraction.DocumentID

	pagesResp, err := http.Get(srv.URL + "/api/documents/" + docID + "/pages")
	if err != nil {
		t.Fatalf("GET pages: %v", err)
	}
	info := decode[process.PagesInfo](t, pagesResp.Body)
	pagesResp.Body.Close()
	pageID := info.Pages[0].ID

	edit := func(userID, content string) *http.Response {
		payload, _ := json.Marshal(EditPageRequest{UserID: userID, Content: content})
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/documents/"+docID+"/pages/"+pageID, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT: %v", err)
		}
		return resp
	}

	t.Run("owner edit succeeds", func(t *testing.T) {
		resp := edit("user-1", "<p>fixed</p>")
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		page := decode[model.ExtractedPage](t, resp.Body)
		if page.Content != "<p>fixed</p>" {
			t.Errorf("content = %q", page.Content)
		}
	})

	t.Run("non-owner edit is forbidden", func(t *testing.T) {
		resp := edit("intruder", "<p>tampered</p>")
		resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

func TestRequestAnalysis_NoExtractedPages(t *testing.T) {
	srv, extractEng := testServer(t)
	_ = extractEng

	resp, err := http.Post(srv.URL+"/api/documents/missing/analysis", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
