package notion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// fakeProxy is a minimal in-memory stand-in for the persistence API.
type fakeProxy struct {
	tasks   map[string]*Task // by content hash
	creates int
	patches map[string]map[string]string // task ID -> last patch body
}

func newFakeProxy() *fakeProxy {
	return &fakeProxy{
		tasks:   make(map[string]*Task),
		patches: make(map[string]map[string]string),
	}
}

func (p *fakeProxy) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		task, ok := p.tasks[r.URL.Query().Get("hash")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(task)
	})
	mux.HandleFunc("POST /v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		var task Task
		if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p.creates++
		task.ID = uuid.NewString()
		if task.Status == "" {
			task.Status = "open"
		}
		p.tasks[task.ContentHash] = &task
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(task)
	})
	mux.HandleFunc("PATCH /v1/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]string
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		p.patches[r.PathValue("id")] = patch
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeProxy) {
	t.Helper()
	proxy := newFakeProxy()
	srv := httptest.NewServer(proxy.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key"), proxy
}

func TestCreateTaskIdempotent(t *testing.T) {
	client, proxy := newTestClient(t)
	ctx := context.Background()

	first, err := client.CreateTask(ctx, &Task{Title: "Send Q3 report", Body: "promised in #finance"})
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("created task has no ID")
	}

	second, err := client.CreateTask(ctx, &Task{Title: "Send Q3 report", Body: "promised in #finance"})
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("duplicate create returned new task: %q vs %q", second.ID, first.ID)
	}
	if proxy.creates != 1 {
		t.Errorf("proxy saw %d creates, want 1", proxy.creates)
	}
}

func TestCreateTaskDistinctContent(t *testing.T) {
	client, proxy := newTestClient(t)
	ctx := context.Background()

	if _, err := client.CreateTask(ctx, &Task{Title: "Send Q3 report"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := client.CreateTask(ctx, &Task{Title: "Book flights"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if proxy.creates != 2 {
		t.Errorf("proxy saw %d creates, want 2", proxy.creates)
	}
}

func TestContentHashNormalizes(t *testing.T) {
	a := ContentHash("Send Report", "  body text ")
	b := ContentHash("send report", "body text")
	if a != b {
		t.Error("hash differs across case/whitespace variants")
	}
	if a == ContentHash("send report", "other body") {
		t.Error("hash collision across different bodies")
	}
}

func TestFindByHashNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.FindByHash(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	client, proxy := newTestClient(t)
	ctx := context.Background()

	task, err := client.CreateTask(ctx, &Task{Title: "Send Q3 report"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := client.UpdateStatus(ctx, task.ID, "done", "high"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	patch := proxy.patches[task.ID]
	if patch["status"] != "done" || patch["priority"] != "high" {
		t.Errorf("patch body = %v", patch)
	}
}

func TestClientSendsAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret")
	_, err := client.FindByHash(context.Background(), "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestCreateTaskServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	if _, err := client.CreateTask(context.Background(), &Task{Title: "x"}); err == nil {
		t.Fatal("server error not surfaced")
	}
}
