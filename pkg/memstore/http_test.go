package memstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeService is a minimal in-process memory service for HTTPStore tests.
type fakeService struct {
	mu      sync.Mutex
	users   map[string]bool
	inserts map[string]int
	flushes map[string]int
}

func newFakeService() *fakeService {
	return &fakeService{
		users:   map[string]bool{},
		inserts: map[string]int{},
		flushes: map[string]int{},
	}
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	ok := func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]any{"errno": 0, "errmsg": "", "data": nil})
	}

	// Go 1.21's ServeMux has no method/wildcard patterns, so method checks
	// and {id} extraction are done by hand.
	mux.HandleFunc("/api/v1/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ok(w)
	})
	mux.HandleFunc("/api/v1/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			ID string `json:"id"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.users[body.ID] = true
		f.mu.Unlock()
		ok(w)
	})
	mux.HandleFunc("/api/v1/users/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
		if id, isFlush := strings.CutSuffix(strings.TrimPrefix(rest, "buffer/"), "/chat"); isFlush && strings.HasPrefix(rest, "buffer/") {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			f.mu.Lock()
			f.flushes[id]++
			f.mu.Unlock()
			ok(w)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.users[rest] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		ok(w)
	})
	mux.HandleFunc("/api/v1/blobs/insert/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		f.mu.Lock()
		f.inserts[strings.TrimPrefix(r.URL.Path, "/api/v1/blobs/insert/")]++
		f.mu.Unlock()
		ok(w)
	})
	return mux
}

func newTestStore(t *testing.T) (*HTTPStore, *fakeService) {
	t.Helper()
	svc := newFakeService()
	srv := httptest.NewServer(svc.handler())
	t.Cleanup(srv.Close)

	store, err := NewHTTPStore(srv.URL, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store, svc
}

func TestHTTPStore_Ping(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestHTTPStore_GetOrCreateUser(t *testing.T) {
	store, svc := newTestStore(t)
	ctx := context.Background()

	// Unknown user: lookup 404s, create path runs.
	if err := store.GetOrCreateUser(ctx, "u-1"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !svc.users["u-1"] {
		t.Fatal("user was not created")
	}

	// Existing user: no duplicate creation needed.
	if err := store.GetOrCreateUser(ctx, "u-1"); err != nil {
		t.Errorf("lookup existing user: %v", err)
	}
}

func TestHTTPStore_InsertAndFlush(t *testing.T) {
	store, svc := newTestStore(t)
	ctx := context.Background()

	msgs := []Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}
	if err := store.Insert(ctx, "u-2", msgs); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Flush(ctx, "u-2", true); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if svc.inserts["u-2"] != 1 || svc.flushes["u-2"] != 1 {
		t.Errorf("inserts=%d flushes=%d, want 1 and 1", svc.inserts["u-2"], svc.flushes["u-2"])
	}

	if err := store.Insert(ctx, "u-2", nil); err == nil {
		t.Error("expected error for empty message list")
	}
}

func TestHTTPStore_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errno": 1001, "errmsg": "buffer rejected"})
	}))
	t.Cleanup(srv.Close)

	store, err := NewHTTPStore(srv.URL, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Insert(context.Background(), "u", []Message{{Role: "user", Content: "x"}}); err == nil {
		t.Error("expected error for non-zero errno")
	}
}

func TestNewHTTPStore_InvalidURL(t *testing.T) {
	if _, err := NewHTTPStore("not a url", "t"); err == nil {
		t.Error("expected error for invalid base url")
	}
}
