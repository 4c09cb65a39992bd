package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"learn.windowlimiter/internal/testharness/clocktest"
	"learn.windowlimiter/middleware"
	"learn.windowlimiter/types"
)

func TestStatusHandler(t *testing.T) {
	clock := clocktest.New(baseTime)
	limiter := newLimiter(t, clock, 10*time.Second, 2)
	limiters := map[string]types.AdmissionController{"api": limiter}

	r := chi.NewRouter()
	r.Get("/limits/{limiter}/{identifier}", middleware.StatusHandler(limiters))

	get := func(path string) (*httptest.ResponseRecorder, middleware.StatusResponse) {
		t.Helper()
		rec := serve(r, http.MethodGet, path)
		var body middleware.StatusResponse
		if rec.Code == http.StatusOK {
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Failed to decode body %q: %v", rec.Body.String(), err)
			}
		}
		return rec, body
	}

	rec, body := get("/limits/api/alice")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	want := middleware.StatusResponse{Limiter: "api", Identifier: "alice", CanSend: true, Remaining: 2, Limit: 2, WindowSeconds: 10}
	if body != want {
		t.Errorf("body = %+v, want %+v", body, want)
	}

	limiter.Record("alice")
	clock.Advance(4 * time.Second)
	limiter.Record("alice")

	_, body = get("/limits/api/alice")
	if body.CanSend || body.Remaining != 0 || body.WaitSeconds != 6 {
		t.Errorf("body after filling = %+v, want can_send=false remaining=0 wait_seconds=6", body)
	}

	// Querying status never records.
	for i := 0; i < 3; i++ {
		get("/limits/api/bob")
	}
	if _, body = get("/limits/api/bob"); body.Remaining != 2 {
		t.Errorf("bob remaining = %d, want 2", body.Remaining)
	}

	if rec, _ := get("/limits/unknown/alice"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown limiter: status = %d, want 404", rec.Code)
	}
}
