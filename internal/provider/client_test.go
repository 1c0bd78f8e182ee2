package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"drafter/internal/provider"
	"drafter/internal/services"
	"drafter/internal/testsupport"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/authentication/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, server *httptest.Server) *provider.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithProviderURL(server.URL))
	return provider.NewClient(cfg, nil)
}

func TestSubmitSendsAuthorizedRequest(t *testing.T) {
	var gotAuth string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/designdata/job" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		var req provider.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.URN == "" || len(req.Outputs) == 0 {
			t.Errorf("incomplete submission: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(provider.SubmitResponse{Result: "created", JobID: "prov-1"})
	})

	client := newClient(t, server)
	resp, err := client.Submit(context.Background(), provider.SubmitRequest{
		URN:     "dXJuOnRlc3Q",
		Outputs: []provider.OutputTarget{{Type: "svf", Views: []string{"3d"}}},
		Quality: "medium",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.JobID != "prov-1" {
		t.Fatalf("unexpected provider job id %q", resp.JobID)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
}

func TestFetchStatusParsesReport(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(provider.StatusReport{
			URN:      "dXJuOnRlc3Q",
			State:    provider.StateInProgress,
			Progress: "42% complete",
		})
	})

	client := newClient(t, server)
	report, err := client.FetchStatus(context.Background(), "dXJuOnRlc3Q")
	if err != nil {
		t.Fatalf("FetchStatus: %v", err)
	}
	if report.State != provider.StateInProgress {
		t.Fatalf("unexpected state %s", report.State)
	}
	if got := report.ProgressPercent(); got != 42 {
		t.Fatalf("ProgressPercent = %.0f, want 42", got)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		code   int
		marker error
	}{
		{"bad request", http.StatusBadRequest, services.ErrRejected},
		{"unprocessable", http.StatusUnprocessableEntity, services.ErrRejected},
		{"not found", http.StatusNotFound, services.ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, services.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, services.ErrTransient},
		{"server error", http.StatusInternalServerError, services.ErrTransient},
		{"bad gateway", http.StatusBadGateway, services.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, tc.name, tc.code)
			})
			client := newClient(t, server)
			_, err := client.FetchStatus(context.Background(), "urn")
			if !errors.Is(err, tc.marker) {
				t.Fatalf("status %d: expected %v, got %v", tc.code, tc.marker, err)
			}
		})
	}
}

func TestConnectionFailureIsTransient(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	client := newClient(t, server)
	server.Close()

	_, err := client.FetchStatus(context.Background(), "urn")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error on connection failure, got %v", err)
	}
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"", 0},
		{"complete", 100},
		{"0% complete", 0},
		{"85% complete", 85},
		{"120% complete", 100},
		{"-5% complete", 0},
		{"garbage", 0},
	}
	for _, tc := range cases {
		report := provider.StatusReport{Progress: tc.raw}
		if got := report.ProgressPercent(); got != tc.want {
			t.Fatalf("ProgressPercent(%q) = %.0f, want %.0f", tc.raw, got, tc.want)
		}
	}
}
