package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_ContextNilRejected(t *testing.T) {
	client, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	if _, err := client.Do(nil, req); err == nil || err.Error() != "context: context cannot be nil" {
		t.Errorf("Do(nil, req) = %v, want \"context: context cannot be nil\"", err)
	}
}

func TestClient_ContextCancellationStopsRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	if _, err := client.Do(ctx, req); err == nil {
		t.Error("expected error from a pre-cancelled context, got nil")
	}
}

func TestClient_TimeoutExceeded(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client, err := New(Config{Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	if _, err := client.Do(context.Background(), req); err == nil {
		t.Error("expected a timeout error, got nil")
	}
}

func TestClient_MaxRedirectsStopsFollowing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/b", http.StatusFound) })
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) { http.Redirect(w, r, "/c", http.StatusFound) })
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client, err := New(Config{MaxRedirects: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/a", nil)
	if _, err := client.Do(context.Background(), req); err == nil {
		t.Error("expected a stopped-after-N-redirects error, got nil")
	}
}

func TestClient_NegativeMaxRedirectsDisablesFollowing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	defer ts.Close()

	client, err := New(Config{MaxRedirects: -1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusFound)
	}
}

func TestClient_CookieJarPersistsAcrossRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "foxeye_session", Value: "abc123"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("foxeye_session")
		if err != nil || c.Value != "abc123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client, err := New(Config{UseCookieJar: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	loginReq, _ := http.NewRequest(http.MethodGet, ts.URL+"/login", nil)
	loginResp, err := client.Do(context.Background(), loginReq)
	if err != nil {
		t.Fatalf("Do(/login): %v", err)
	}
	loginResp.Body.Close()

	whoamiReq, _ := http.NewRequest(http.MethodGet, ts.URL+"/whoami", nil)
	whoamiResp, err := client.Do(context.Background(), whoamiReq)
	if err != nil {
		t.Fatalf("Do(/whoami): %v", err)
	}
	defer whoamiResp.Body.Close()

	if whoamiResp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d (cookie jar did not persist the session cookie)", whoamiResp.StatusCode, http.StatusOK)
	}
}

func TestClient_WithoutCookieJarDropsCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "foxeye_session", Value: "abc123"})
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("foxeye_session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	loginReq, _ := http.NewRequest(http.MethodGet, ts.URL+"/login", nil)
	loginResp, err := client.Do(context.Background(), loginReq)
	if err != nil {
		t.Fatalf("Do(/login): %v", err)
	}
	loginResp.Body.Close()

	whoamiReq, _ := http.NewRequest(http.MethodGet, ts.URL+"/whoami", nil)
	whoamiResp, err := client.Do(context.Background(), whoamiReq)
	if err != nil {
		t.Fatalf("Do(/whoami): %v", err)
	}
	defer whoamiResp.Body.Close()

	if whoamiResp.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want %d (cookie leaked without a jar)", whoamiResp.StatusCode, http.StatusUnauthorized)
	}
}
