package assets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func waitResult(t *testing.T, f Fetcher, id RequestID) Result {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if r := f.Poll(id); r.Status != FetchPending {
			return r
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("request %v still pending", id)
	return Result{}
}

func TestHTTPFetcher(t *testing.T) {
	auth := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			select {
			case auth <- r.Header.Get("Authorization"):
			default:
			}
			w.Write([]byte("payload"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(FetcherConfig{})
	defer f.Close()
	f.SetToken("tok")

	ok := waitResult(t, f, f.Start(Request{URL: srv.URL + "/ok"}))
	if ok.Status != FetchReady || string(ok.Data) != "payload" {
		t.Fatalf("ok result = %+v", ok)
	}
	if got := <-auth; got != "Bearer tok" {
		t.Fatalf("Authorization = %q", got)
	}
	missing := waitResult(t, f, f.Start(Request{URL: srv.URL + "/missing"}))
	if missing.Status != FetchFailed || missing.Err == nil {
		t.Fatalf("404 result = %+v", missing)
	}
	if r := f.Poll("nope"); r.Status != FetchFailed {
		t.Fatalf("unknown id = %+v", r)
	}
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewHTTPFetcher(FetcherConfig{Timeout: 50 * time.Millisecond})
	defer f.Close()
	r := waitResult(t, f, f.Start(Request{URL: srv.URL}))
	if r.Status != FetchFailed {
		t.Fatalf("timed out request = %+v", r)
	}
}

func TestHTTPFetcherClose(t *testing.T) {
	f := NewHTTPFetcher(FetcherConfig{})
	f.Close()
	id := f.Start(Request{URL: "http://127.0.0.1:1/"})
	if r := f.Poll(id); r.Status != FetchFailed {
		t.Fatalf("start after close = %+v", r)
	}
}

func fakeJWT(exp int64) string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	claims, _ := json.Marshal(map[string]int64{"exp": exp})
	return header + "." + enc.EncodeToString(claims) + ".c2ln"
}

func TestLogin(t *testing.T) {
	token := fakeJWT(1893456000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/user/auth" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" || body["password"] != "pw" {
			http.Error(w, "denied", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"token": token}})
	}))
	defer srv.Close()

	got, err := Login(context.Background(), srv.Client(), srv.URL, "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got != token {
		t.Fatalf("token = %q", got)
	}
	if _, err := Login(context.Background(), srv.Client(), srv.URL, "a@b.c", "wrong"); err == nil {
		t.Fatalf("bad credentials accepted")
	}
	exp, err := TokenExpiry(token)
	if err != nil || exp.Unix() != 1893456000 {
		t.Fatalf("TokenExpiry = %v, %v", exp, err)
	}
}
