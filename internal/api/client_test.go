package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"inkquiry/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return New(server.URL+"/", WithHTTPClient(server.Client()))
}

func TestCalculate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/calculate" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("authorization = %q", got)
		}
		var body struct {
			Image      string            `json:"image"`
			DictOfVars map[string]string `json:"dict_of_vars"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Image != "data:image/png;base64,AAAA" {
			t.Fatalf("image = %q", body.Image)
		}
		if body.DictOfVars["y"] != "3" {
			t.Fatalf("dict_of_vars = %v", body.DictOfVars)
		}
		w.Write([]byte(`{"message":"Image processed","status":"success","data":[
			{"expr":"2+2","result":4,"assign":false},
			{"expr":"x","result":"5","assign":true}]}`))
	})
	c.SetTokenSource(func() string { return "tok" })

	evals, err := c.Calculate(context.Background(), "data:image/png;base64,AAAA", domain.Variables{"y": "3"})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	want := []domain.Evaluation{
		{Expr: "2+2", Result: "4"},
		{Expr: "x", Result: "5", Assign: true},
	}
	if len(evals) != len(want) {
		t.Fatalf("got %d evaluations, want %d", len(evals), len(want))
	}
	for i := range want {
		if evals[i] != want[i] {
			t.Errorf("evals[%d] = %+v, want %+v", i, evals[i], want[i])
		}
	}
}

func TestCalculate_EmptyVariablesSendObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"dict_of_vars":{}`) {
			t.Fatalf("expected empty object, body = %s", raw)
		}
		w.Write([]byte(`{"data":[]}`))
	})
	if _, err := c.Calculate(context.Background(), "data:image/png;base64,AAAA", nil); err != nil {
		t.Fatalf("calculate: %v", err)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"detail":"Could not validate credentials"}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got %v", err)
				}
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   `{"detail":"Page not found"}`,
			check: func(t *testing.T, err error) {
				var se *StatusError
				if !errors.As(err, &se) {
					t.Fatalf("expected *StatusError, got %v", err)
				}
				if se.Code != http.StatusNotFound || se.Detail != "Page not found" {
					t.Fatalf("unexpected status error %+v", se)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hooked atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			c.SetUnauthorizedHandler(func() { hooked.Add(1) })

			err := c.Pages().DeletePage(context.Background(), "p1")
			tt.check(t, err)

			wantHook := int32(0)
			if tt.status == http.StatusUnauthorized {
				wantHook = 1
			}
			if hooked.Load() != wantHook {
				t.Fatalf("unauthorized hook ran %d times, want %d", hooked.Load(), wantHook)
			}
		})
	}
}

func TestUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := New(url)
	_, err := c.Pages().ListPages(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestLoginAndMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/token":
			if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
				t.Fatalf("content type = %q", ct)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if r.PostForm.Get("username") != "ada@example.com" || r.PostForm.Get("password") != "pw" {
				t.Fatalf("unexpected form %v", r.PostForm)
			}
			w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer"}`))
		case "/auth/me":
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Fatalf("authorization = %q", got)
			}
			w.Write([]byte(`{"id":"u1","email":"ada@example.com","full_name":null,"created_at":"2024-03-01T10:20:30.123456"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	token, err := c.Login(context.Background(), "ada@example.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	u, err := c.Me(context.Background(), token)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if u.ID != "u1" || u.FullName != "" {
		t.Fatalf("unexpected user %+v", u)
	}
	want := time.Date(2024, 3, 1, 10, 20, 30, 123456000, time.UTC)
	if !u.CreatedAt.Equal(want) {
		t.Fatalf("created_at = %v, want %v", u.CreatedAt, want)
	}
}

func TestPages_ReadsEitherCasing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":"a","name":"Snake","date_created":"2024-01-02T03:04:05","content":[{"expression":"1+1","answer":"2"}],"canvas_data":"data:image/png;base64,SNAKE"},
			{"id":"b","name":"Camel","dateCreated":"2024-01-02T03:04:05Z","canvasData":"data:image/png;base64,CAMEL"},
			{"id":"c","name":"Both","canvas_data":"data:image/png;base64,S","canvasData":"data:image/png;base64,C"}
		]`))
	})

	pages, err := c.Pages().ListPages(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages", len(pages))
	}
	if pages[0].Snapshot != "data:image/png;base64,SNAKE" || len(pages[0].Results) != 1 {
		t.Errorf("snake page = %+v", pages[0])
	}
	if pages[1].Snapshot != "data:image/png;base64,CAMEL" || pages[1].CreatedAt.IsZero() {
		t.Errorf("camel page = %+v", pages[1])
	}
	if pages[2].Snapshot != "data:image/png;base64,S" {
		t.Errorf("snake case should win, got %q", pages[2].Snapshot)
	}
	if pages[1].Results == nil {
		t.Errorf("missing content should decode to an empty list")
	}
}

func TestPages_WritesBothCasings(t *testing.T) {
	var got map[string]any
	var method, path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.Write([]byte(`{}`))
	})

	p := &domain.Page{
		ID:        "p 1",
		Name:      "Page 1",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Results:   []domain.Result{{Expression: "x", Answer: "5"}},
		Snapshot:  "data:image/png;base64,AAAA",
	}
	if err := c.Pages().UpdatePage(context.Background(), p); err != nil {
		t.Fatalf("update: %v", err)
	}
	if method != http.MethodPut || path != "/notebook/pages/p 1" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	for _, k := range []string{"canvas_data", "canvasData", "date_created", "dateCreated", "content"} {
		if _, ok := got[k]; !ok {
			t.Errorf("missing field %q in %v", k, got)
		}
	}
	if got["canvas_data"] != got["canvasData"] {
		t.Errorf("casings disagree: %v vs %v", got["canvas_data"], got["canvasData"])
	}
}
