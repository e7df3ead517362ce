package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jee-solver/api/internal/gateway"
)

const okBody = `{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
"choices":[{"index":0,"message":{"role":"assistant","content":"**SECTION 1: ANALYSIS**\nSubject: Physics"},"finish_reason":"stop"}]}`

func newTestEngine(t *testing.T, h http.HandlerFunc) (*Engine, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	e := New("test-key", "gpt-4o-mini", srv.URL+"/v1", nil)
	e.backoff = time.Millisecond
	return e, &calls
}

func TestGenerateSendsImageAsDataURL(t *testing.T) {
	var got map[string]any
	e, _ := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okBody)
	})

	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 1, 2}
	out, err := e.Generate(context.Background(), gateway.Request{Prompt: "solve", Image: png})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "**SECTION 1: ANALYSIS**") {
		t.Errorf("answer = %q", out)
	}

	msgs, _ := got["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %v", got["messages"])
	}
	content, _ := msgs[0].(map[string]any)["content"].([]any)
	if len(content) != 2 {
		t.Fatalf("content parts = %v", content)
	}
	img, _ := content[1].(map[string]any)["image_url"].(map[string]any)
	if url, _ := img["url"].(string); !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("image url = %q", url)
	}
}

func TestGenerateTextOnly(t *testing.T) {
	var got map[string]any
	e, _ := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = io.WriteString(w, okBody)
	})
	if _, err := e.Generate(context.Background(), gateway.Request{Prompt: "what is 2+2"}); err != nil {
		t.Fatal(err)
	}
	msg := got["messages"].([]any)[0].(map[string]any)
	if msg["content"] != "what is 2+2" {
		t.Errorf("content = %v", msg["content"])
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  gateway.Kind
		wantCalls int32
	}{
		{"server error retried", 500, `{"error":{"message":"boom","type":"server_error"}}`, gateway.KindTransport, 3},
		{"bad request not retried", 400, `{"error":{"message":"bad","type":"invalid_request_error"}}`, gateway.KindTransport, 1},
		{"no choices", 200, `{"id":"c","object":"chat.completion","choices":[]}`, gateway.KindEmpty, 1},
		{"blank content", 200, `{"id":"c","choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`, gateway.KindEmpty, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, calls := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := e.Generate(context.Background(), gateway.Request{Prompt: "p"})
			if kind, ok := gateway.KindOf(err); !ok || kind != tt.wantKind {
				t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
			}
			if n := atomic.LoadInt32(calls); n != tt.wantCalls {
				t.Errorf("calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestGenerateConfigErrors(t *testing.T) {
	if _, err := New("", "m", "", nil).Generate(context.Background(), gateway.Request{Prompt: "p"}); err == nil {
		t.Error("want error without key")
	}
	e := New("k", "m", "http://127.0.0.1:0/v1", nil)
	_, err := e.Generate(context.Background(), gateway.Request{Prompt: "p", Image: []byte("%PDF-1.4")})
	if kind, _ := gateway.KindOf(err); kind != gateway.KindConfig {
		t.Errorf("pdf image err = %v, want config error", err)
	}
}
