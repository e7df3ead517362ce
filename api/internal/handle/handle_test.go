package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"jee-solver/api/internal/acquire"
	"jee-solver/api/internal/conversation"
	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/gateway/gatewaytest"
	"jee-solver/api/internal/render"
	"jee-solver/api/internal/solver"
	"jee-solver/api/internal/store"
)

const answer = "**SECTION 1: ANALYSIS**\nSubject: Physics\n**SECTION 2: SOLUTION**\nv = u + a t"

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func newServer(t *testing.T, stub *gatewaytest.Stub, health Pinger) *httptest.Server {
	t.Helper()
	stub.EngineName = "gemini"
	engines, err := gateway.NewEngines("gemini", stub)
	if err != nil {
		t.Fatal(err)
	}
	mgr := conversation.NewManager(store.NewMemoryStore(0), false)
	svc := solver.New(engines, mgr)
	h := New(svc, acquire.New(1<<20, time.Second), nil, health)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartBody(t *testing.T, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("image_file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(file)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, &gatewaytest.Stub{}, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	down := newServer(t, &gatewaytest.Stub{}, pinger{err: errors.New("down")})
	resp, err = http.Get(down.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status with failing store = %d", resp.StatusCode)
	}
}

func TestSolveUpload(t *testing.T) {
	stub := &gatewaytest.Stub{Reply: answer}
	srv := newServer(t, stub, nil)

	body, ct := multipartBody(t, map[string]string{"question_text": "find v"}, "q.png", pngBytes(t))
	resp, err := http.Post(srv.URL+"/v1/solve?format=html", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decode[SolveResponse](t, resp)
	if out.ConversationID == "" || out.Empty || len(out.Segments) != 2 {
		t.Fatalf("out = %+v", out)
	}
	if out.Segments[1].Title != "SOLUTION" || !strings.Contains(out.Segments[1].HTML, "$v = u + a t$") {
		t.Errorf("segment = %+v", out.Segments[1])
	}
	calls := stub.Calls()
	if len(calls) != 2 || calls[0].MIME != "image/png" {
		t.Errorf("gateway calls = %+v", calls)
	}
}

func TestSolveFormVariants(t *testing.T) {
	img := pngBytes(t)
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(img) }))
	defer imgSrv.Close()

	tests := []struct {
		name       string
		reply      string
		err        error
		form       url.Values
		wantStatus int
		check      func(t *testing.T, out map[string]any)
	}{
		{
			name:       "question text only",
			reply:      answer,
			form:       url.Values{"question_text": {"A car accelerates"}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, out map[string]any) {
				segs := out["segments"].([]any)
				if len(segs) != 2 {
					t.Errorf("segments = %v", segs)
				}
				if _, ok := segs[0].(map[string]any)["html"]; ok {
					t.Error("html present without format=html")
				}
			},
		},
		{
			name:       "remote image",
			reply:      answer,
			form:       url.Values{"image_url": {imgSrv.URL + "/q.png"}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no input",
			form:       url.Values{"question_text": {"  "}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad data url",
			form:       url.Values{"image_url": {"data:image/png;base64,@@"}},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, out map[string]any) {
				if out["kind"] != string(acquire.KindInvalidReference) {
					t.Errorf("kind = %v", out["kind"])
				}
			},
		},
		{
			name:       "unknown engine",
			form:       url.Values{"question_text": {"q"}, "engine": {"llama"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "gateway error",
			err:        gateway.NewError("gemini", gateway.KindTransport, errors.New("timeout")),
			form:       url.Values{"question_text": {"q"}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, out map[string]any) {
				if !strings.Contains(out["gateway_error"].(string), "timeout") {
					t.Errorf("gateway_error = %v", out["gateway_error"])
				}
				segs := out["segments"].([]any)
				if len(segs) != 1 {
					t.Errorf("segments = %v", segs)
				}
			},
		},
		{
			name:       "empty answer",
			reply:      "",
			form:       url.Values{"question_text": {"q"}},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, out map[string]any) {
				if out["empty"] != true || out["message"] != render.NoContent {
					t.Errorf("out = %v", out)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, &gatewaytest.Stub{Reply: tt.reply, Err: tt.err}, nil)
			resp, err := http.PostForm(srv.URL+"/v1/solve", tt.form)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				resp.Body.Close()
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			out := decode[map[string]any](t, resp)
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}

func TestSolveRejectsBadUpload(t *testing.T) {
	srv := newServer(t, &gatewaytest.Stub{Reply: answer}, nil)
	body, ct := multipartBody(t, nil, "q.bmp", pngBytes(t))
	resp, err := http.Post(srv.URL+"/v1/solve", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	out := decode[map[string]string](t, resp)
	if resp.StatusCode != http.StatusBadRequest || out["kind"] != string(acquire.KindUnsupportedFormat) {
		t.Errorf("status = %d, out = %v", resp.StatusCode, out)
	}
}

func postJSON(t *testing.T, u string, v any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(v)
	resp, err := http.Post(u, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestChatFlow(t *testing.T) {
	stub := &gatewaytest.Stub{Respond: gatewaytest.ByPrompt(map[string]string{"FOLLOW-UP": "Use $v = u + a t$."}, answer)}
	srv := newServer(t, stub, nil)

	resp, _ := http.PostForm(srv.URL+"/v1/solve", url.Values{"question_text": {"q"}, "conversation_id": {"abc"}})
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/v1/chat", ChatRequest{ConversationID: "abc", Message: "   "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty message status = %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/v1/chat", ChatRequest{ConversationID: "abc", Message: "how?"})
	chat := decode[ChatResponse](t, resp)
	if chat.Response != "Use $v = u + a t$." {
		t.Errorf("response = %q", chat.Response)
	}

	getConv := func() conversation.Context {
		resp, err := http.Get(srv.URL + "/v1/conversations/abc")
		if err != nil {
			t.Fatal(err)
		}
		return decode[conversation.Context](t, resp)
	}
	c := getConv()
	if len(c.Turns) != 2 || c.LastQuestionText != "q" {
		t.Errorf("conversation = %+v", c)
	}

	resp = postJSON(t, srv.URL+"/v1/chat/clear", map[string]string{"conversation_id": "abc"})
	cleared := decode[map[string]bool](t, resp)
	if !cleared["success"] {
		t.Error("clear did not report success")
	}
	c = getConv()
	if len(c.Turns) != 0 || c.LastSolution == nil {
		t.Errorf("after clear = %+v", c)
	}
}

func TestRequestContextDeadline(t *testing.T) {
	tests := []struct {
		header, query string
		want          time.Duration
	}{
		{"", "", defaultDeadline},
		{"5", "", 5 * time.Second},
		{"", "7", 7 * time.Second},
		{"abc", "7", defaultDeadline},
		{"-1", "", defaultDeadline},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodPost, "/v1/solve?timeoutSec="+tt.query, nil)
		if tt.header != "" {
			r.Header.Set("X-Request-Timeout", tt.header)
		}
		ctx, cancel := requestContext(r)
		dl, ok := ctx.Deadline()
		cancel()
		if !ok {
			t.Fatal("no deadline")
		}
		left := time.Until(dl)
		if left > tt.want || left < tt.want-time.Second {
			t.Errorf("header=%q query=%q: deadline in %v, want ~%v", tt.header, tt.query, left, tt.want)
		}
	}
}
