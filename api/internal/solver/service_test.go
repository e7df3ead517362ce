package solver

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"jee-solver/api/internal/conversation"
	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/gateway/gatewaytest"
	"jee-solver/api/internal/solution"
	"jee-solver/api/internal/store"
	"jee-solver/api/internal/util"
)

const modelAnswer = "**SECTION 1: ANALYSIS**\nSubject: Physics\n**SECTION 2: SOLUTION**\nv = u + a t"

type mapCache struct {
	mu sync.Mutex
	m  map[string]store.Answer
}

func (c *mapCache) Find(_ context.Context, hash, engine, model string, _ time.Duration) (store.Answer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.m[hash+engine+model]
	if !ok {
		return store.Answer{}, sql.ErrNoRows
	}
	return a, nil
}

func (c *mapCache) Upsert(_ context.Context, hash, engine, model string, a store.Answer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[hash+engine+model] = a
	return nil
}

func newService(t *testing.T, stub *gatewaytest.Stub, opts ...Option) (*Service, *conversation.Manager) {
	t.Helper()
	if stub.EngineName == "" {
		stub.EngineName = "gemini"
	}
	engines, err := gateway.NewEngines(stub.EngineName, stub)
	if err != nil {
		t.Fatal(err)
	}
	mgr := conversation.NewManager(store.NewMemoryStore(0), false)
	return New(engines, mgr, opts...), mgr
}

func TestSolveTextOnly(t *testing.T) {
	stub := &gatewaytest.Stub{Reply: modelAnswer}
	svc, mgr := newService(t, stub)
	ctx := context.Background()

	res, err := svc.Solve(ctx, SolveInput{QuestionText: "  A car accelerates...  "})
	if err != nil {
		t.Fatal(err)
	}
	if res.ConversationID == "" || res.GatewayErr != nil {
		t.Fatalf("res = %+v", res)
	}
	segs := res.Document.Segments
	if len(segs) != 2 || segs[0].Title != "ANALYSIS" || segs[1].RawContent != "$v = u + a t$" {
		t.Fatalf("segments = %+v", segs)
	}

	calls := stub.Calls()
	if len(calls) != 1 {
		t.Fatalf("gateway calls = %d, want 1 (no extraction without image)", len(calls))
	}
	if !strings.Contains(calls[0].Prompt, "QUESTION TEXT:\nA car accelerates...") || strings.Contains(calls[0].Prompt, "IMAGE:") {
		t.Errorf("prompt tail = %q", calls[0].Prompt[len(calls[0].Prompt)-80:])
	}

	c, _ := mgr.Load(ctx, res.ConversationID)
	if c.LastQuestionText != "A car accelerates..." || c.LastSolution == nil || len(c.LastSolution.Segments) != 2 {
		t.Errorf("snapshot = %+v", c)
	}
	if len(c.Turns) != 0 {
		t.Error("solve must not append turns")
	}
}

func TestSolveWithImageExtracts(t *testing.T) {
	stub := &gatewaytest.Stub{Respond: gatewaytest.ByPrompt(map[string]string{
		"extract ALL text": "A ball is thrown at $30^\\circ$.",
	}, modelAnswer)}
	svc, mgr := newService(t, stub)
	ctx := context.Background()

	res, err := svc.Solve(ctx, SolveInput{ConversationID: "c1", Image: []byte{0xFF, 0xD8, 0xFF, 0}, MIME: "image/jpeg"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ConversationID != "c1" || res.ExtractedText != "A ball is thrown at $30^\\circ$." {
		t.Fatalf("res = %+v", res)
	}
	calls := stub.Calls()
	if len(calls) != 2 {
		t.Fatalf("gateway calls = %d, want 2", len(calls))
	}
	for _, c := range calls {
		if len(c.Image) == 0 || c.MIME != "image/jpeg" {
			t.Errorf("call without image: %+v", c)
		}
	}
	c, _ := mgr.Load(ctx, "c1")
	if c.LastExtractedText != res.ExtractedText {
		t.Errorf("LastExtractedText = %q", c.LastExtractedText)
	}
}

func TestSolveGatewayErrorBecomesFallbackSegment(t *testing.T) {
	gerr := gateway.NewError("gemini", gateway.KindTransport, errors.New("quota exceeded"))
	stub := &gatewaytest.Stub{Err: gerr}
	svc, _ := newService(t, stub)

	res, err := svc.Solve(context.Background(), SolveInput{QuestionText: "q", ImageURL: "https://x/q.png"})
	if err != nil {
		t.Fatalf("gateway error must not fail Solve: %v", err)
	}
	if !errors.Is(res.GatewayErr, gerr) {
		t.Errorf("GatewayErr = %v", res.GatewayErr)
	}
	segs := res.Document.Segments
	if len(segs) != 1 || segs[0].Title != solution.FallbackTitle || !strings.Contains(segs[0].RawContent, "quota exceeded") {
		t.Errorf("segments = %+v", segs)
	}
	if res.ExtractedText != "" {
		t.Errorf("ExtractedText = %q", res.ExtractedText)
	}
}

func TestSolveEmptyAnswer(t *testing.T) {
	svc, _ := newService(t, &gatewaytest.Stub{Reply: "   "})
	res, err := svc.Solve(context.Background(), SolveInput{QuestionText: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Document.Empty() {
		t.Errorf("want empty document, got %+v", res.Document)
	}
}

func TestSolveRejects(t *testing.T) {
	svc, _ := newService(t, &gatewaytest.Stub{Reply: modelAnswer})
	ctx := context.Background()
	if _, err := svc.Solve(ctx, SolveInput{QuestionText: "  "}); !errors.Is(err, ErrNoInput) {
		t.Errorf("err = %v, want ErrNoInput", err)
	}
	if _, err := svc.Solve(ctx, SolveInput{QuestionText: "q", Engine: "llama"}); err == nil {
		t.Error("want error for unknown engine")
	}
}

func TestSolveUsesAnswerCache(t *testing.T) {
	stub := &gatewaytest.Stub{Reply: modelAnswer, Model: "m1"}
	cache := &mapCache{m: map[string]store.Answer{}}
	svc, _ := newService(t, stub, WithAnswerCache(cache, time.Hour))
	ctx := context.Background()

	first, err := svc.Solve(ctx, SolveInput{QuestionText: "same"})
	if err != nil || first.Cached {
		t.Fatalf("first = %+v, %v", first, err)
	}
	second, err := svc.Solve(ctx, SolveInput{QuestionText: "same"})
	if err != nil || !second.Cached {
		t.Fatalf("second = %+v, %v", second, err)
	}
	if len(stub.Calls()) != 1 {
		t.Errorf("gateway calls = %d, want 1", len(stub.Calls()))
	}
	if second.Document.Text() != first.Document.Text() {
		t.Error("cached document differs")
	}
	if _, ok := cache.m[util.SHA256Hex(nil, []byte("same"))+"gemini"+"m1"]; !ok {
		t.Error("cache key not derived from input hash, engine and model")
	}

	stub.Err = errors.New("down")
	stub.Reply = ""
	if _, err := svc.Solve(ctx, SolveInput{QuestionText: "other"}); err != nil {
		t.Fatal(err)
	}
	if len(cache.m) != 1 {
		t.Error("gateway errors must not be cached")
	}
}

func TestChat(t *testing.T) {
	stub := &gatewaytest.Stub{Respond: gatewaytest.ByPrompt(map[string]string{
		"USER'S FOLLOW-UP QUESTION": "Because $a = 2$.",
	}, modelAnswer)}
	svc, mgr := newService(t, stub)
	ctx := context.Background()

	sol, _ := svc.Solve(ctx, SolveInput{ConversationID: "c", QuestionText: "orig question"})
	_ = sol

	if _, err := svc.Chat(ctx, ChatInput{ConversationID: "c", Message: "  "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
	res, err := svc.Chat(ctx, ChatInput{ConversationID: "c", Message: "why?"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Response != "Because $a = 2$." || res.Turns != 2 {
		t.Errorf("res = %+v", res)
	}

	calls := stub.Calls()
	prompt := calls[len(calls)-1].Prompt
	for _, want := range []string{"ORIGINAL QUESTION", "orig question", "PREVIOUS SOLUTION", "**ANALYSIS**", "why?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("follow-up prompt missing %q", want)
		}
	}

	c, _ := mgr.Load(ctx, "c")
	if len(c.Turns) != 2 || c.Turns[0].Role != conversation.RoleUser || c.Turns[1].Content != "Because $a = 2$." {
		t.Errorf("turns = %+v", c.Turns)
	}
}

func TestChatGatewayErrorIsReply(t *testing.T) {
	stub := &gatewaytest.Stub{Err: gateway.NewError("gemini", gateway.KindEmpty, errors.New("empty response"))}
	svc, _ := newService(t, stub)

	res, err := svc.Chat(context.Background(), ChatInput{ConversationID: "c", Message: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if res.GatewayErr == nil || !strings.Contains(res.Response, "empty response") || res.Turns != 2 {
		t.Errorf("res = %+v", res)
	}
}

func TestClearAndHistory(t *testing.T) {
	svc, _ := newService(t, &gatewaytest.Stub{Reply: modelAnswer})
	ctx := context.Background()

	_, _ = svc.Solve(ctx, SolveInput{ConversationID: "c", QuestionText: "q"})
	_, _ = svc.Chat(ctx, ChatInput{ConversationID: "c", Message: "m"})

	if err := svc.ClearChat(ctx, "c"); err != nil {
		t.Fatal(err)
	}
	h, err := svc.History(ctx, "c")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Turns) != 0 || !h.HasSnapshot() {
		t.Errorf("after clear: turns=%d snapshot=%v", len(h.Turns), h.HasSnapshot())
	}

	fresh, err := svc.History(ctx, "unknown")
	if err != nil || len(fresh.Turns) != 0 || fresh.HasSnapshot() {
		t.Errorf("unknown history = %+v, %v", fresh, err)
	}
}

func TestPromptsFromPack(t *testing.T) {
	var pack util.PromptPack
	pack.Extract = "custom extract"
	pack.FollowUp.Instructions = "be brief"
	p := PromptsFromPack(pack)
	if p.Extract != "custom extract" || p.FollowUp.Instructions != "be brief" {
		t.Errorf("overrides lost: %+v", p)
	}
	if p.Solve != defaultSolvePrompt || p.FollowUp.Preamble != conversation.DefaultPromptTemplate.Preamble {
		t.Error("defaults lost")
	}

	got := DefaultPrompts().SolvePrompt("", true)
	if !strings.HasSuffix(got, imageNote) || strings.Contains(got, "QUESTION TEXT:") {
		t.Errorf("image-only prompt tail = %q", got[len(got)-60:])
	}
}
