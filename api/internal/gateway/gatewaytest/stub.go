// Package gatewaytest provides a scriptable gateway for tests.
package gatewaytest

import (
	"context"
	"strings"
	"sync"

	"jee-solver/api/internal/gateway"
)

// Stub answers from Reply (or Respond when set) and records every request.
type Stub struct {
	EngineName string
	Model      string
	Reply      string
	Err        error
	Respond    func(in gateway.Request) (string, error)

	mu    sync.Mutex
	calls []gateway.Request
}

func (s *Stub) Name() string {
	if s.EngineName == "" {
		return "stub"
	}
	return s.EngineName
}

func (s *Stub) GetModel() string { return s.Model }

func (s *Stub) Generate(ctx context.Context, in gateway.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, in)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", gateway.NewError(s.Name(), gateway.KindTransport, err)
	}
	if s.Respond != nil {
		return s.Respond(in)
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Reply, nil
}

// WithModel returns a stub sharing this one's script under another model.
func (s *Stub) WithModel(model string) gateway.Gateway {
	return &Stub{EngineName: s.EngineName, Model: model, Reply: s.Reply, Err: s.Err, Respond: s.Respond}
}

func (s *Stub) Calls() []gateway.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gateway.Request(nil), s.calls...)
}

// ByPrompt routes on a prompt substring: the first key found in the prompt
// picks the answer.
func ByPrompt(answers map[string]string, fallback string) func(gateway.Request) (string, error) {
	return func(in gateway.Request) (string, error) {
		for k, v := range answers {
			if strings.Contains(in.Prompt, k) {
				return v, nil
			}
		}
		return fallback, nil
	}
}
