// Package solver runs the question flow: ask the model, turn the raw answer
// into a segmented document, and keep the per-conversation context current.
package solver

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jee-solver/api/internal/conversation"
	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/logger"
	"jee-solver/api/internal/solution"
	"jee-solver/api/internal/store"
	"jee-solver/api/internal/util"
)

var (
	ErrNoInput      = errors.New("provide an image or question text")
	ErrEmptyMessage = errors.New("empty message")
)

// AnswerCache is satisfied by store.AnswerRepo.
type AnswerCache interface {
	Find(ctx context.Context, inputHash, engine, model string, maxAge time.Duration) (store.Answer, error)
	Upsert(ctx context.Context, inputHash, engine, model string, a store.Answer) error
}

type Service struct {
	engines *gateway.Engines
	conv    *conversation.Manager
	prompts Prompts
	log     *logger.Logger

	cache       AnswerCache
	cacheMaxAge time.Duration
}

type Option func(*Service)

func WithPrompts(p Prompts) Option { return func(s *Service) { s.prompts = p } }

func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = l } }

// WithAnswerCache enables the raw answer cache; maxAge <= 0 keeps entries forever.
func WithAnswerCache(c AnswerCache, maxAge time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheMaxAge = maxAge
	}
}

func New(engines *gateway.Engines, conv *conversation.Manager, opts ...Option) *Service {
	s := &Service{
		engines: engines,
		conv:    conv,
		prompts: DefaultPrompts(),
		log:     logger.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Engines() *gateway.Engines { return s.engines }

type SolveInput struct {
	ConversationID string
	QuestionText   string
	Image          []byte
	MIME           string
	ImageURL       string
	Engine         string
	Model          string
}

func (in SolveInput) hasImage() bool { return len(in.Image) > 0 || in.ImageURL != "" }

type SolveResult struct {
	ConversationID string
	Document       solution.Document
	ExtractedText  string
	// GatewayErr is set when the model failed; Document then holds the error
	// text as its only segment.
	GatewayErr error
	Cached     bool
}

// Solve asks for the structured solution (and, with an image, the extracted
// question text) and records the result as the conversation's snapshot.
func (s *Service) Solve(ctx context.Context, in SolveInput) (SolveResult, error) {
	in.QuestionText = strings.TrimSpace(in.QuestionText)
	if in.QuestionText == "" && !in.hasImage() {
		return SolveResult{}, ErrNoInput
	}
	g, err := s.engines.Resolve(in.Engine, in.Model)
	if err != nil {
		return SolveResult{}, err
	}
	res := SolveResult{ConversationID: strings.TrimSpace(in.ConversationID)}
	if res.ConversationID == "" {
		res.ConversationID = uuid.NewString()
	}

	key := inputHash(in)
	raw, extracted, cached := s.lookup(ctx, key, g)
	if cached {
		res.Cached = true
	} else {
		var solveErr error
		raw, extracted, solveErr = s.ask(ctx, g, in)
		if solveErr != nil {
			res.GatewayErr = solveErr
			raw = solveErr.Error()
		} else {
			s.remember(ctx, key, g, raw, extracted)
		}
	}
	res.ExtractedText = extracted
	res.Document = solution.Build(raw)

	_, err = s.conv.Update(ctx, res.ConversationID, func(c *conversation.Context) error {
		c.RecordSolved(in.QuestionText, extracted, res.Document)
		return nil
	})
	if err != nil {
		return res, err
	}
	s.log.Info("solved",
		"conversation_id", res.ConversationID,
		"engine", g.Name(), "model", g.GetModel(),
		"segments", len(res.Document.Segments),
		"cached", res.Cached,
		"gateway_error", res.GatewayErr != nil,
	)
	return res, nil
}

// ask runs the solve call and, with an image, the extraction call in
// parallel. A failed extraction only costs the extracted text.
func (s *Service) ask(ctx context.Context, g gateway.Gateway, in SolveInput) (raw, extracted string, err error) {
	req := gateway.Request{Image: in.Image, MIME: in.MIME, ImageURL: in.ImageURL}

	var eg errgroup.Group
	eg.Go(func() error {
		r := req
		r.Prompt = s.prompts.SolvePrompt(in.QuestionText, in.hasImage())
		raw, err = g.Generate(ctx, r)
		return nil
	})
	if in.hasImage() {
		eg.Go(func() error {
			r := req
			r.Prompt = s.prompts.Extract
			out, xerr := g.Generate(ctx, r)
			if xerr != nil {
				s.log.Warn("extraction failed", "engine", g.Name(), "err", xerr)
				return nil
			}
			extracted = out
			return nil
		})
	}
	_ = eg.Wait()
	return raw, extracted, err
}

func (s *Service) lookup(ctx context.Context, key string, g gateway.Gateway) (raw, extracted string, ok bool) {
	if s.cache == nil {
		return "", "", false
	}
	a, err := s.cache.Find(ctx, key, g.Name(), g.GetModel(), s.cacheMaxAge)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("answer cache lookup failed", "err", err)
		}
		return "", "", false
	}
	return a.Raw, a.Extracted, true
}

func (s *Service) remember(ctx context.Context, key string, g gateway.Gateway, raw, extracted string) {
	if s.cache == nil || strings.TrimSpace(raw) == "" {
		return
	}
	if err := s.cache.Upsert(ctx, key, g.Name(), g.GetModel(), store.Answer{Raw: raw, Extracted: extracted}); err != nil {
		s.log.Warn("answer cache write failed", "err", err)
	}
}

// inputHash identifies a question by its image (bytes or URL) and text.
func inputHash(in SolveInput) string {
	img := in.Image
	if len(img) == 0 {
		img = []byte(in.ImageURL)
	}
	return util.SHA256Hex(img, []byte(in.QuestionText))
}

type ChatInput struct {
	ConversationID string
	Message        string
	Engine         string
	Model          string
}

type ChatResult struct {
	Response   string
	GatewayErr error
	Turns      int
}

// Chat answers a follow-up about the last solved question. The exchange is
// recorded as two turns even when the model fails; the reply then carries
// the error text.
func (s *Service) Chat(ctx context.Context, in ChatInput) (ChatResult, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return ChatResult{}, ErrEmptyMessage
	}
	if strings.TrimSpace(in.ConversationID) == "" {
		return ChatResult{}, errors.New("conversation id is required")
	}
	g, err := s.engines.Resolve(in.Engine, in.Model)
	if err != nil {
		return ChatResult{}, err
	}

	var res ChatResult
	c, err := s.conv.Update(ctx, in.ConversationID, func(c *conversation.Context) error {
		prompt := s.prompts.FollowUp.Build(c, msg)
		reply, gerr := g.Generate(ctx, gateway.Request{Prompt: prompt})
		if gerr != nil {
			res.GatewayErr = gerr
			reply = gerr.Error()
		}
		res.Response = reply
		c.AppendTurn(conversation.RoleUser, msg)
		c.AppendTurn(conversation.RoleAssistant, reply)
		return nil
	})
	if err != nil {
		return ChatResult{}, err
	}
	res.Turns = len(c.Turns)
	s.log.Info("chat", "conversation_id", in.ConversationID, "engine", g.Name(), "turns", res.Turns, "gateway_error", res.GatewayErr != nil)
	return res, nil
}

func (s *Service) ClearChat(ctx context.Context, conversationID string) error {
	_, err := s.conv.Clear(ctx, conversationID)
	return err
}

// History returns the stored context, empty for an unknown id.
func (s *Service) History(ctx context.Context, conversationID string) (*conversation.Context, error) {
	return s.conv.Load(ctx, conversationID)
}
