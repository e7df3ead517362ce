// Package gateway is the contract for text/vision model engines: a prompt,
// optionally an image, in; raw answer text or a typed *Error out.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

type Request struct {
	Prompt string
	// Image bytes win over ImageURL when both are set.
	Image    []byte
	MIME     string
	ImageURL string
}

func (r Request) HasImage() bool { return len(r.Image) > 0 || r.ImageURL != "" }

type Gateway interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, in Request) (string, error)
}

// ModelSwitcher is implemented by engines that can serve a different model
// with the same credentials.
type ModelSwitcher interface {
	WithModel(model string) Gateway
}

// Options are generation parameters shared by all engines.
type Options struct {
	Temperature     float32
	TopK            int32
	TopP            float32
	MaxOutputTokens int32
	Attempts        int
}

func DefaultOptions() Options {
	return Options{
		Temperature:     0.2,
		TopK:            40,
		TopP:            0.95,
		MaxOutputTokens: 8192,
		Attempts:        3,
	}
}

type Kind string

const (
	KindTransport Kind = "transport"
	KindEmpty     Kind = "empty"
	KindConfig    Kind = "config"
)

// Error is what every engine returns on failure.
type Error struct {
	Engine string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Engine, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Engine, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(engine string, kind Kind, err error) *Error {
	return &Error{Engine: engine, Kind: kind, Err: err}
}

// KindOf reports the Kind of a gateway error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return "", false
}
