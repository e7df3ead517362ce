package gateway

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	ErrUnknownEngine = errors.New("unknown engine")
	ErrModelSwitch   = errors.New("engine cannot switch model")
)

// Engines is the set of configured engines, addressed by Name().
type Engines struct {
	byName map[string]Gateway
	def    string
}

// NewEngines registers gs; nil entries (unconfigured engines) are skipped.
// def must name one of the registered engines.
func NewEngines(def string, gs ...Gateway) (*Engines, error) {
	e := &Engines{byName: make(map[string]Gateway, len(gs)), def: strings.ToLower(def)}
	for _, g := range gs {
		if g == nil {
			continue
		}
		e.byName[strings.ToLower(g.Name())] = g
	}
	if _, ok := e.byName[e.def]; !ok {
		return nil, fmt.Errorf("%w: default %q is not configured", ErrUnknownEngine, def)
	}
	return e, nil
}

// GetEngine resolves name; "" gives the default engine.
func (e *Engines) GetEngine(name string) (Gateway, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = e.def
	}
	g, ok := e.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, name)
	}
	return g, nil
}

// Resolve is GetEngine plus an optional model override.
func (e *Engines) Resolve(name, model string) (Gateway, error) {
	g, err := e.GetEngine(name)
	if err != nil {
		return nil, err
	}
	model = strings.TrimSpace(model)
	if model == "" || model == g.GetModel() {
		return g, nil
	}
	ms, ok := g.(ModelSwitcher)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelSwitch, g.Name())
	}
	return ms.WithModel(model), nil
}

func (e *Engines) Default() Gateway { return e.byName[e.def] }

func (e *Engines) Names() []string {
	out := make([]string, 0, len(e.byName))
	for n := range e.byName {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Manager remembers the selected engine per chat.
type Manager struct {
	engines *Engines
	m       sync.Map // chatID -> Gateway
}

func NewManager(engines *Engines) *Manager {
	return &Manager{engines: engines}
}

func (m *Manager) Get(chatID int64) Gateway {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Gateway)
	}
	return m.engines.Default()
}

func (m *Manager) Set(chatID int64, g Gateway) {
	m.m.Store(chatID, g)
}

// Switch selects engine name (and optionally model) for chatID.
func (m *Manager) Switch(chatID int64, name, model string) (Gateway, error) {
	g, err := m.engines.Resolve(name, model)
	if err != nil {
		return nil, err
	}
	m.Set(chatID, g)
	return g, nil
}

func (m *Manager) Reset(chatID int64) { m.m.Delete(chatID) }

func (m *Manager) Engines() *Engines { return m.engines }
