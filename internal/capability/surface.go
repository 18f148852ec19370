// Package capability is the fixed registry of tools, resources and prompts the
// agent can list and invoke by name.
package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/yosida95/uritemplate/v3"
	"go.uber.org/zap"

	"github.com/xkilldash9x/openapi-seeker/internal/frontier"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind selects one of the three capability namespaces.
type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindTool || k == KindResource || k == KindPrompt
}

// Handler runs a capability with validated arguments.
type Handler func(ctx context.Context, args Args) (any, error)

// Descriptor is the listing entry of a capability. For resources Name is the
// URI, or a URI template such as credentials://{name}.
type Descriptor struct {
	Kind        Kind    `json:"kind"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	MIMEType    string  `json:"mime_type,omitempty"`
	Params      []Param `json:"-"`
}

// Schema returns the JSON Schema of the descriptor's arguments.
func (d Descriptor) Schema() map[string]any { return schema(d.Params) }

// IsTemplate reports whether the resource name holds {placeholders}.
func (d Descriptor) IsTemplate() bool {
	return d.Kind == KindResource && strings.Contains(d.Name, "{")
}

// Listing is the serializable form of a Descriptor.
type Listing struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	MIMEType    string         `json:"mime_type,omitempty"`
	Schema      map[string]any `json:"schema"`
}

// Result is the outcome of a successful invocation.
type Result struct {
	Kind     Kind   `json:"kind"`
	Name     string `json:"name"`
	MIMEType string `json:"mime_type,omitempty"`
	Data     any    `json:"data"`
	// Delegate is set when the data came from the delegate model.
	Delegate bool `json:"-"`
}

// Text renders Data for the transcript: strings as is, anything else as JSON.
func (r *Result) Text() string {
	switch d := r.Data.(type) {
	case string:
		return d
	case []byte:
		return string(d)
	}
	b, err := json.Marshal(r.Data)
	if err != nil {
		return fmt.Sprintf("%v", r.Data)
	}
	return string(b)
}

// DelegateResult marks a handler's return value as produced by the delegate.
type DelegateResult struct {
	Text string
}

// Snapshot is the context document handed to the model before each decision.
type Snapshot struct {
	AutomationActive bool   `json:"automation_active"`
	PageLoaded       bool   `json:"page_loaded"`
	SchemaFound      bool   `json:"schema_found"`
	CurrentURL       string `json:"current_url,omitempty"`
}

// StatusFunc reports the live browser state.
type StatusFunc func() frontier.Status

type registration struct {
	desc    Descriptor
	handler Handler
	tmpl    *uritemplate.Template
	vars    []string
}

// Surface holds the registered capabilities. Registration normally happens once
// at startup; lookups and invocations are safe for concurrent use.
type Surface struct {
	logger *zap.Logger
	status StatusFunc

	mu      sync.RWMutex
	entries map[Kind][]*registration

	schemaFound atomic.Bool
}

// NewSurface returns an empty surface. status may be nil before a browser exists.
func NewSurface(logger *zap.Logger, status StatusFunc) *Surface {
	return &Surface{
		logger:  logger.Named("capabilities"),
		status:  status,
		entries: make(map[Kind][]*registration),
	}
}

// AddTool registers a tool.
func (s *Surface) AddTool(name, description string, params []Param, h Handler) error {
	return s.add(Descriptor{Kind: KindTool, Name: name, Description: description, Params: params}, h)
}

// AddResource registers a resource. A uri containing {var} segments is a
// template; each var becomes a required string argument.
func (s *Surface) AddResource(uri, description, mimeType string, params []Param, h Handler) error {
	return s.add(Descriptor{Kind: KindResource, Name: uri, Description: description, MIMEType: mimeType, Params: params}, h)
}

// AddPrompt registers a prompt template.
func (s *Surface) AddPrompt(name, description string, params []Param, h Handler) error {
	return s.add(Descriptor{Kind: KindPrompt, Name: name, Description: description, Params: params}, h)
}

func (s *Surface) add(d Descriptor, h Handler) error {
	if d.Name == "" || h == nil {
		return fmt.Errorf("capability registration requires a name and a handler")
	}
	reg := &registration{desc: d, handler: h}

	if d.IsTemplate() {
		tmpl, err := uritemplate.New(d.Name)
		if err != nil {
			return fmt.Errorf("invalid resource template %q: %w", d.Name, err)
		}
		reg.tmpl = tmpl
		reg.vars = tmpl.Varnames()

		for _, v := range reg.vars {
			if !hasParam(d.Params, v) {
				reg.desc.Params = append(reg.desc.Params, Param{Name: v, Type: TypeString, Required: true})
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries[d.Kind] {
		if existing.desc.Name == d.Name {
			return fmt.Errorf("%s %q is already registered", d.Kind, d.Name)
		}
	}
	s.entries[d.Kind] = append(s.entries[d.Kind], reg)
	return nil
}

// List returns the descriptors of kind in registration order.
func (s *Surface) List(kind Kind) []Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Descriptor, 0, len(s.entries[kind]))
	for _, r := range s.entries[kind] {
		out = append(out, r.desc)
	}
	return out
}

// Listings is List in serializable form.
func (s *Surface) Listings(kind Kind) []Listing {
	descs := s.List(kind)
	out := make([]Listing, 0, len(descs))
	for _, d := range descs {
		out = append(out, Listing{Name: d.Name, Description: d.Description, MIMEType: d.MIMEType, Schema: d.Schema()})
	}
	return out
}

// Invoke validates raw against the capability's parameters and runs it.
// Errors are *Error values matching ErrNotFound, ErrInvalidArguments or ErrCapability.
func (s *Surface) Invoke(ctx context.Context, kind Kind, name string, raw map[string]any) (res *Result, err error) {
	reg, vars := s.lookup(kind, name)
	if reg == nil {
		return nil, newError(kind, name, ErrNotFound, nil)
	}

	if len(vars) > 0 {
		merged := make(map[string]any, len(raw)+len(vars))
		for k, v := range raw {
			merged[k] = v
		}
		for k, v := range vars {
			merged[k] = v
		}
		raw = merged
	}

	args, err := Validate(reg.desc.Params, raw)
	if err != nil {
		return nil, newError(kind, name, ErrInvalidArguments, err)
	}

	logger := s.logger.With(zap.String("kind", string(kind)), zap.String("name", name))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Capability panicked", zap.Any("panic", r), zap.Stack("stack"))
			res, err = nil, newError(kind, name, ErrCapability, fmt.Errorf("panic: %v", r))
		}
	}()

	data, herr := reg.handler(ctx, args)
	if herr != nil {
		logger.Debug("Capability failed", zap.Error(herr), zap.Duration("duration", time.Since(start)))
		var cerr *Error
		if errors.As(herr, &cerr) {
			return nil, cerr
		}
		if errors.Is(herr, ErrInvalidArguments) {
			return nil, newError(kind, name, ErrInvalidArguments, herr)
		}
		return nil, newError(kind, name, ErrCapability, herr)
	}
	logger.Debug("Capability invoked", zap.Duration("duration", time.Since(start)))

	res = &Result{Kind: kind, Name: name, MIMEType: reg.desc.MIMEType, Data: data}
	if d, ok := data.(DelegateResult); ok {
		res.Data = d.Text
		res.Delegate = true
	}
	return res, nil
}

func (s *Surface) lookup(kind Kind, name string) (*registration, map[string]any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regs := s.entries[kind]
	for _, r := range regs {
		if r.tmpl == nil && r.desc.Name == name {
			return r, nil
		}
	}
	for _, r := range regs {
		if r.tmpl == nil {
			continue
		}
		m := r.tmpl.Match(name)
		if m == nil {
			continue
		}
		vars := make(map[string]any, len(r.vars))
		for _, v := range r.vars {
			vars[v] = m.Get(v).String()
		}
		return r, vars
	}
	return nil, nil
}

// MarkSchemaFound flips schema_found for the rest of the session.
func (s *Surface) MarkSchemaFound() { s.schemaFound.Store(true) }

// Snapshot reads the current context. It never blocks on the browser.
func (s *Surface) Snapshot() Snapshot {
	snap := Snapshot{SchemaFound: s.schemaFound.Load()}
	if s.status != nil {
		st := s.status()
		snap.AutomationActive = st.AutomationActive
		snap.PageLoaded = st.PageLoaded
		snap.CurrentURL = st.CurrentURL
	}
	return snap
}

func hasParam(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}
