package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"spacegun/pkg/logging"
)

// Procedure names one dispatchable operation.
type Procedure struct {
	Module string `json:"module"`
	Name   string `json:"name"`
}

func (p Procedure) String() string {
	return p.Module + "/" + p.Name
}

// Handler executes a procedure with JSON-encoded parameters.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Registry maps procedures to handlers. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Procedure]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Procedure]Handler)}
}

// Handle registers h under (module, name), replacing an existing handler.
func (r *Registry) Handle(module, name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := Procedure{Module: module, Name: name}
	if _, exists := r.handlers[p]; exists {
		logging.Debug("API", "Replacing handler for %s", p)
	}
	r.handlers[p] = h
}

// Lookup returns the handler of (module, name).
func (r *Registry) Lookup(module, name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[Procedure{Module: module, Name: name}]
	if !ok {
		return nil, NewNotFoundError("procedure", module+"/"+name)
	}
	return h, nil
}

// Procedures lists every registered procedure, sorted.
func (r *Registry) Procedures() []Procedure {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Procedure, 0, len(r.handlers))
	for p := range r.handlers {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Module != res[j].Module {
			return res[i].Module < res[j].Module
		}
		return res[i].Name < res[j].Name
	})
	return res
}

// Register binds a typed function as a procedure. Parameters are decoded
// from JSON into P; an empty body leaves P at its zero value.
func Register[P, R any](r *Registry, module, name string, fn func(ctx context.Context, params P) (R, error)) {
	r.Handle(module, name, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var params P
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("%w: invalid parameters for %s/%s: %v", ErrBadRequest, module, name, err)
			}
		}
		return fn(ctx, params)
	})
}

// Call invokes (module, name) through t and decodes the result into R.
func Call[P, R any](ctx context.Context, t Transport, module, name string, params P) (R, error) {
	var result R
	raw, err := json.Marshal(params)
	if err != nil {
		return result, fmt.Errorf("failed to encode parameters for %s/%s: %w", module, name, err)
	}
	out, err := t.Invoke(ctx, module, name, raw)
	if err != nil {
		return result, err
	}
	if len(out) == 0 || string(out) == "null" {
		return result, nil
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return result, fmt.Errorf("failed to decode result of %s/%s: %w", module, name, err)
	}
	return result, nil
}

// Empty is the parameter or result of procedures that carry none.
type Empty struct{}
