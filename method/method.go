// Package method dispatches payment execution to pluggable backends.
//
// The core stays method-agnostic: it authorizes and reserves, then
// hands the actual transfer to whichever Executor is registered for the
// request's method id. Executors are supplied by the host application
// (a lightning node client, an on-chain wallet, a test double).
package method

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/peerpay/authcore/types"
)

// Dispatch errors.
var (
	ErrUnknownMethod   = errors.New("method: no executor registered")
	ErrExecutionFailed = errors.New("method: execution failed")
)

// Proof is the evidence a completed payment leaves behind, e.g. a
// lightning preimage or an on-chain transaction id.
type Proof struct {
	MethodID  string       `json:"method_id"`
	Reference string       `json:"reference"`
	Amount    types.Amount `json:"amount"`
	PaidAt    time.Time    `json:"paid_at"`
}

// Executor performs payments over one method.
type Executor interface {
	// ID is the method id this executor serves, e.g. "lightning".
	ID() string

	// Execute transfers amount to the given endpoint and returns proof
	// of payment. A failed execution returns an error wrapping
	// ErrExecutionFailed when the transfer itself failed (as opposed to
	// transport or configuration problems).
	Execute(ctx context.Context, endpoint string, amount types.Amount) (*Proof, error)
}

// Registry maps method ids to executors. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor, replacing any previous one for the same id.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.ID()] = e
}

// Get returns the executor for a method id.
func (r *Registry) Get(methodID string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[methodID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, methodID)
	}
	return e, nil
}

// IDs returns the registered method ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.executors))
	for methodID := range r.executors {
		ids = append(ids, methodID)
	}
	sort.Strings(ids)
	return ids
}
