package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Factory constructs an Agent.
type Factory func() Agent

// Registry maps agent names to factories and manages the lifecycle of the
// agents it starts.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	spawned   []Agent
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered names in the order SpawnAll assigns ports.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Spawn creates a single agent by name without starting it.
func (r *Registry) Spawn(name string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("no factory registered for agent %q", name)
	}
	ag := f()
	r.spawned = append(r.spawned, ag)
	return ag, nil
}

// Endpoint pairs a started agent with its listen address.
type Endpoint struct {
	Name  string
	Addr  string
	Agent Agent
}

// SpawnAll starts every registered agent on sequential ports from basePort,
// in name order. On failure, already started agents are stopped.
func (r *Registry) SpawnAll(ctx context.Context, host string, basePort int) ([]Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var started []Endpoint
	for i, name := range r.namesLocked() {
		ag := r.factories[name]()
		addr := fmt.Sprintf("%s:%d", host, basePort+i)
		if err := ag.Start(ctx, addr); err != nil {
			for j := len(started) - 1; j >= 0; j-- {
				_ = started[j].Agent.Stop(ctx)
			}
			return nil, fmt.Errorf("start agent %q on %s: %w", name, addr, err)
		}
		started = append(started, Endpoint{Name: name, Addr: addr, Agent: ag})
	}

	for _, ep := range started {
		r.spawned = append(r.spawned, ep.Agent)
	}
	return started, nil
}

// StopAll stops every spawned agent in reverse spawn order and returns
// all stop errors.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs *multierror.Error
	for i := len(r.spawned) - 1; i >= 0; i-- {
		if err := r.spawned[i].Stop(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	r.spawned = nil
	return errs.ErrorOrNil()
}
