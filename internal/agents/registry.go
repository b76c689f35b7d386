package agents

import (
	"context"
	"fmt"
)

// Registry discovers and dispatches subagents by name. Registration order is
// preserved for the listing endpoint.
type Registry struct {
	agents map[string]Agent
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

// NewDefaultRegistry creates a registry with the built-in agents registered
// in their fixed order: document_search, code_agent, citation_agent.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewDocumentSearchAgent())
	r.Register(NewCodeAgent())
	r.Register(NewCitationAgent())
	return r
}

// Register adds an agent, replacing any previous agent of the same name.
func (r *Registry) Register(agent Agent) {
	if _, exists := r.agents[agent.Name()]; !exists {
		r.order = append(r.order, agent.Name())
	}
	r.agents[agent.Name()] = agent
}

// Get returns the agent with the given name, or nil when unknown.
func (r *Registry) Get(name string) Agent {
	return r.agents[name]
}

// ListAll returns the metadata of every registered agent in registration
// order.
func (r *Registry) ListAll() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name].Metadata())
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	return len(r.agents)
}

// Invoke dispatches to the named agent. An unknown name yields an error
// Response rather than a Go error, matching the agent result shape.
func (r *Registry) Invoke(ctx context.Context, name, query string, contextMap map[string]interface{}) Response {
	agent := r.Get(name)
	if agent == nil {
		return Response{
			Status:   StatusError,
			Result:   map[string]interface{}{},
			Metadata: map[string]interface{}{"requested_agent": name},
			Error:    fmt.Sprintf("Agent '%s' not found", name),
		}
	}
	return agent.Invoke(ctx, query, contextMap)
}
