package intent

import "context"

// Mux routes plan requests to a named provider. Devices pick their
// provider through user config; unset or unknown names fall back to
// the default.
type Mux struct {
	def       string
	providers map[string]Planner
}

// NewMux creates a Mux with the given default provider name.
func NewMux(def string) *Mux {
	return &Mux{def: def, providers: make(map[string]Planner)}
}

// Handle registers a provider under a name.
func (m *Mux) Handle(name string, p Planner) {
	m.providers[name] = p
}

// Plan implements Planner.
func (m *Mux) Plan(ctx context.Context, req Request) (*Intent, error) {
	name := req.Config.Get(req.Config.Planner, m.def)
	p, ok := m.providers[name]
	if !ok {
		p = m.providers[m.def]
	}
	return p.Plan(ctx, req)
}
