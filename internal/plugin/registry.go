package plugin

import (
	"sort"

	"github.com/dcnnt/dcnntd/internal/device"
	"github.com/dcnnt/dcnntd/internal/metrics"
	"github.com/dcnnt/dcnntd/internal/rpc"
)

// Deps bundles the per-session resources a plugin Factory needs to build a
// Handler: the authenticated peer, the JSON-RPC transport already bound to
// this connection's framed channel, and the optional metrics recorder.
// Plugin-specific configuration is closed over by each package's own
// Factory constructor instead of living here, since its shape differs per
// plugin (spec §9: "plugins never need the whole app").
type Deps struct {
	Transport *rpc.Transport
	Device    device.Device
	Metrics   *metrics.Metrics
}

// Factory builds a fresh Handler for one session. A new Handler is built
// per connection; no state is shared across sessions (spec §5, §9).
type Factory func(Deps) Handler

// Registry maps a 4-byte plugin tag (spec §3) to the Factory that builds
// its Handler.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty plugin registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds tag's factory. Registering the same tag twice overwrites
// the previous factory.
func (r *Registry) Register(tag string, f Factory) {
	r.factories[tag] = f
}

// Lookup returns tag's factory, if registered.
func (r *Registry) Lookup(tag string) (Factory, bool) {
	f, ok := r.factories[tag]
	return f, ok
}

// Tags returns every registered plugin tag, sorted.
func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
