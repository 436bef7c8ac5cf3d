package llm

import (
	"context"
	"fmt"

	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

// Router dispatches Complete calls to the adapter selected once at
// startup from persistent config (§3 VendorProfile). It holds no
// back-pointer to the agent, breaking the agent/transport/registry cycle
// (§9): the agent passes tool manifests by value into Complete.
type Router struct {
	vendor    models.Vendor
	transport Transport
}

// NewRouter binds a Router to a single vendor's transport.
func NewRouter(vendor models.Vendor, transport Transport) *Router {
	return &Router{vendor: vendor, transport: transport}
}

func (r *Router) Vendor() models.Vendor { return r.vendor }

// Complete delegates the request unchanged to the bound vendor
// transport. It does not trim history itself; the agent loop fits the
// request to MaxRequestBytes with FitRequest before calling it.
func (r *Router) Complete(ctx context.Context, req Request) (models.Reply, error) {
	if r.transport == nil {
		return models.Reply{}, fmt.Errorf("llm: no transport configured for vendor %q", r.vendor)
	}
	return r.transport.Complete(ctx, req)
}
