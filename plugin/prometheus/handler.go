package prometheus

import (
	"context"
	"time"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/engine"
	"github.com/nextdhcp/ddhcp/plugin"
)

// Plugin records the number and duration of requests passed to the next
// handler
type Plugin struct {
	Next    plugin.Handler
	Network string
}

// Name implements plugin.Handler
func (p *Plugin) Name() string {
	return "prometheus"
}

// ServeDHCP implements plugin.Handler
func (p *Plugin) ServeDHCP(ctx context.Context, req *dhcpv4.DHCPv4) (engine.Outcome, error) {
	start := time.Now()
	out, err := p.Next.ServeDHCP(ctx, req)

	outcome := out.String()
	if err != nil {
		outcome = "error"
	}

	labels := []string{p.Network, req.MessageType().String(), outcome}
	requestCount.WithLabelValues(labels...).Inc()
	requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

	return out, err
}
