package prometheus

import (
	"strconv"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
	"github.com/nextdhcp/ddhcp/plugin"
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	caddy.RegisterPlugin("prometheus", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupPrometheus,
	})
}

func setupPrometheus(c *caddy.Controller) error {
	metrics, err := parse(c)
	if err != nil {
		return err
	}

	metrics.define(prometheus.DefaultRegisterer)

	if err := metrics.start(prometheus.DefaultGatherer); err != nil {
		return err
	}
	c.OnFinalShutdown(metrics.stop)

	cfg := dhcpserver.GetConfig(c)
	cfg.AddPlugin(func(next plugin.Handler) plugin.Handler {
		return &Plugin{
			Next:    next,
			Network: cfg.Network.String(),
		}
	})

	return nil
}

// prometheus {
//	address localhost:9180
//	path /metrics
//	latency_buckets 0.001 0.01 0.1
// }
// Or just: prometheus localhost:9180
func parse(c *caddy.Controller) (*Metrics, error) {
	var metrics *Metrics

	for c.Next() {
		if metrics != nil {
			return nil, c.Err("prometheus: can only have one metrics module per server")
		}

		args := c.RemainingArgs()
		metrics = NewMetrics("", "")
		switch len(args) {
		case 0:
		case 1:
			metrics.addr = args[0]
		default:
			return nil, c.ArgErr()
		}

		for c.NextBlock() {
			switch c.Val() {
			case "path":
				args = c.RemainingArgs()
				if len(args) != 1 {
					return nil, c.ArgErr()
				}
				metrics.path = args[0]
			case "address":
				args = c.RemainingArgs()
				if len(args) != 1 {
					return nil, c.ArgErr()
				}
				metrics.addr = args[0]
			case "latency_buckets":
				args = c.RemainingArgs()
				if len(args) < 1 {
					return nil, c.Err("prometheus: must specify 1 or more latency buckets")
				}
				metrics.latencyBuckets = make([]float64, len(args))
				for i, v := range args {
					b, err := strconv.ParseFloat(v, 64)
					if err != nil {
						return nil, c.Errf("prometheus: invalid bucket %q - must be a number", v)
					}
					metrics.latencyBuckets[i] = b
				}
			default:
				return nil, c.Errf("prometheus: unknown item: %s", c.Val())
			}
		}
	}

	return metrics, nil
}
