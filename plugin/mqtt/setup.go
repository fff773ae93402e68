package mqtt

import (
	"strconv"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/dhcpserver"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/matcher"
)

var dispatcher = events.NewDispatcher("mqtt")

func init() {
	caddy.RegisterPlugin("mqtt", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupMqtt,
	})
}

func setupMqtt(c *caddy.Controller) error {
	plg, err := parseMqtt(c)
	if err != nil {
		return err
	}

	c.OnShutdown(plg.close)
	dispatcher.Set(dhcpserver.GetConfig(c).Network.String(), plg.handle)

	return nil
}

// parseMqtt parses one or more mqtt directives
//
//	mqtt event == 'lease' {
//	    name home
//	    broker tcp://localhost:1883
//	    topic ddhcp/{event}
//	    payload {address} {hwaddr}
//	}
//
//	mqtt {
//	    use home
//	    topic ddhcp/all
//	}
func parseMqtt(c *caddy.Controller) (*mqttPlugin, error) {
	plg := &mqttPlugin{
		l: log.GetLogger(c, "mqtt"),
	}

	for c.Next() {
		cfg := &mqttConfig{
			payload: "{address} {hwaddr}",
		}
		useExisting := false

		cond, err := matcher.SetupMatcherRemainingArgs(c)
		if err != nil {
			return nil, err
		}
		cfg.Matcher = cond

		for c.NextBlock() {
			switch c.Val() {
			case "name", "broker", "user", "password", "client-id",
				"clean-session", "qos":
				if useExisting {
					return nil, c.SyntaxErr("either configure a new connection or \"use\" and existing one")
				}

				if err := parseConnectionSettings(cfg, c); err != nil {
					return nil, err
				}

			case "use":
				if cfg.conn != nil {
					return nil, c.SyntaxErr("either configure a new connection or \"use\" and existing one")
				}
				useExisting = true

				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				cfg.name = c.Val()

			case "topic":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				cfg.topic = c.Val()

			case "payload", "body":
				if !c.NextArg() {
					return nil, c.ArgErr()
				}
				cfg.payload = c.Val()

			case "retain":
				cfg.retain = true

			default:
				return nil, c.SyntaxErr("unknown mqtt setting " + c.Val())
			}
		}

		if !useExisting && cfg.conn == nil {
			return nil, c.SyntaxErr("Either configure a MQTT connection or \"use\" an existing one")
		}

		if cfg.conn != nil && len(cfg.conn.broker) == 0 {
			return nil, c.SyntaxErr("MQTT broker")
		}

		if cfg.topic == "" {
			return nil, c.SyntaxErr("MQTT topic")
		}

		plg.configs = append(plg.configs, cfg)
	}

	return plg, nil
}

func parseConnectionSettings(cfg *mqttConfig, c *caddy.Controller) error {
	if cfg.conn == nil {
		cfg.conn = &mqttConnConfig{}
	}

	action := c.Val()
	if action == "clean-session" {
		cfg.conn.cleanSession = true
		return nil
	}

	if !c.NextArg() {
		return c.ArgErr()
	}

	switch action {
	case "name":
		cfg.name = c.Val()
	case "broker":
		cfg.conn.broker = append([]string{c.Val()}, c.RemainingArgs()...)
	case "user":
		cfg.conn.user = c.Val()
	case "password":
		cfg.conn.password = c.Val()
	case "client-id":
		cfg.conn.clientID = c.Val()
	case "qos":
		i, err := strconv.Atoi(c.Val())
		if err != nil || i < 0 || i > 2 {
			return c.SyntaxErr("expected a number between 0 and 2")
		}
		cfg.conn.qos = i
	}

	return nil
}
