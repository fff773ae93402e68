package mqtt

import (
	"fmt"
	"strings"
	"sync"

	"github.com/caddyserver/caddy"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/matcher"
	"github.com/nextdhcp/ddhcp/core/replacer"
)

type (
	// publisher is the part of mqtt.Client used for lease events
	publisher interface {
		Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	}

	mqttConnConfig struct {
		broker       []string
		user         string
		password     string
		clientID     string
		cleanSession bool
		qos          int

		l sync.Mutex
		c publisher
	}

	mqttConfig struct {
		*matcher.Matcher

		conn    *mqttConnConfig
		name    string // optional name for the mqtt config
		topic   string
		payload string
		retain  bool
	}

	mqttPlugin struct {
		configs []*mqttConfig
		l       log.Logger
		wg      sync.WaitGroup
	}
)

// handle publishes the lease event for every matching configuration.
// Messages are published in the background
func (m *mqttPlugin) handle(event caddy.EventName, l *events.Lease) error {
	for _, cfg := range m.configs {
		match, err := cfg.Match(event, l)
		if err != nil {
			m.l.Errorf("matching failed for MQTT plugin with name %q: %s", cfg.name, err.Error())
			continue
		}

		if !match {
			continue
		}

		rep := replacer.NewReplacer(event, l)
		topic := rep.Replace(cfg.topic)
		payload := rep.Replace(cfg.payload)

		m.wg.Add(1)
		go func(cfg *mqttConfig) {
			defer m.wg.Done()

			cli, qos, err := m.getClient(cfg)
			if err != nil {
				m.l.Errorf("failed to get MQTT connection for %q: %s", cfg.name, err.Error())
				return
			}

			if token := cli.Publish(topic, byte(qos), cfg.retain, payload); token.Wait() && token.Error() != nil {
				m.l.Errorf("failed to publish MQTT message for %q: %s", cfg.name, token.Error())
				return
			}

			m.l.Debugf("published MQTT message to topic %s", topic)
		}(cfg)
	}

	return nil
}

func (m *mqttPlugin) getClient(cfg *mqttConfig) (publisher, int, error) {
	// check if we should use a different configuration
	if cfg.name != "" && cfg.conn == nil {
		for _, c := range m.configs {
			if c.name == cfg.name && c.conn != nil {
				return m.getClient(c)
			}
		}
		return nil, 0, fmt.Errorf("MQTT configuration with name %q not found", cfg.name)
	}

	cfg.conn.l.Lock()
	defer cfg.conn.l.Unlock()

	if cfg.conn.c == nil {
		if err := cfg.conn.open(m.l); err != nil {
			return nil, 0, err
		}
	}

	return cfg.conn.c, cfg.conn.qos, nil
}

// close disconnects all open MQTT clients
func (m *mqttPlugin) close() error {
	m.wg.Wait()

	for _, cfg := range m.configs {
		if cfg.conn == nil {
			continue
		}

		cfg.conn.l.Lock()
		if cli, ok := cfg.conn.c.(mqtt.Client); ok {
			cli.Disconnect(250)
		}
		cfg.conn.c = nil
		cfg.conn.l.Unlock()
	}

	return nil
}

func (conn *mqttConnConfig) open(l log.Logger) error {
	opts := mqtt.NewClientOptions()

	for _, b := range conn.broker {
		opts.AddBroker(b)
	}

	if conn.user != "" {
		opts.SetUsername(conn.user)
	}

	if conn.password != "" {
		opts.SetPassword(conn.password)
	}

	if conn.cleanSession {
		opts.SetCleanSession(true)
	}

	if conn.clientID != "" {
		opts.SetClientID(conn.clientID)
	}

	opts.SetAutoReconnect(true)

	cli := mqtt.NewClient(opts)

	var servers []string
	for _, s := range opts.Servers {
		servers = append(servers, s.String())
	}

	l.Debugf("connecting to MQTT brokers at %s", strings.Join(servers, ", "))
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	l.Infof("connected to MQTT brokers at %s", strings.Join(servers, ", "))

	conn.c = cli

	return nil
}
