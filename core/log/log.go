package log

import (
	"context"

	"github.com/apex/log"
	"github.com/caddyserver/caddy"
	"github.com/insomniacslk/dhcp/dhcpv4"
)

// Logger is the logger used by all components
type Logger = log.Interface

// GetLogger returns the logger for the given plugin. The network of the
// server block is added as a field if known
func GetLogger(c *caddy.Controller, plugin string) Logger {
	fields := log.Fields{
		"plugin": plugin,
	}

	if c != nil && c.Key != "" {
		fields["network"] = c.Key
	}

	return log.WithFields(fields)
}

// Component returns the logger for a core component
func Component(name string) Logger {
	return log.WithField("component", name)
}

type requestFieldsKey struct{}

// AddRequestFields returns a new context.Context that carries the logging
// fields of req
func AddRequestFields(parent context.Context, req *dhcpv4.DHCPv4) context.Context {
	fields := log.Fields{
		"hwaddr":  req.ClientHWAddr.String(),
		"xid":     req.TransactionID.String(),
		"msgtype": req.MessageType().String(),
	}

	if req.HostName() != "" {
		fields["hostname"] = req.HostName()
	}

	return context.WithValue(parent, requestFieldsKey{}, fields)
}

// With returns l with the request fields stored in ctx. If ctx does not
// carry any fields l is returned unchanged
func With(ctx context.Context, l Logger) Logger {
	if ctx == nil {
		return l
	}

	fields, ok := ctx.Value(requestFieldsKey{}).(log.Fields)
	if !ok {
		return l
	}

	return l.WithFields(fields)
}
