// Package replacer expands {placeholders} in templates configured for
// lease event hooks.
package replacer

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/events"
)

type (
	// Replacer is capable of replacing variables in a template string
	Replacer interface {
		// Replace replaces all variables in string and returns the result
		Replace(string) string

		// Set adds a custom replacement value
		Set(key string, value Value)

		// Get returns the replacement value for key
		Get(key string) string
	}

	// Value is a getter for string represenations of custom lease event
	// fields
	Value interface {
		Get(event caddy.EventName, l *events.Lease) string
	}

	// ValueGetter implements the Value interface
	ValueGetter func(event caddy.EventName, l *events.Lease) string

	// StringValue is a utility method to use string constants for
	// the Value interface
	StringValue string

	replacer struct {
		event              caddy.EventName
		lease              *events.Lease
		customReplacements map[string]Value
	}
)

// Get implements the Value interface and calls g itself
func (g ValueGetter) Get(event caddy.EventName, l *events.Lease) string {
	return g(event, l)
}

// Get implements the Value interface and returns s itself
func (s StringValue) Get(caddy.EventName, *events.Lease) string {
	return string(s)
}

// NewReplacer returns a new replacer for the given lease event
func NewReplacer(event caddy.EventName, l *events.Lease) Replacer {
	if l == nil {
		l = &events.Lease{}
	}

	return &replacer{
		event:              event,
		lease:              l,
		customReplacements: make(map[string]Value),
	}
}

func (r *replacer) Set(key string, val Value) {
	r.customReplacements[key] = val
}

func ipStr(ip net.IP) string {
	if len(ip) == 0 {
		return ""
	}

	return ip.String()
}

func (r *replacer) Get(key string) string {
	if val, ok := r.customReplacements[key]; ok {
		return val.Get(r.event, r.lease)
	}

	switch key {
	case "event":
		return string(r.event)

	case "address":
		return ipStr(r.lease.Address)

	case "hwaddr":
		if len(r.lease.HwAddr) == 0 {
			return ""
		}
		return r.lease.HwAddr.String()

	case "network":
		return r.lease.Network

	case "expires":
		if r.lease.Expires.IsZero() {
			return ""
		}
		return r.lease.Expires.Format(time.RFC3339)

	case "expires_unix":
		if r.lease.Expires.IsZero() {
			return "0"
		}
		return strconv.FormatInt(r.lease.Expires.Unix(), 10)
	}

	return ""
}

// Replace replaces all unescaped {key} placeholders in s. Braces may be
// escaped with a backslash
func (r *replacer) Replace(s string) string {
	if !strings.ContainsAny(s, "{}") {
		return s
	}

	var result strings.Builder

	for {
		start := unescapedIndex(s, 0, '{')
		if start == -1 {
			break
		}

		end := unescapedIndex(s, start, '}')
		if end == -1 {
			break
		}

		placeholder := unescapeBraces(s[start+1 : end])

		result.WriteString(unescapeBraces(s[:start]))
		result.WriteString(r.Get(placeholder))

		s = s[end+1:]
	}

	result.WriteString(unescapeBraces(s))
	return result.String()
}

// unescapedIndex returns the index of the first c in s at or after
// offset that is not preceded by a backslash
func unescapedIndex(s string, offset int, c byte) int {
	for i := offset; i < len(s); i++ {
		if s[i] == c && (i == 0 || s[i-1] != '\\') {
			return i
		}
	}

	return -1
}

func unescapeBraces(s string) string {
	s = strings.ReplaceAll(s, "\\{", "{")
	s = strings.ReplaceAll(s, "\\}", "}")
	return s
}
