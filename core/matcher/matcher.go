// Package matcher provides a simple "rule" language that may be used
// inside hook plugin directives to filter lease events. The matcher
// library is based on github.com/Knetic/govaluate
package matcher

import (
	"fmt"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/events"
)

type (
	// Matcher is a lease event matcher
	Matcher struct {
		// expr holds the pre-compiled expression
		expr *govaluate.EvaluableExpression
	}

	// ExprFunc can be used expose functions to matcher expressions
	ExprFunc func(args ...interface{}) (interface{}, error)
)

// SetupMatcher parses the if and if_op conditions of the current
// dispenser block and returns a lease event matcher
func SetupMatcher(c *caddy.Controller, fns ...map[string]ExprFunc) (*Matcher, error) {
	exprStr, err := ParseConditions(c)
	if err != nil {
		return nil, err
	}

	return NewMatcher(exprStr, fns...)
}

// SetupMatcherRemainingArgs returns a matcher for the remaining arguments
// on the current line
func SetupMatcherRemainingArgs(c *caddy.Controller, fns ...map[string]ExprFunc) (*Matcher, error) {
	return NewMatcher(strings.Join(c.RemainingArgs(), " "), fns...)
}

// NewMatcher compiles expr. An empty expression matches every event
func NewMatcher(expr string, fns ...map[string]ExprFunc) (*Matcher, error) {
	if strings.TrimSpace(expr) == "" {
		return &Matcher{}, nil
	}

	functions := make(map[string]govaluate.ExpressionFunction)
	for _, m := range fns {
		for name, fn := range m {
			functions[name] = govaluate.ExpressionFunction(fn)
		}
	}

	compiled, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return nil, err
	}

	return &Matcher{expr: compiled}, nil
}

// EmptyCondition returns true if the matcher matches every event
func (m *Matcher) EmptyCondition() bool {
	return m.expr == nil
}

// Match evaluates the expression stored in the matcher against the given
// lease event. The parameters event, address, hwaddr, network and expires
// (unix seconds) are available to expressions
func (m *Matcher) Match(event caddy.EventName, l *events.Lease) (bool, error) {
	if m.expr == nil {
		return true, nil
	}

	params := map[string]interface{}{
		"event":   string(event),
		"address": "",
		"hwaddr":  "",
		"network": "",
		"expires": float64(0),
	}

	if l != nil {
		if l.Address != nil {
			params["address"] = l.Address.String()
		}
		if l.HwAddr != nil {
			params["hwaddr"] = l.HwAddr.String()
		}
		params["network"] = l.Network
		if !l.Expires.IsZero() {
			params["expires"] = float64(l.Expires.Unix())
		}
	}

	result, err := m.expr.Evaluate(params)
	if err != nil {
		return false, err
	}

	if b, ok := result.(bool); ok {
		return b, nil
	}

	return false, fmt.Errorf("expression did not evaluate to a boolean. instead, got: %v", result)
}
