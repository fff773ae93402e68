package matcher

import (
	"strings"

	"github.com/caddyserver/caddy"
)

// ParseConditions parses the current dispenser block for if and if_op conditions
// and returns them as a single, concatenated expression string usable for
// govaluate.NewEvaluableExpression() and similar. The dispenser of c is
// not advanced
func ParseConditions(c *caddy.Controller) (string, error) {
	var conds []string
	var op = "&&"
	var disp = c.Dispenser

	for disp.NextBlock() {
		switch disp.Val() {
		case "if":
			if cond := strings.Join(disp.RemainingArgs(), " "); cond != "" {
				conds = append(conds, "("+cond+")")
			}

		case "if_op":
			if !disp.NextArg() {
				return "", disp.ArgErr()
			}

			switch disp.Val() {
			case "and", "&&":
				op = "&&"
			case "or", "||":
				op = "||"
			default:
				return "", disp.Errf("unknown if_op %q", disp.Val())
			}
		}
	}

	return strings.Join(conds, " "+op+" "), nil
}
