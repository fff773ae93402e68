package log

import (
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/caddyserver/caddy"
	"github.com/mattn/go-isatty"
)

func init() {
	caddy.RegisterPlugin("log", caddy.Plugin{
		ServerType: "dhcpv4",
		Action:     setupLogging,
	})
}

type logConfig struct {
	level  log.Level
	format string
	output string
}

func setupLogging(c *caddy.Controller) error {
	cfg, err := parseLog(c)
	if err != nil {
		return err
	}

	out, err := openOutput(cfg.output)
	if err != nil {
		return c.Err(err.Error())
	}

	if f, ok := out.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		c.OnShutdown(f.Close)
	}

	handler, err := newHandler(cfg.format, out)
	if err != nil {
		return c.Err(err.Error())
	}

	log.SetLevel(cfg.level)
	if handler != nil {
		log.SetHandler(handler)
	}

	return nil
}

// parseLog parses
//
//	log <level> {
//	    format auto|cli|json|text
//	    output stdout|stderr|<file>
//	}
func parseLog(c *caddy.Controller) (*logConfig, error) {
	c.Next()

	if !c.NextArg() {
		return nil, c.ArgErr()
	}

	lvl, err := log.ParseLevel(c.Val())
	if err != nil {
		return nil, c.SyntaxErr(err.Error())
	}

	if c.NextArg() {
		return nil, c.ArgErr()
	}

	cfg := &logConfig{
		level:  lvl,
		format: "auto",
		output: "stdout",
	}

	for c.NextBlock() {
		switch c.Val() {
		case "format":
			if !c.NextArg() {
				return nil, c.ArgErr()
			}
			cfg.format = c.Val()

		case "output":
			if !c.NextArg() {
				return nil, c.ArgErr()
			}
			cfg.output = c.Val()

		default:
			return nil, c.SyntaxErr("format or output")
		}

		if c.NextArg() {
			return nil, c.ArgErr()
		}
	}

	if c.Next() {
		return nil, c.SyntaxErr("invalid token or multiple \"log\" configurations")
	}

	return cfg, nil
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	return os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// newHandler returns the log handler for format. For "auto" the cli
// handler is used if out is a terminal, otherwise the current handler
// is kept and nil is returned
func newHandler(format string, out io.Writer) (log.Handler, error) {
	switch format {
	case "cli":
		return cli.New(out), nil
	case "json":
		return json.New(out), nil
	case "text":
		return text.New(out), nil
	case "auto":
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return cli.New(out), nil
		}
		if out != os.Stdout {
			return text.New(out), nil
		}
		return nil, nil
	}

	return nil, fmt.Errorf("unknown log format %q", format)
}
