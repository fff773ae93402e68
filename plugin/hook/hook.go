package hook

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/matcher"
	"github.com/nextdhcp/ddhcp/core/replacer"
)

// DefaultTimeout is the time a hook script may run before it is killed
const DefaultTimeout = 10 * time.Second

// runFunc executes a command and returns its combined output
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// script runs an external program for every lease event. The program is
// called as
//
//	<script> [args...] lease|release <address> <hwaddr>
//
// Arguments may contain placeholders
type script struct {
	*matcher.Matcher

	cmd     string
	args    []string
	timeout time.Duration

	run runFunc
	l   log.Logger
	wg  sync.WaitGroup
}

// handle starts the script for a matching event. It does not wait for
// the script to finish
func (s *script) handle(event caddy.EventName, l *events.Lease) error {
	match, err := s.Match(event, l)
	if err != nil {
		return err
	}

	if !match {
		return nil
	}

	rep := replacer.NewReplacer(event, l)

	args := make([]string, 0, len(s.args)+3)
	for _, a := range s.args {
		args = append(args, rep.Replace(a))
	}
	args = append(args, string(event), rep.Get("address"), rep.Get("hwaddr"))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		out, err := s.run(ctx, s.cmd, args...)
		if err != nil {
			s.l.Warnf("hook %s %s failed: %s: %s", s.cmd, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
			return
		}

		s.l.Debugf("hook %s %s finished", s.cmd, strings.Join(args, " "))
	}()

	return nil
}
