package gotify

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/caddyserver/caddy"
	"github.com/gotify/go-api-client/v2/auth"
	"github.com/gotify/go-api-client/v2/client/message"
	"github.com/gotify/go-api-client/v2/gotify"
	"github.com/gotify/go-api-client/v2/models"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/matcher"
	"github.com/nextdhcp/ddhcp/core/replacer"
)

const defaultTitle = "DDHCP"

type (
	// gotifyPlugin matches lease events against a set of conditions
	// and sends notifications
	gotifyPlugin struct {
		notifications []*notification
		l             log.Logger
		wg            sync.WaitGroup
	}

	// notification combines the matcher (condition) and the message
	// templates for a gotify notification
	notification struct {
		*matcher.Matcher
		msg   string
		title string
		srv   string
		token string
	}
)

// notify creates the message on the gotify server
var notify = func(srv *url.URL, token string, params *message.CreateMessageParams) error {
	cli := gotify.NewClient(srv, &http.Client{})
	_, err := cli.Message.CreateMessage(params, auth.TokenAuth(token))
	return err
}

// Prepare checks if we should send a notification for the given event and returns
// the title and message body. An empty message body indicates that no notification
// should be sent
func (n *notification) Prepare(event caddy.EventName, l *events.Lease) (string, string, error) {
	if n.msg == "" {
		return "", "", nil
	}

	matched, err := n.Match(event, l)
	if err != nil {
		return "", "", err
	}

	if !matched {
		return "", "", nil
	}

	rep := replacer.NewReplacer(event, l)

	title := rep.Replace(n.title)
	if title == "" {
		title = defaultTitle
	}

	return title, rep.Replace(n.msg), nil
}

// Send sends a notification with title and msg to the gotify server
func (n *notification) Send(title, msg string) error {
	gotifyURL, err := url.Parse(n.srv)
	if err != nil {
		return err
	}

	params := message.NewCreateMessageParams()
	params.Body = &models.MessageExternal{
		Title:    title,
		Message:  msg,
		Priority: 5,
	}

	return notify(gotifyURL, n.token, params)
}

// addNotification adds a new notification to the gotify plugin
func (g *gotifyPlugin) addNotification(n *notification) {
	g.notifications = append(g.notifications, n)
}

// findLastCreds returns the last credentials used for a notification
func (g *gotifyPlugin) findLastCreds() (string, string, bool) {
	if len(g.notifications) == 0 {
		return "", "", false
	}

	last := g.notifications[len(g.notifications)-1]
	return last.srv, last.token, true
}

// handle sends all notifications matching the event in the background
func (g *gotifyPlugin) handle(event caddy.EventName, l *events.Lease) error {
	for _, n := range g.notifications {
		title, body, err := n.Prepare(event, l)
		if err != nil {
			g.l.Warnf("failed to prepare notification: %s", err.Error())
			continue
		}

		if body == "" {
			continue
		}

		g.wg.Add(1)
		go func(n *notification) {
			defer g.wg.Done()

			g.l.Debugf("sending notification: %s\n%s", title, body)

			if err := n.Send(title, body); err != nil {
				g.l.Warnf("failed to send notification: %s", err.Error())
			} else {
				g.l.Debugf("notification sent via %s: %s\n%s", n.srv, title, body)
			}
		}(n)
	}

	return nil
}
