package gotify

import (
	"errors"
	"net"
	"net/url"
	"sync"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/gotify/go-api-client/v2/client/message"
	"github.com/gotify/go-api-client/v2/models"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLease = &events.Lease{
	Network: "10.0.0.0/24",
	Address: net.IP{10, 0, 0, 5},
	HwAddr:  net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff},
}

func TestNotificationPrepare(t *testing.T) {
	emptyMatcher, err := matcher.NewMatcher("")
	require.NoError(t, err)

	n := notification{
		Matcher: emptyMatcher,
		srv:     "http://gotify.com",
		token:   "some-token",
	}

	// no message, no notification
	nt, nm, err := n.Prepare(events.EventLease, testLease)
	assert.NoError(t, err)
	assert.Empty(t, nt)
	assert.Empty(t, nm)

	// empty title should be replaced with the default one
	n.msg = "{address} {event}d"
	nt, nm, err = n.Prepare(events.EventLease, testLease)
	assert.NoError(t, err)
	assert.Equal(t, defaultTitle, nt)
	assert.Equal(t, "10.0.0.5 leased", nm)

	n.title = "{hwaddr}"
	nt, _, err = n.Prepare(events.EventLease, testLease)
	assert.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", nt)

	// should return empty strings if not matched
	alwaysFalse, err := matcher.NewMatcher("1 == 0")
	require.NoError(t, err)
	n.Matcher = alwaysFalse
	nt, nm, err = n.Prepare(events.EventLease, testLease)
	assert.NoError(t, err)
	assert.Empty(t, nm)
	assert.Empty(t, nt)

	errorMatcher, err := matcher.NewMatcher("'string'")
	require.NoError(t, err)
	n.Matcher = errorMatcher
	_, _, err = n.Prepare(events.EventLease, testLease)
	assert.Error(t, err)
}

func TestNotificationSend(t *testing.T) {
	n := notification{
		srv:   "http://gotify.com",
		token: "some-token",
	}

	called := false
	returnErr := errors.New("simulated error")
	notify = func(srv *url.URL, token string, msg *message.CreateMessageParams) error {
		called = true

		assert.Equal(t, "http://gotify.com", srv.String())
		assert.Equal(t, "some-token", token)
		assert.Equal(t, "title", msg.Body.Title)
		assert.Equal(t, "message", msg.Body.Message)
		assert.Equal(t, 5, msg.Body.Priority)

		return returnErr
	}

	assert.Equal(t, returnErr, n.Send("title", "message"))
	assert.True(t, called)

	n.srv = "://invalid"
	assert.Error(t, n.Send("title", "message"))
}

func TestGotifyHandle(t *testing.T) {
	emptyMatcher, _ := matcher.NewMatcher("")
	releaseOnly, _ := matcher.NewMatcher("event == 'release'")
	errorMatcher, _ := matcher.NewMatcher("'string'")

	var (
		mu       sync.Mutex
		messages []*models.MessageExternal
	)

	notify = func(srv *url.URL, token string, msg *message.CreateMessageParams) error {
		mu.Lock()
		defer mu.Unlock()

		messages = append(messages, msg.Body)
		return nil
	}

	g := &gotifyPlugin{
		notifications: []*notification{
			{Matcher: emptyMatcher, msg: "message1", title: "title1", srv: "http://gotify1.com", token: "some-token-1"},
			{Matcher: releaseOnly, msg: "message2", title: "title2", srv: "http://gotify2.com", token: "some-token-2"},
			{Matcher: errorMatcher, msg: "message3", title: "title3", srv: "http://gotify3.com", token: "some-token-3"},
			{Matcher: emptyMatcher, srv: "http://gotify4.com", token: "some-token-4"},
		},
		l: &log.Logger{Handler: discard.New()},
	}

	assert.NoError(t, g.handle(events.EventLease, testLease))
	g.wg.Wait()

	require.Len(t, messages, 1)
	assert.Equal(t, "message1", messages[0].Message)
	assert.Equal(t, "title1", messages[0].Title)

	messages = nil
	assert.NoError(t, g.handle(events.EventRelease, testLease))
	g.wg.Wait()
	assert.Len(t, messages, 2)
}
