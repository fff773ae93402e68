package engine

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var remoteIP = net.IP{10, 0, 0, 70}

func newForwardingTestBed(t *testing.T) *testBed {
	tb := newTestBed(t, "10.0.0.0/24", 64)
	require.NoError(t, tb.arena.SetOurs(0))
	require.NoError(t, tb.arena.SetClaimed(1, ownerIP))
	return tb
}

func forwardRequest(t *testing.T, tb *testBed, id byte, hw net.HardwareAddr) {
	out, err := tb.Request(clientCtx(), request(t, id, hw, remoteIP))
	require.NoError(t, err)
	require.Equal(t, Forwarded, out)
}

func TestForward(t *testing.T) {
	tb := newForwardingTestBed(t)

	b, _ := tb.arena.Block(1)
	require.False(t, b.Allocated())

	forwardRequest(t, tb, 1, hwAA)

	assert.Empty(t, tb.client.sent, "the client is answered once the owner replied")
	assert.True(t, b.Allocated(), "lease table is allocated on demand")
	assert.Equal(t, 1, tb.Pending())

	l := tb.lease(t, remoteIP)
	assert.Equal(t, block.Offered, l.State)
	assert.Equal(t, block.ToHWAddr(hwAA), l.HwAddr)
	assert.Equal(t, xid(1), l.XID)
	assert.Equal(t, tb.clock.Now().Add(DefaultForwardTimeout), l.Expires)

	sent := tb.peers.last(t)
	assert.True(t, ownerIP.Equal(sent.to))
	assert.Equal(t, peer.TypeRenewLease, sent.msg.Type)
	assert.Equal(t, uint32(0), sent.msg.LeaseSeconds)
	assert.Equal(t, xid(1), sent.msg.TransactionID)
	assert.True(t, remoteIP.Equal(sent.msg.Address))
	assert.Equal(t, hwAA, sent.msg.ClientHWAddr())

	// a retransmission is sent again but not cached twice
	tb.clock.Advance(2 * time.Second)
	forwardRequest(t, tb, 1, hwAA)
	assert.Len(t, tb.peers.sent, 2)
	assert.Equal(t, 1, tb.Pending())
	assert.Equal(t, tb.clock.Now().Add(DefaultForwardTimeout), l.Expires)

	// another client asking for the same address is rejected locally
	out, err := tb.Request(clientCtx(), request(t, 2, hwBB, remoteIP))
	require.NoError(t, err)
	assert.Equal(t, Nacked, out)
	assert.Len(t, tb.peers.sent, 2)
}

func TestForward_staleLocalCopy(t *testing.T) {
	tb := newForwardingTestBed(t)
	tb.hook.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	forwardRequest(t, tb, 1, hwAA)
	msg := tb.peers.last(t).msg
	require.NoError(t, tb.HandlePeerMessage(clientCtx(), ownerIP, msg.Reply(peer.TypeLeaseAck, 60)))

	// the owner may have freed the address already, the cached copy is
	// still valid for 70s
	tb.clock.Advance(65 * time.Second)
	l := tb.lease(t, remoteIP)
	require.Equal(t, block.Leased, l.State)
	require.Equal(t, block.ToHWAddr(hwAA), l.HwAddr)

	out, err := tb.Request(clientCtx(), request(t, 2, hwBB, remoteIP))
	require.NoError(t, err)
	assert.Equal(t, Forwarded, out)

	sent := tb.peers.last(t)
	assert.Len(t, tb.peers.sent, 2)
	assert.True(t, ownerIP.Equal(sent.to))
	assert.Equal(t, peer.TypeRenewLease, sent.msg.Type)
	assert.Equal(t, hwBB, sent.msg.ClientHWAddr())
	assert.Equal(t, xid(2), sent.msg.TransactionID)

	assert.Equal(t, block.Offered, l.State)
	assert.Equal(t, block.ToHWAddr(hwBB), l.HwAddr)
	assert.Len(t, tb.client.sent, 1, "only the first ACK was sent to a client")
	assert.Equal(t, 1, tb.Pending())
}

func TestForward_sendFailure(t *testing.T) {
	tb := newForwardingTestBed(t)
	tb.peers.err = errors.New("peer unreachable")

	out, err := tb.Request(clientCtx(), request(t, 1, hwAA, remoteIP))
	assert.Error(t, err)
	assert.Equal(t, Ignored, out)
	assert.Equal(t, 0, tb.Pending())
	assert.Equal(t, block.Lease{}, *tb.lease(t, remoteIP))
}

func TestForward_completeAck(t *testing.T) {
	tb := newForwardingTestBed(t)
	forwardRequest(t, tb, 1, hwAA)
	msg := tb.peers.last(t).msg

	tb.clock.Advance(time.Second)
	tb.hook.On("Notify", caddy.EventName("lease"), remoteIP.String(), hwAA.String(), tb.clock.Now().Add(30*time.Minute)).Once()

	err := tb.HandlePeerMessage(clientCtx(), ownerIP, msg.Reply(peer.TypeLeaseAck, 1800))
	require.NoError(t, err)

	require.Len(t, tb.client.sent, 1)
	ack := tb.client.sent[0]
	assert.Equal(t, clientAddr, ack.to)
	assert.Equal(t, dhcpv4.MessageTypeAck, ack.resp.MessageType())
	assert.Equal(t, remoteIP.String(), ack.resp.YourIPAddr.String())
	assert.Equal(t, 30*time.Minute, ack.resp.IPAddressLeaseTime(0))
	assert.Equal(t, xid(1), ack.resp.TransactionID)

	l := tb.lease(t, remoteIP)
	assert.Equal(t, block.Leased, l.State)
	assert.Equal(t, tb.clock.Now().Add(30*time.Minute+10*time.Second), l.Expires)
	assert.Equal(t, 0, tb.Pending())
	tb.hook.AssertExpectations(t)

	// a duplicate answer is dropped
	require.NoError(t, tb.HandlePeerMessage(clientCtx(), ownerIP, msg.Reply(peer.TypeLeaseAck, 1800)))
	assert.Len(t, tb.client.sent, 1)
}

func TestForward_completeNak(t *testing.T) {
	tb := newForwardingTestBed(t)
	forwardRequest(t, tb, 1, hwAA)
	msg := tb.peers.last(t).msg

	require.NoError(t, tb.HandlePeerMessage(clientCtx(), ownerIP, msg.Reply(peer.TypeLeaseNak, 0)))

	nak := tb.client.last(t)
	assert.Equal(t, dhcpv4.MessageTypeNak, nak.MessageType())
	assert.Equal(t, block.Free, tb.lease(t, remoteIP).State)
	assert.Equal(t, 0, tb.Pending())
}

func TestForward_cacheMiss(t *testing.T) {
	tb := newForwardingTestBed(t)
	forwardRequest(t, tb, 1, hwAA)
	msg := tb.peers.last(t).msg

	other := msg.Reply(peer.TypeLeaseAck, 60)
	other.TransactionID = xid(9)
	require.NoError(t, tb.HandlePeerMessage(clientCtx(), ownerIP, other))

	wrongAddr := msg.Reply(peer.TypeLeaseAck, 60)
	wrongAddr.Address = net.IP{10, 0, 0, 71}
	require.NoError(t, tb.HandlePeerMessage(clientCtx(), ownerIP, wrongAddr))

	assert.Empty(t, tb.client.sent)
	assert.Equal(t, 1, tb.Pending())
}

func TestForward_reaper(t *testing.T) {
	tb := newForwardingTestBed(t)
	forwardRequest(t, tb, 1, hwAA)

	out, err := tb.Request(clientCtx(), request(t, 2, hwBB, net.IP{10, 0, 0, 71}))
	require.NoError(t, err)
	require.Equal(t, Forwarded, out)

	tb.clock.Advance(DefaultForwardTimeout - time.Second)
	tb.Tick()
	assert.Equal(t, 2, tb.Pending())

	tb.clock.Advance(2 * time.Second)
	tb.Tick()
	assert.Equal(t, 0, tb.Pending())
	assert.Equal(t, block.Free, tb.lease(t, remoteIP).State)

	// a late answer is dropped
	msg := tb.peers.sent[0].msg
	require.NoError(t, tb.HandlePeerMessage(clientCtx(), ownerIP, msg.Reply(peer.TypeLeaseAck, 60)))
	assert.Empty(t, tb.client.sent)
}

func TestPendingCache_capacity(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	p := newPendingCache(2, clock.Now)

	for i := byte(0); i < 3; i++ {
		require.NoError(t, p.put(pendingKey{xid: xid(i)}, &pendingForward{Deadline: clock.Now().Add(time.Second)}))
	}

	assert.Equal(t, 2, p.len())
	_, ok := p.get(pendingKey{xid: xid(0)})
	assert.False(t, ok, "least recently used entry is evicted")

	assert.Error(t, p.put(pendingKey{}, &pendingForward{Deadline: clock.Now()}))

	entry, ok := p.take(pendingKey{xid: xid(2)})
	assert.True(t, ok)
	assert.NotNil(t, entry)
	assert.Equal(t, 1, p.len())
}

func TestHandlePeerMessage_renew(t *testing.T) {
	tb := newTestBed(t, "10.0.0.0/24", 64)
	require.NoError(t, tb.arena.SetOurs(1))
	tb.hook.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	origin := net.IP{192, 168, 1, 3}

	// the owner grants a free address
	msg := peer.NewRenewLease(request(t, 1, hwAA, remoteIP), remoteIP)
	require.NoError(t, tb.HandlePeerMessage(clientCtx(), origin, msg))

	sent := tb.peers.last(t)
	assert.True(t, origin.Equal(sent.to))
	assert.Equal(t, peer.TypeLeaseAck, sent.msg.Type)
	assert.Equal(t, uint32(3600), sent.msg.LeaseSeconds)
	assert.Equal(t, msg.TransactionID, sent.msg.TransactionID)

	l := tb.lease(t, remoteIP)
	assert.Equal(t, block.Leased, l.State)
	assert.Equal(t, tb.clock.Now().Add(3610*time.Second), l.Expires)

	// another client is rejected
	msg = peer.NewRenewLease(request(t, 2, hwBB, remoteIP), remoteIP)
	require.NoError(t, tb.HandlePeerMessage(clientCtx(), origin, msg))
	assert.Equal(t, peer.TypeLeaseNak, tb.peers.last(t).msg.Type)
	assert.Equal(t, block.ToHWAddr(hwAA), l.HwAddr)

	// addresses we do not own are rejected
	other := net.IP{10, 0, 0, 1}
	msg = peer.NewRenewLease(request(t, 3, hwAA, other), other)
	require.NoError(t, tb.HandlePeerMessage(clientCtx(), origin, msg))
	assert.Equal(t, peer.TypeLeaseNak, tb.peers.last(t).msg.Type)

	assert.Empty(t, tb.client.sent)
	tb.hook.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
