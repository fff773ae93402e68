package dhcpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/caddyserver/caddy"
	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/nextdhcp/ddhcp/core/block"
	"github.com/nextdhcp/ddhcp/core/engine"
	"github.com/nextdhcp/ddhcp/core/events"
	"github.com/nextdhcp/ddhcp/core/lease/storage"
	"github.com/nextdhcp/ddhcp/core/log"
	"github.com/nextdhcp/ddhcp/core/peer"
	"github.com/nextdhcp/ddhcp/core/socket"
)

// ErrNoPeerTransport is returned when a relay message should be sent
// before the peer transport has been opened
var ErrNoPeerTransport = errors.New("peer transport not available")

// Server serves DHCP clients of a single network. Client requests, relay
// messages of peers and timeout sweeps are funneled through one lock so
// the engine only ever sees a single caller
type Server struct {
	cfg    *Config
	arena  *block.Arena
	engine *engine.Engine
	l      log.Logger

	mu sync.Mutex // serializes all access to engine and arena

	conn  net.PacketConn
	ifi   *net.Interface
	peers *peer.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer returns a new DHCPv4 server that compiles all plugins in to it
func NewServer(cfg *Config) (*Server, error) {
	arena, err := cfg.NewArena()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:    cfg,
		arena:  arena,
		l:      cfg.logger,
		ctx:    ctx,
		cancel: cancel,
	}

	s.engine = engine.New(cfg.EngineConfig(), arena, s, s, &events.Emitter{Network: cfg.Network.String()})
	buildMiddlewareChain(cfg, s.engine)

	return s, nil
}

// Serve is a NO-OP as TCP is not supported by dhcpserver. It
// implements the caddy.TCPServer interface
func (s *Server) Serve(l net.Listener) error {
	return nil
}

// Listen does nothing as TCP is not supported. It implements the
// caddy.TCPServer interface
func (s *Server) Listen() (net.Listener, error) {
	return nil, nil
}

// ListenPacket starts listening for DHCP request messages via UDP/Raw sockets
// and opens the peer transport. This implements the caddy.UDPServer interface
func (s *Server) ListenPacket() (net.PacketConn, error) {
	var ifi *net.Interface
	if s.cfg.Interface.Name != "" {
		ifi = &s.cfg.Interface
	}

	conn, err := socket.ListenDHCP(s.l, s.cfg.IP, ifi)
	if err != nil {
		return nil, err
	}

	peers, err := peer.Listen(s.cfg.PeerAddr, s.l.WithField("component", "peer"))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open peer transport: %w", err)
	}

	s.mu.Lock()
	s.ifi = conn.Interface()
	s.peers = peers
	s.mu.Unlock()

	return conn, nil
}

// ServePacket starts the server with an existing PacketConn. It blocks until
// the server stops. This implements the caddy.UDPServer interface
func (s *Server) ServePacket(c net.PacketConn) error {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()

	s.startBackground()

	for {
		payload := make([]byte, 4096)
		n, addr, err := c.ReadFrom(payload)

		if n > 0 {
			s.wg.Add(1)
			go s.serveAndLogDHCPv4(payload[:n], addr)
		}

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			if s.ctx.Err() != nil {
				return nil
			}

			return err
		}
	}
}

// Stop stops the peer transport and the timeout sweeper. The DHCP socket is
// closed by caddy. It implements caddy.Stopper
func (s *Server) Stop() error {
	s.cancel()

	var err error
	if s.peers != nil {
		err = s.peers.Close()
	}

	s.wg.Wait()
	s.sync(context.Background())

	return err
}

// OnStartupComplete is called when all serves of the same instance have
// been started. It implements the caddy.AfterStartup interface
func (s *Server) OnStartupComplete() {
	info := getStartupInfo([]*Config{s.cfg})
	if info != "" && !caddy.Quiet {
		// Print not Println because info contains a trailing new line
		fmt.Print(info)
	}
}

func (s *Server) startBackground() {
	if s.peers != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.peers.Serve(s.ctx, s.handlePeerMessage); err != nil && s.ctx.Err() == nil {
				s.l.Errorf("peer transport failed: %s", err)
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweepLoop()
	}()
}

func (s *Server) sweepLoop() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick runs a timeout sweep and saves the lease tables of owned blocks
func (s *Server) tick() {
	s.mu.Lock()
	free := s.engine.Tick()
	s.mu.Unlock()

	if free == 0 {
		s.l.Warnf("no free leases left in owned blocks")
	}

	s.sync(s.ctx)
}

func (s *Server) sync(ctx context.Context) {
	if s.cfg.Database == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.mu.Lock()
	snaps := storage.TakeSnapshots(s.arena.Owned())
	s.mu.Unlock()

	if err := s.cfg.Database.Sync(ctx, snaps); err != nil {
		s.l.Errorf("failed to save leases: %s", err)
	}
}

func (s *Server) handlePeerMessage(ctx context.Context, from net.IP, msg *peer.Message) {
	defer s.recoverPanic(from.String())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.HandlePeerMessage(ctx, from, msg); err != nil {
		s.l.Warnf("failed to handle %s from %s: %s", msg, from, err)
	}
}

func (s *Server) recoverPanic(from string) {
	if x := recover(); x != nil {
		s.l.Errorf("Caught panic while serving a message from %s", from)
		s.l.Errorf("\t%v", x)
		s.l.Errorf("%s", debug.Stack())
	}
}

func (s *Server) serveAndLogDHCPv4(payload []byte, addr net.Addr) {
	defer s.wg.Done()
	// In any case we must not panic while serving requests
	defer s.recoverPanic(addr.String())

	if err := s.serveDHCPv4(payload, addr); err != nil {
		s.l.Warnf("failed to serve request from %s: %s", addr.String(), err.Error())
	}
}

func (s *Server) serveDHCPv4(payload []byte, addr net.Addr) error {
	msg, err := dhcpv4.FromBytes(payload)
	if err != nil {
		return fmt.Errorf("%w: %s", engine.ErrMalformed, err)
	}

	ctx := log.AddRequestFields(s.ctx, msg)
	ctx = engine.WithClient(ctx, addr)
	l := log.With(ctx, s.l)

	l.Debugf("-> %s from %s", msg.MessageType(), addr)

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.cfg.chain.ServeDHCP(ctx, msg)
	if err != nil {
		return err
	}

	if out == engine.NeedBlocks {
		l.Warnf("cannot offer an address, all owned blocks are exhausted")
	} else {
		l.Debugf("%s handled: %s", msg.MessageType(), out)
	}

	return nil
}

// SendToClient sends resp to the client at to. It implements
// engine.ClientSender
func (s *Server) SendToClient(ctx context.Context, resp *dhcpv4.DHCPv4, to net.Addr) error {
	if s.conn == nil {
		return net.ErrClosed
	}

	to = replyAddr(to, s.cfg.IP, s.ifi, resp)

	log.With(ctx, s.l).Debugf("<- %s to %s", resp.MessageType(), to)

	_, err := s.conn.WriteTo(resp.ToBytes(), to)
	return err
}

// SendToPeer sends msg to the peer at to. It implements engine.PeerSender
func (s *Server) SendToPeer(ctx context.Context, msg *peer.Message, to net.IP) error {
	if s.peers == nil {
		return ErrNoPeerTransport
	}

	return s.peers.SendToPeer(ctx, msg, to)
}

// replyAddr selects where a reply is sent to. Replies to relayed requests
// are sent to the relay agent. Replies to clients seen on the AF_PACKET
// socket are sent as directed unicasts from the interface address, NAKs
// and replies requesting a broadcast are broadcasted
func replyAddr(addr net.Addr, serverIP net.IP, ifi *net.Interface, resp *dhcpv4.DHCPv4) net.Addr {
	if resp.GatewayIPAddr != nil && !resp.GatewayIPAddr.IsUnspecified() {
		return &net.UDPAddr{IP: resp.GatewayIPAddr, Port: dhcpv4.ServerPort}
	}

	a, ok := addr.(*socket.Addr)
	if !ok {
		return addr
	}

	res := *a
	if res.Local.IP == nil || res.Local.IP.IsUnspecified() || res.Local.IP.Equal(net.IPv4bcast) {
		res.Local.IP = serverIP
		if ifi != nil {
			res.Local.MAC = ifi.HardwareAddr
		}
	}

	switch {
	case resp.MessageType() == dhcpv4.MessageTypeNak || resp.IsBroadcast():
		res.IP = net.IPv4bcast
		res.MAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

	case resp.ClientIPAddr != nil && !resp.ClientIPAddr.IsUnspecified():
		res.IP = resp.ClientIPAddr

	case res.IP == nil || res.IP.IsUnspecified():
		if resp.YourIPAddr != nil && !resp.YourIPAddr.IsUnspecified() {
			res.IP = resp.YourIPAddr
		}
	}

	return &res
}

// Compile-Time check
var (
	_ caddy.Server        = &Server{}
	_ caddy.Stopper       = &Server{}
	_ engine.ClientSender = &Server{}
	_ engine.PeerSender   = &Server{}
)
