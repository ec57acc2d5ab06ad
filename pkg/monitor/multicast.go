package monitor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/High-Performance-IO/capiocl-go/internal/metrics"
	"github.com/High-Performance-IO/capiocl-go/internal/tracing"
	"github.com/High-Performance-IO/capiocl-go/pkg/cerrors"
)

// Wire protocol constants, per spec.md §4.3.2 / §6.
const (
	cmdCommit  byte = '!'
	cmdRequest byte = '?'

	// pathMax bounds a single datagram's path payload; total datagram
	// length must stay <= pathMax + 2 (command byte, space, path).
	pathMax = 4096

	// defaultGroup and defaultPort are the spec's documented defaults.
	defaultGroup = "224.224.224.1"
	defaultPort  = 12345

	// requestWaitDelay is the bounded, non-cancelling wait IsCommitted
	// performs after issuing a "?" request datagram (spec.md §4.3.2).
	requestWaitDelay = 300 * time.Millisecond
)

// MulticastConfig configures a MulticastBackend.
type MulticastConfig struct {
	// Group is the IPv4 multicast group address, e.g. "224.224.224.1".
	Group string
	// Port is the UDP port used for both send and receive.
	Port int
	// Strict, when true, reports an unrecognized command byte as a
	// MonitorFailure error on the backend's logger; when false (lenient,
	// the default) unrecognized datagrams are logged at Debug level and
	// ignored. In both modes the datagram is dropped and the listener
	// keeps running.
	Strict bool
}

// DefaultMulticastConfig returns the spec's documented default group
// and port, lenient mode.
func DefaultMulticastConfig() MulticastConfig {
	return MulticastConfig{Group: defaultGroup, Port: defaultPort}
}

// MulticastBackend implements Backend over UDP multicast: a single
// datagram per event, late-join recovery via request/reply. State is a
// mutex-protected set of locally-known-committed paths plus a
// background listener goroutine (spec.md §4.3.2).
type MulticastBackend struct {
	cfg    MulticastConfig
	logger *logrus.Logger
	tracer *tracing.Manager

	sendConn *net.UDPConn
	listener *ipv4.PacketConn
	groupUDP *net.UDPAddr

	mu        sync.Mutex
	committed map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMulticastBackend opens the sender and listener sockets and starts
// the background listener goroutine. It fails with a MonitorFailure if
// socket creation, binding, or group-join fails (spec.md §7).
func NewMulticastBackend(cfg MulticastConfig, logger *logrus.Logger) (*MulticastBackend, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Group == "" {
		cfg.Group = defaultGroup
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	groupUDP, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.Group, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, cerrors.MonitorFailureWrap("monitor", "NewMulticastBackend", "invalid multicast group/port", err)
	}

	// Sender: an unbound UDP socket whose destination is the group,
	// per spec.md §6.
	sendConn, err := net.DialUDP("udp4", nil, groupUDP)
	if err != nil {
		return nil, cerrors.MonitorFailureWrap("monitor", "NewMulticastBackend", "failed to open sender socket", err)
	}

	// Listener: SO_REUSEADDR + SO_REUSEPORT via a Control callback,
	// then join the group and enable loopback so senders hear their
	// own advertisements.
	lc := net.ListenConfig{Control: setReuseAddrAndPort}
	pconn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		sendConn.Close()
		return nil, cerrors.MonitorFailureWrap("monitor", "NewMulticastBackend", "failed to bind listener socket", err)
	}

	listener := ipv4.NewPacketConn(pconn)
	if err := listener.JoinGroup(nil, &net.UDPAddr{IP: groupUDP.IP}); err != nil {
		pconn.Close()
		sendConn.Close()
		return nil, cerrors.MonitorFailureWrap("monitor", "NewMulticastBackend", "failed to join multicast group", err)
	}
	if err := listener.SetMulticastLoopback(true); err != nil {
		logger.WithFields(logrus.Fields{"error": err}).Warn("failed to enable multicast loopback")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &MulticastBackend{
		cfg:       cfg,
		logger:    logger,
		tracer:    tracing.NewManager("capiocl.monitor.multicast"),
		sendConn:  sendConn,
		listener:  listener,
		groupUDP:  groupUDP,
		committed: make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	b.wg.Add(1)
	go b.listen()

	return b, nil
}

// listen is the background receive loop. It blocks in ReadFrom until a
// datagram arrives or the listener socket is closed by Close().
func (b *MulticastBackend) listen() {
	defer b.wg.Done()

	buf := make([]byte, pathMax+2)
	for {
		n, _, _, err := b.listener.ReadFrom(buf)
		if err != nil {
			if b.ctx.Err() != nil {
				return // Close() tore the socket down; exit quietly.
			}
			b.logger.WithFields(logrus.Fields{"error": err}).Warn("multicast receive failed, continuing")
			continue
		}
		_, end := b.tracer.Start(context.Background(), "monitor.multicast.receive")
		b.handleDatagram(buf[:n])
		end()
	}
}

func (b *MulticastBackend) handleDatagram(datagram []byte) {
	if len(datagram) < 3 || datagram[1] != ' ' {
		b.logger.WithFields(logrus.Fields{"len": len(datagram)}).Warn("dropping malformed multicast datagram")
		return
	}
	cmd := datagram[0]
	path := strings.TrimRight(string(datagram[2:]), "\x00")

	switch cmd {
	case cmdCommit:
		b.mu.Lock()
		b.committed[path] = struct{}{}
		b.mu.Unlock()
	case cmdRequest:
		b.mu.Lock()
		_, known := b.committed[path]
		b.mu.Unlock()
		if known {
			b.send(cmdCommit, path)
		}
	default:
		if b.cfg.Strict {
			err := cerrors.MonitorFailure("monitor", "handleDatagram", fmt.Sprintf("unknown multicast command byte %q", cmd))
			b.logger.WithFields(logrus.Fields{"cmd": cmd}).WithError(err).Error("unknown multicast command byte in strict mode")
			return
		}
		b.logger.WithFields(logrus.Fields{"cmd": cmd}).Debug("ignoring unknown multicast command byte")
	}
}

func (b *MulticastBackend) send(cmd byte, path string) {
	datagram := append([]byte{cmd, ' '}, path...)
	if len(datagram) > pathMax+2 {
		b.logger.WithFields(logrus.Fields{"path": path}).Warn("path too long for a single multicast datagram, dropping")
		return
	}
	if _, err := b.sendConn.Write(datagram); err != nil {
		b.logger.WithFields(logrus.Fields{"error": err}).Warn("multicast send failed")
	}
}

// IsCommitted checks the local set first; if absent, it emits a "?"
// request datagram, waits a bounded delay for late-join recovery, then
// re-checks the local set (spec.md §4.3.2).
func (b *MulticastBackend) IsCommitted(path string) bool {
	_, end := b.tracer.Start(context.Background(), "monitor.multicast.IsCommitted")
	defer end()

	if b.localHas(path) {
		metrics.MonitorCommitChecked("multicast", true)
		return true
	}

	b.send(cmdRequest, path)
	time.Sleep(requestWaitDelay)

	hit := b.localHas(path)
	metrics.MonitorCommitChecked("multicast", hit)
	return hit
}

func (b *MulticastBackend) localHas(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.committed[path]
	return ok
}

// SetCommitted emits a "!" advertisement, then inserts path into the
// local set at-most-once (invariant I6: monotone within a process).
func (b *MulticastBackend) SetCommitted(path string) {
	b.send(cmdCommit, path)

	b.mu.Lock()
	b.committed[path] = struct{}{}
	b.mu.Unlock()

	metrics.MonitorCommitSet()
}

// Close cancels the listener, closes both sockets to unblock any
// in-flight ReadFrom, and joins the listener goroutine before
// returning (spec.md §5's destructor-must-join-the-listener rule).
func (b *MulticastBackend) Close() error {
	b.cancel()
	b.listener.Close()
	b.sendConn.Close()
	b.wg.Wait()
	return nil
}

// setReuseAddrAndPort is a net.ListenConfig.Control callback enabling
// SO_REUSEADDR and SO_REUSEPORT on the listener socket, per spec.md §6.
func setReuseAddrAndPort(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			sockErr = err
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
