package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tturner/cipadapter/internal/app"
	"github.com/tturner/cipadapter/internal/cip/encap"
	"github.com/tturner/cipadapter/internal/config"
	"github.com/tturner/cipadapter/internal/connmgr"
	"github.com/tturner/cipadapter/internal/diag"
	cipadaptererrors "github.com/tturner/cipadapter/internal/errors"
	"github.com/tturner/cipadapter/internal/logging"
	"github.com/tturner/cipadapter/internal/stack"
)

type serveFlags struct {
	configPath string
	logLevel   string
	logFile    string
	pcapFile   string
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the adapter",
		Long: `serve starts the TCP explicit-messaging listener, the UDP implicit-
messaging socket, and the periodic tick driver, and runs until interrupted.

Every entry point into the CIP stack -- a TCP frame, a UDP datagram, and each
tick -- is serialized onto a single event loop goroutine, since the Connection
Manager and connection runtime assume a single-threaded cooperative caller
and do no internal locking.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}
	cmd.Flags().StringVar(&flags.configPath, "config", "cipadapter.yaml", "Adapter config file path (created with defaults if missing)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level override: error|info|verbose|debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Log file path override (stderr if omitted)")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "Trace inbound/outbound frames to this pcap file")
	return cmd
}

func runServe(flags *serveFlags) error {
	cfg, err := config.LoadConfig(flags.configPath, true)
	if err != nil {
		return cipadaptererrors.WrapConfigError(err, flags.configPath)
	}

	level := logging.LogLevelInfo
	logFile := cfg.Logging.LogFile
	if flags.logFile != "" {
		logFile = flags.logFile
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if parsed, ok := parseLogLevel(cfg.Logging.Level); ok {
		level = parsed
	}

	logger, err := logging.NewLogger(level, logFile)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	application := app.New(cfg.Telemetry, logger)

	s, err := stack.New(cfg, application, logger)
	if err != nil {
		return fmt.Errorf("build stack: %w", err)
	}

	application.BindStack(
		func(instanceID uint16) ([]byte, bool) {
			inst, ok := s.Assemblies.Instance(instanceID)
			if !ok {
				return nil, false
			}
			buf := make([]byte, inst.Len())
			inst.Read(buf)
			return buf, true
		},
		func() []app.ConnectionSummary {
			active := s.ConnMgr.Active()
			out := make([]app.ConnectionSummary, 0, len(active))
			for _, c := range active {
				out = append(out, app.ConnectionSummary{
					ConsumingPoint: c.ConnPath.ConsumingPoint,
					ProducingPoint: c.ConnPath.ProducingPoint,
					State:          c.State.String(),
					InstanceType:   c.InstanceType.String(),
				})
			}
			return out
		},
		func() error {
			s.ConnMgr.CloseAll()
			return nil
		},
	)

	if err := application.Start(); err != nil {
		return fmt.Errorf("start telemetry bridges: %w", err)
	}
	defer application.Stop()

	if err := application.ApplicationInitialization(); err != nil {
		return fmt.Errorf("application initialization: %w", err)
	}

	var trace *diag.Trace
	if flags.pcapFile != "" {
		trace, err = diag.NewTrace(flags.pcapFile)
		if err != nil {
			return fmt.Errorf("open pcap trace: %w", err)
		}
		defer trace.Close()
	}

	loop, err := newEventLoop(cfg, s, logger, trace)
	if err != nil {
		return err
	}
	defer loop.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.LogStartup(cfg.Name, cfg.Network.ListenIP, cfg.Network.TCPPort, cfg.Network.UDPIOPort, flags.configPath)
	return loop.run(ctx)
}

func parseLogLevel(name string) (logging.LogLevel, bool) {
	switch name {
	case "error":
		return logging.LogLevelError, true
	case "info":
		return logging.LogLevelInfo, true
	case "verbose":
		return logging.LogLevelVerbose, true
	case "debug":
		return logging.LogLevelDebug, true
	case "silent":
		return logging.LogLevelSilent, true
	default:
		return 0, false
	}
}

// tcpFrame and udpFrame carry a fully decoded encapsulation frame from a
// reader goroutine to the single event-loop goroutine that owns the stack;
// decoding happens in the reader since it is cheap and stateless, but the
// frame is never dispatched outside the loop goroutine.
type tcpFrame struct {
	conn *net.TCPConn
	addr string
	msg  encap.Message
}

type udpFrame struct {
	addr string
	msg  encap.Message
	ok   bool // false when data did not decode as an encapsulation frame
	data []byte
}

type eventLoop struct {
	cfg    *config.AdapterConfig
	stack  *stack.Stack
	logger *logging.Logger
	trace  *diag.Trace

	tcpListener *net.TCPListener
	udpHandle   int

	tcpFrames  chan tcpFrame
	udpFrames  chan udpFrame
	tickTicker *time.Ticker
}

func newEventLoop(cfg *config.AdapterConfig, s *stack.Stack, logger *logging.Logger, trace *diag.Trace) (*eventLoop, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", cfg.Network.ListenIP, cfg.Network.TCPPort))
	if err != nil {
		return nil, fmt.Errorf("resolve tcp address: %w", err)
	}
	tcpListener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp: %w", err)
	}

	loop := &eventLoop{
		cfg:         cfg,
		stack:       s,
		logger:      logger,
		trace:       trace,
		tcpListener: tcpListener,
		tcpFrames:   make(chan tcpFrame, 64),
		udpFrames:   make(chan udpFrame, 64),
		tickTicker:  time.NewTicker(10 * time.Millisecond),
	}

	if cfg.Network.EnableUDPIO {
		handle, err := s.Sockets.CreateUdpSocket(connmgr.SocketConsuming, fmt.Sprintf("%s:%d", cfg.Network.ListenIP, cfg.Network.UDPIOPort))
		if err != nil {
			tcpListener.Close()
			return nil, fmt.Errorf("create udp io socket: %w", err)
		}
		loop.udpHandle = handle
	}

	logger.Info("TCP explicit messaging listening on %s:%d", cfg.Network.ListenIP, cfg.Network.TCPPort)
	if cfg.Network.EnableUDPIO {
		logger.Info("UDP implicit messaging listening on %s:%d", cfg.Network.ListenIP, cfg.Network.UDPIOPort)
	}

	return loop, nil
}

func (l *eventLoop) close() {
	l.tickTicker.Stop()
	l.tcpListener.Close()
	if l.cfg.Network.EnableUDPIO {
		l.stack.Sockets.CloseSocket(l.udpHandle)
	}
}

// run drains tcpFrames/udpFrames/tick on one goroutine, the only goroutine
// that ever calls into l.stack's router, connection manager, or driver.
func (l *eventLoop) run(ctx context.Context) error {
	go l.acceptLoop()
	if l.cfg.Network.EnableUDPIO {
		go l.udpReadLoop()
	}

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("shutdown requested")
			return nil

		case f := <-l.tcpFrames:
			l.handleTCPFrame(f)

		case f := <-l.udpFrames:
			l.handleUDPFrame(f)

		case <-l.tickTicker.C:
			if err := l.stack.Driver.ManageConnections(); err != nil {
				l.logger.Error("manage connections: %v", err)
			}
		}
	}
}

func (l *eventLoop) acceptLoop() {
	for {
		conn, err := l.tcpListener.AcceptTCP()
		if err != nil {
			return
		}
		go l.readTCPConn(conn)
	}
}

func (l *eventLoop) readTCPConn(conn *net.TCPConn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	l.logger.Info("tcp connection from %s", remote)

	buf := make([]byte, 0, 4096)
	read := make([]byte, 4096)
	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		n, err := conn.Read(read)
		if err != nil {
			if err == io.EOF {
				l.logger.Info("tcp connection closed by %s", remote)
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			l.logger.Error("tcp read from %s: %v", remote, err)
			return
		}
		if n == 0 {
			continue
		}
		buf = append(buf, read[:n]...)

		frames, remaining := encap.SplitStream(buf)
		buf = remaining
		for _, msg := range frames {
			l.tcpFrames <- tcpFrame{conn: conn, addr: remote, msg: msg}
		}
	}
}

func (l *eventLoop) handleTCPFrame(f tcpFrame) {
	l.traceTCP(diag.DirectionInbound, f.addr, encap.Encode(f.msg))

	reply, err := l.stack.Router.HandleEncapsulation(f.msg)
	if err != nil {
		l.logger.Error("handle encapsulation from %s: %v", f.addr, err)
		return
	}
	if reply.Header.Command == 0 && reply.Body == nil {
		return
	}

	replyBytes := encap.Encode(reply)
	if _, err := f.conn.Write(replyBytes); err != nil {
		l.logger.Error("tcp write to %s: %v", f.addr, err)
		return
	}
	l.traceTCP(diag.DirectionOutbound, f.addr, replyBytes)
}

func (l *eventLoop) traceTCP(dir diag.Direction, peerAddr string, payload []byte) {
	if l.trace == nil {
		return
	}
	if err := l.trace.WriteTCP(dir, l.tcpListener.Addr().String(), peerAddr, payload); err != nil {
		l.logger.Debug("pcap trace write: %v", err)
	}
}

func (l *eventLoop) udpReadLoop() {
	buf := make([]byte, 4096)
	for {
		n, addr, err := l.stack.Sockets.ReadFrom(l.udpHandle, buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		msg, err := encap.Decode(data)
		l.udpFrames <- udpFrame{addr: addr, msg: msg, ok: err == nil, data: data}
	}
}

func (l *eventLoop) handleUDPFrame(f udpFrame) {
	if f.ok {
		l.traceUDP(diag.DirectionInbound, f.addr, f.data)
		reply, err := l.stack.Router.HandleEncapsulation(f.msg)
		if err != nil {
			l.logger.Error("handle udp encapsulation from %s: %v", f.addr, err)
			return
		}
		if reply.Header.Command != 0 || reply.Body != nil {
			_ = l.stack.Sockets.SendUdpData(l.udpHandle, f.addr, encap.Encode(reply))
		}
		return
	}

	// Not a well-formed encapsulation frame: Class-0/Class-1 I/O datagrams
	// carry a bare CPF item list with no encapsulation header wrapped
	// around it, unlike explicit messaging.
	items, err := encap.DecodeCPF(f.data)
	if err != nil {
		l.logger.Debug("udp datagram from %s is neither an encapsulation frame nor CPF: %v", f.addr, err)
		return
	}
	addrItem, ok := encap.FindItem(items, encap.ItemConnectedAddress)
	if !ok {
		l.logger.Debug("udp datagram from %s missing connected-address item", f.addr)
		return
	}
	connID, err := encap.ConnectedAddress(addrItem.Data)
	if err != nil {
		l.logger.Debug("udp datagram from %s: %v", f.addr, err)
		return
	}
	dataItem, ok := encap.FindItem(items, encap.ItemConnectedData)
	if !ok {
		l.logger.Debug("udp datagram from %s missing connected-data item", f.addr)
		return
	}

	l.traceUDP(diag.DirectionInbound, f.addr, f.data)
	if err := l.stack.Driver.HandleReceivedConnectedData(f.addr, connID, dataItem.Data); err != nil {
		l.logger.Debug("connected data from %s: %v", f.addr, err)
	}
}

func (l *eventLoop) traceUDP(dir diag.Direction, peerAddr string, payload []byte) {
	if l.trace == nil {
		return
	}
	local := fmt.Sprintf("%s:%d", l.cfg.Network.ListenIP, l.cfg.Network.UDPIOPort)
	if err := l.trace.WriteUDP(dir, local, peerAddr, payload); err != nil {
		l.logger.Debug("pcap trace write: %v", err)
	}
}
