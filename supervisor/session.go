package supervisor

import (
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"igloo/internal/metrics"
	"igloo/protocol"
	"igloo/tree"
	"igloo/wire"
)

// sessionState is the per-extension connection state machine (spec.md
// §4.6):
//
//	Connecting -> Greet -(ok)-> Ready -> Draining -> Closed
//
// A bad greeting ends run while still in Greet; a read error or stop moves
// Ready to Draining. No code path sets stateReconnecting: reconnecting is
// done by superviseExtension, which starts a new session after a backoff.
type sessionState int

// States.
const (
	stateConnecting sessionState = iota
	stateGreet
	stateReady
	stateDraining
	stateClosed
	stateReconnecting
)

func (s sessionState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateGreet:
		return "greet"
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	case stateClosed:
		return "closed"
	case stateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// greetDeadline bounds how long a newly accepted connection has to send its
// WhatsUpIgloo greeting before the session gives up on it.
const greetDeadline = 5 * time.Second

// inbound is one decoded extension->hub command, tagged with the session it
// arrived on, queued onto the core task's single command channel.
type inbound struct {
	session *session
	msg     interface{} // one of protocol.{CreateDevice,RegisterEntity,WriteComponents,DeviceRemoved,Log,CustomError}
}

// session is one live (or reconnecting) connection to an extension's child
// process. Exactly one session owns tree mutations attributed to its
// extension's ExtensionIndex.
type session struct {
	extID   tree.ExtensionID
	extIdx  tree.ExtensionIndex
	state   sessionState
	conn    net.Conn
	reader  *wire.FrameReader
	writer  *wire.FrameWriter
	outbox  *mailbox
	log     *zap.Logger
	maxComp uint16

	core chan<- inbound
}

func newSession(extID tree.ExtensionID, conn net.Conn, core chan<- inbound, log *zap.Logger) *session {
	return &session{
		extID:  extID,
		state:  stateConnecting,
		conn:   conn,
		reader: wire.NewFrameReader(conn),
		writer: wire.NewFrameWriter(conn),
		outbox: newMailbox(),
		log:    log.With(zap.String("extension", string(extID))),
		core:   core,
	}
}

// run drives the session to completion: greet, then read and write pumps
// concurrently until either fails or the session is told to drain.
func (s *session) run(extIdx tree.ExtensionIndex, stop <-chan struct{}) {
	s.extIdx = extIdx
	s.state = stateGreet

	if err := s.greet(); err != nil {
		s.log.Warn("bad greeting", zap.Error(err))
		return
	}
	s.state = stateReady

	if payload, err := protocol.Encode(wire.CmdInit, protocol.Init{ExtensionID: string(s.extID)}); err == nil {
		s.send(wire.CmdInit, payload, false)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(stop)
	}()

	if err := s.readPump(stop); err != nil {
		s.log.Warn("session read failed", zap.Error(err))
	}
	s.state = stateDraining
	s.outbox.close()
	<-writerDone
	s.state = stateClosed
}

func (s *session) greet() error {
	s.conn.SetReadDeadline(time.Now().Add(greetDeadline))
	defer s.conn.SetReadDeadline(time.Time{})

	frame, err := s.reader.ReadFrame()
	if err != nil {
		return err
	}
	if wire.Command(frame.Command) != wire.CmdWhatsUpIgloo {
		return wire.ErrInvalidFrame
	}
	msg, err := protocol.Decode(wire.CmdWhatsUpIgloo, frame.Payload)
	if err != nil {
		return err
	}
	greeting := msg.(protocol.WhatsUpIgloo)
	s.maxComp = greeting.MaxSupportedComponent
	return nil
}

// readPump decodes frames until the connection errs out or stop fires, and
// forwards each to the core task. Only the command set valid in Ready state
// is accepted (spec.md §4.6); anything else closes the session.
func (s *session) readPump(stop <-chan struct{}) error {
	type readResult struct {
		frame wire.Frame
		err   error
	}
	next := make(chan readResult, 1)
	read := func() {
		f, err := s.reader.ReadFrame()
		next <- readResult{f, err}
	}
	go read()

	for {
		select {
		case <-stop:
			return nil
		case r := <-next:
			if r.err != nil {
				if r.err == io.EOF {
					return nil
				}
				return r.err
			}
			msg, err := s.decodeReady(wire.Command(r.frame.Command), r.frame.Payload)
			if err != nil {
				return err
			}
			s.core <- inbound{session: s, msg: msg}
			go read()
		}
	}
}

func (s *session) decodeReady(cmd wire.Command, payload []byte) (interface{}, error) {
	switch cmd {
	case wire.CmdCreateDevice, wire.CmdRegisterEntity, wire.CmdWriteComponents,
		wire.CmdDeviceRemoved, wire.CmdLog, wire.CmdCustomError:
		return protocol.Decode(cmd, payload)
	default:
		return nil, &wire.UnknownCommandError{ID: uint16(cmd)}
	}
}

// writePump drains the outbound mailbox onto the socket until it's closed
// or stop fires.
func (s *session) writePump(stop <-chan struct{}) {
	for {
		e, ok := s.outbox.pop(stop)
		if !ok {
			return
		}
		if err := s.writer.WriteFrame(e.cmd, e.payload); err != nil {
			s.log.Warn("write failed", zap.Error(err))
			return
		}
	}
}

// send enqueues cmd/payload on the session's mailbox. optional must be true
// only for wire.CmdCustom.
func (s *session) send(cmd wire.Command, payload []byte, optional bool) {
	s.outbox.push(outboundEntry{cmd: uint16(cmd), payload: payload, optional: optional})
	metrics.ExtensionMailboxDepth.WithLabelValues(string(s.extID)).Set(float64(s.outbox.len()))
}
