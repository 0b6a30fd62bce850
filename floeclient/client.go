// Package floeclient is the extension-side SDK for writing a Floe: it dials
// the Unix socket the supervisor listens on (spec.md §4.6), speaks the same
// wire.FrameReader/FrameWriter framing and protocol.Encode/Decode payloads
// the hub's supervisor package implements the other half of, and exposes a
// small synchronous/callback API in place of raw frames -- the same shape
// daemon_ref/ap_common/apcfg.APConfig and daemon_ref/common/cfgapi.Handle
// give a daemon for talking to ap.configd over its own REQ/REP socket.
package floeclient

import (
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/pkg/errors"

	"igloo/component"
	"igloo/protocol"
	"igloo/tree"
	"igloo/wire"
)

// Handler reacts to a hub->extension command the Client can't answer
// synchronously: SetComponents (apply these values), Custom (extension-
// defined), or ReqComponentUpdates (push current state for device).
type Handler interface {
	SetComponents(device tree.DeviceID, entity tree.EntityIndex, comps []component.Component)
	Custom(name string, payload []byte)
	ReqComponentUpdates(device tree.DeviceID)
}

// Client is one extension's connection to the hub. It is not safe for
// concurrent use by more than one goroutine calling its Create/Register/
// Write/Remove/Log methods at once; the hub processes one extension's
// commands in the order its single socket connection delivers them
// (spec.md §5's per-session ordering guarantee), so callers should serialize
// through a single goroutine the same way a Floe's own main loop does.
type Client struct {
	conn   net.Conn
	reader *wire.FrameReader
	writer *wire.FrameWriter

	mu          sync.Mutex
	extensionID string

	handler Handler
	done    chan struct{}
}

// Dial connects to the hub over the Unix socket named by the IGLOO_SOCK
// environment variable (set by the supervisor before spawning the
// extension's child process), sends the WhatsUpIgloo greeting, and starts
// the background read loop that delivers hub->extension commands to
// handler.
func Dial(handler Handler, maxSupportedComponent uint16) (*Client, error) {
	sockPath := os.Getenv("IGLOO_SOCK")
	if sockPath == "" {
		return nil, errors.New("floeclient: IGLOO_SOCK is not set")
	}

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return nil, errors.Wrap(err, "floeclient: dialing hub socket")
	}

	c := &Client{
		conn:    conn,
		reader:  wire.NewFrameReader(conn),
		writer:  wire.NewFrameWriter(conn),
		handler: handler,
		done:    make(chan struct{}),
	}

	greeting, err := protocol.Encode(wire.CmdWhatsUpIgloo, protocol.WhatsUpIgloo{MaxSupportedComponent: maxSupportedComponent})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.writer.WriteFrame(wire.CmdWhatsUpIgloo, greeting); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "floeclient: sending greeting")
	}

	go c.readLoop()
	return c, nil
}

// Close tears down the hub connection. The supervisor treats this the same
// as any other I/O error: the session moves to Reconnecting and is retried
// with backoff.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed once the read loop exits, signalling the connection is
// gone and the caller should reconnect.
func (c *Client) Done() <-chan struct{} { return c.done }

// ExtensionID returns the persisted extension id the hub handed back in its
// post-greet Init message, or "" if no Init has arrived yet.
func (c *Client) ExtensionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extensionID
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		frame, err := c.reader.ReadFrame()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(wire.Command(frame.Command), frame.Payload)
		if err != nil {
			continue
		}
		switch m := msg.(type) {
		case protocol.Init:
			c.mu.Lock()
			c.extensionID = m.ExtensionID
			c.mu.Unlock()
		case protocol.SetComponents:
			if c.handler != nil {
				c.handler.SetComponents(m.Device, m.Entity, m.Components)
			}
		case protocol.Custom:
			if c.handler != nil {
				c.handler.Custom(m.Name, m.Payload)
			}
		case protocol.ReqComponentUpdates:
			if c.handler != nil {
				c.handler.ReqComponentUpdates(m.Device)
			}
		}
	}
}

func (c *Client) sendMsg(cmd wire.Command, msg interface{}) error {
	payload, err := protocol.Encode(cmd, msg)
	if err != nil {
		return errors.Wrapf(err, "floeclient: encoding %v", cmd)
	}
	if err := c.writer.WriteFrame(cmd, payload); err != nil {
		return errors.Wrapf(err, "floeclient: writing %v", cmd)
	}
	return nil
}

// CreateDevice asks the hub to allocate a device under this extension. The
// hub's acknowledgement (DeviceCreated) arrives asynchronously on the read
// loop; a Floe that needs the assigned tree.DeviceID before proceeding
// should implement that case in its own Handler rather than block here,
// the same way apcfg's change-handler callbacks are delivered out of band
// from the request that triggered them.
func (c *Client) CreateDevice(name string) error {
	return c.sendMsg(wire.CmdCreateDevice, protocol.CreateDevice{Name: name})
}

// RegisterEntity declares an entity under device, using indexHint to let the
// hub detect whether this is the same entity layout as before a reconnect.
func (c *Client) RegisterEntity(device tree.DeviceID, name string, indexHint uint32) error {
	return c.sendMsg(wire.CmdRegisterEntity, protocol.RegisterEntity{Device: device, Name: name, IndexHint: indexHint})
}

// WriteComponents pushes a batch of component values for one entity.
func (c *Client) WriteComponents(device tree.DeviceID, entity tree.EntityIndex, comps []component.Component) error {
	return c.sendMsg(wire.CmdWriteComponents, protocol.WriteComponents{Device: device, Entity: entity, Components: comps})
}

// RemoveDevice tells the hub a previously-created device is gone.
func (c *Client) RemoveDevice(device tree.DeviceID) error {
	return c.sendMsg(wire.CmdDeviceRemoved, protocol.DeviceRemoved{Device: device})
}

// Log sends a free-text diagnostic line, surfaced hub-side through
// internal/log rather than the tree.
func (c *Client) Log(level, format string, args ...interface{}) error {
	return c.sendMsg(wire.CmdLog, protocol.Log{Level: level, Message: fmt.Sprintf(format, args...)})
}

// ReportError reports an extension-defined error condition that doesn't map
// to a tree mutation.
func (c *Client) ReportError(code, message string) error {
	return c.sendMsg(wire.CmdCustomError, protocol.CustomError{Code: code, Message: message})
}
