// Package iorun implements the connection runtime: per-connection
// transmission-trigger and watchdog timers, the produce/consume drivers,
// and the timer tick driver that walks the active connection list every
// TIMER_TICK (spec.md §4.6, §4.8).
package iorun

import (
	"encoding/binary"
	"fmt"

	"github.com/tturner/cipadapter/internal/connmgr"
)

// AssemblyLookup is the subset of assembly.Registrar the runtime needs to
// move bytes in and out of connection points during produce/consume.
type AssemblyLookup interface {
	Instance(instanceID uint16) (Buffer, bool)
}

// Buffer is the narrow read/write/run-idle surface a connection point's
// backing assembly exposes; assembly.Instance satisfies it.
type Buffer interface {
	Len() int
	Read(dst []byte) int
	Write(src []byte)
	ObserveRunIdle(runIdle uint32) bool
}

// Callbacks mirrors assembly.Callbacks; the runtime depends on the
// interface rather than the concrete package to keep iorun independent of
// assembly's internal wiring.
type Callbacks interface {
	AfterAssemblyDataReceived(instanceID uint16) error
	BeforeAssemblyDataSend(instanceID uint16) bool
	RunIdleChanged(runIdle uint32)
	HandleApplication() error
}

// Sender is the outbound half of the host socket surface (spec.md §6).
type Sender interface {
	SendUdpData(handle int, addr string, data []byte) error
}

// Driver ties the Connection Manager's active list to the per-tick
// production/watchdog logic and the consuming-frame entry point.
type Driver struct {
	Manager    *connmgr.Manager
	Assemblies AssemblyLookup
	Callbacks  Callbacks
	Sender     Sender
	TickPeriod int64 // microseconds

	// MulticastGroup is the destination address for Class-0 multicast
	// production; point-to-point connections instead target the
	// connection's own OriginatorAddr.
	MulticastGroup string
}

// New returns a Driver ready to run ManageConnections/HandleReceivedConnectedData.
func New(mgr *connmgr.Manager, assemblies AssemblyLookup, callbacks Callbacks, sender Sender, tickPeriodMicros int64) *Driver {
	return &Driver{Manager: mgr, Assemblies: assemblies, Callbacks: callbacks, Sender: sender, TickPeriod: tickPeriodMicros}
}

// ManageConnections runs one TIMER_TICK: the application hook, transmission
// triggers (all connections, before any watchdog is evaluated), then
// watchdog timeouts, then reaps closed/timed-out entries (spec.md §4.8,
// §5's ordering guarantee).
func (d *Driver) ManageConnections() error {
	if d.Callbacks != nil {
		if err := d.Callbacks.HandleApplication(); err != nil {
			return fmt.Errorf("iorun: HandleApplication: %w", err)
		}
	}

	snapshot := d.Manager.Snapshot()

	for _, c := range snapshot {
		if c.State != connmgr.StateEstablished {
			continue
		}
		d.advanceTransmissionTrigger(c)
	}

	for _, c := range snapshot {
		if c.State != connmgr.StateEstablished {
			continue
		}
		d.advanceWatchdog(c)
	}

	d.Manager.Reap()
	return nil
}

func (d *Driver) produces(c *connmgr.Conn) bool {
	switch c.InstanceType {
	case connmgr.InstanceIoExclusiveOwner, connmgr.InstanceIoInputOnly, connmgr.InstanceIoListenOnly:
		return c.TToONCP.ConnectionType != connmgr.ConnTypeNull
	default:
		return false
	}
}

// advanceTransmissionTrigger implements spec.md §4.6's first bullet.
func (d *Driver) advanceTransmissionTrigger(c *connmgr.Conn) {
	if !d.produces(c) {
		return
	}
	c.TransmissionTriggerTimer -= d.TickPeriod
	if c.TransmissionTriggerTimer > 0 {
		return
	}
	d.produce(c)
	c.TransmissionTriggerTimer = int64(c.TToOAPI)
	c.SequenceCountProducing++
}

// produce builds and sends one T->O frame: connection id, sequence count,
// payload. No run/idle header is written, for any transport class.
func (d *Driver) produce(c *connmgr.Conn) {
	if c.ProducingSocket == connmgr.InvalidSocket || d.Sender == nil {
		return
	}

	var payload []byte
	if d.Assemblies != nil {
		if buf, ok := d.Assemblies.Instance(uint16(c.ConnPath.ProducingPoint)); ok {
			if d.Callbacks != nil {
				d.Callbacks.BeforeAssemblyDataSend(uint16(c.ConnPath.ProducingPoint))
			}
			payload = make([]byte, buf.Len())
			buf.Read(payload)
		}
	}

	frame := make([]byte, 0, 10+len(payload))
	var idBuf, seqBuf [4]byte
	binary.LittleEndian.PutUint32(idBuf[:], c.TToOConnectionID)
	frame = append(frame, idBuf[:]...)
	binary.LittleEndian.PutUint16(seqBuf[:2], c.SequenceCountProducing)
	frame = append(frame, seqBuf[:2]...)
	frame = append(frame, payload...)

	target := c.OriginatorAddr
	if c.TToONCP.ConnectionType == connmgr.ConnTypeMulticast {
		target = d.MulticastGroup
	}
	_ = d.Sender.SendUdpData(c.ProducingSocket, target, frame)
}

// advanceWatchdog implements spec.md §4.6's second bullet.
func (d *Driver) advanceWatchdog(c *connmgr.Conn) {
	c.InactivityWatchdogTimer -= d.TickPeriod
	if c.InactivityWatchdogTimer <= 0 {
		c.State = connmgr.StateTimedOut
	}
}

// HandleReceivedConnectedData implements the consuming-frame entry point
// (spec.md §4.6 steps 1-6): locate the CipConn, verify the originator,
// suppress duplicates by sequence count, observe run/idle, copy into the
// consuming assembly, and reset the watchdog.
func (d *Driver) HandleReceivedConnectedData(fromAddr string, oToTConnectionID uint32, data []byte) error {
	conn := d.Manager.FindByConsumingID(oToTConnectionID)
	if conn == nil {
		return fmt.Errorf("iorun: no connection for id %#x", oToTConnectionID)
	}
	if conn.OriginatorAddr != "" && conn.OriginatorAddr != fromAddr {
		return fmt.Errorf("iorun: frame from %s rejected, expected originator %s", fromAddr, conn.OriginatorAddr)
	}

	if len(data) < 2 {
		return fmt.Errorf("iorun: consumed frame too short")
	}
	classZero := hasRunIdleHeader(conn) && len(data) >= 6
	pos := 0
	if classZero {
		if len(data) < 6 {
			return fmt.Errorf("iorun: consumed frame too short for run/idle header")
		}
		runIdle := binary.LittleEndian.Uint32(data[pos:])
		pos += 4
		seq := binary.LittleEndian.Uint16(data[pos:])
		pos += 2

		duplicate := conn.HaveConsumedOnce && seq == conn.SequenceCountConsuming
		conn.SequenceCountConsuming = seq
		conn.HaveConsumedOnce = true

		if conn.ObserveRunIdle(runIdle) && d.Callbacks != nil {
			d.Callbacks.RunIdleChanged(runIdle)
		}

		if !duplicate {
			d.copyIntoConsumingAssembly(conn, data[pos:])
		}
	} else {
		seq := binary.LittleEndian.Uint16(data[pos:])
		pos += 2
		duplicate := conn.HaveConsumedOnce && seq == conn.SequenceCountConsuming
		conn.SequenceCountConsuming = seq
		conn.HaveConsumedOnce = true
		if !duplicate {
			d.copyIntoConsumingAssembly(conn, data[pos:])
		}
	}

	conn.InactivityWatchdogTimer = conn.TimeoutMicros
	return nil
}

// hasRunIdleHeader reports whether conn's O->T frames carry the 32-bit
// run/idle header, i.e. it was opened as a Class-0 exclusive-owner/
// input-only consumer. The connection record does not retain the raw
// transport-class-trigger byte past Forward-Open, so this is inferred from
// instance type: exclusive-owner and input-only connections that consume
// carry run/idle, listen-only connections never consume.
func hasRunIdleHeader(conn *connmgr.Conn) bool {
	return conn.InstanceType == connmgr.InstanceIoExclusiveOwner || conn.InstanceType == connmgr.InstanceIoInputOnly
}

func (d *Driver) copyIntoConsumingAssembly(conn *connmgr.Conn, payload []byte) {
	if d.Assemblies == nil {
		return
	}
	buf, ok := d.Assemblies.Instance(uint16(conn.ConnPath.ConsumingPoint))
	if !ok {
		return
	}
	buf.Write(payload)
	if d.Callbacks != nil {
		_ = d.Callbacks.AfterAssemblyDataReceived(uint16(conn.ConnPath.ConsumingPoint))
	}
}
