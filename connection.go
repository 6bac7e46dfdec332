package dicomul

import (
	"fmt"
	"net"
	"time"

	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/openrad/go-dicomul/dimse"
	"github.com/openrad/go-dicomul/pdu"
)

// ImplicitVRLittleEndian is the default DICOM transfer syntax and the only one
// this module offers.
const ImplicitVRLittleEndian = "1.2.840.10008.1.2"

// DefaultMaxPDUSize is the max PDU size advertised in the user information
// item when the caller does not override it.
const DefaultMaxPDUSize = 4 << 20

const (
	DefaultImplementationClassUID    = "1.2.826.0.1.3680043.9.7133.1.1"
	DefaultImplementationVersionName = "GODICOMUL_1_0"
)

// ConnectionInfo identifies the two endpoints of one association.
type ConnectionInfo struct {
	// CallingAETitle is the local AE title, CalledAETitle the peer's. Both
	// are at most 16 ASCII bytes; newConnection normalizes them to the
	// space-padded 16-byte wire form.
	CallingAETitle string
	CalledAETitle  string

	Host string
	Port int

	// LocalName is the local computer name, recorded for logging.
	LocalName string

	MaxPDULength              uint32
	ImplementationClassUID    string
	ImplementationVersionName string
}

// PresentationContext is one proposed binding of an abstract syntax to the
// transfer syntaxes offered for it. IDs are odd and unique per association.
type PresentationContext struct {
	ID                 byte
	AbstractSyntaxUID  string
	TransferSyntaxUIDs []string
}

// Connection owns one TCP stream, its protocol state, the ARTIM timer and the
// negotiated presentation contexts. It is exclusively owned by the manager;
// exactly one PDU is in flight in either direction at any time.
type Connection struct {
	label string // for logging only
	info  ConnectionInfo

	conn     net.Conn
	listener net.Listener // Move secondary only

	currentState   stateType
	contextManager *contextManager
	timer          artimTimer

	// isRequestor is true on the control connection (association requestor)
	// and false on the Move secondary (acceptor). Only release collisions
	// consult it.
	isRequestor bool

	// requestedContexts is the ordered context list the association builder
	// assigned for the outbound A_ASSOCIATE_RQ.
	requestedContexts []PresentationContext

	// raised holds a local event produced by a state action, to be consumed
	// by the event loop before the next socket read.
	raised *ULEvent

	// assembler reassembles the DIMSE command+data of the message currently
	// being received.
	assembler dimse.CommandAssembler

	// lastMessage holds the PDUs of the most recently received complete
	// message.
	lastMessage []pdu.PDU

	maxPDU int
}

func newConnection(label string, info ConnectionInfo) *Connection {
	// AE titles live on the connection in their 16-byte wire form. The
	// facade validates lengths before this point.
	info.CallingAETitle = padAETitle(info.CallingAETitle)
	info.CalledAETitle = padAETitle(info.CalledAETitle)
	if info.MaxPDULength == 0 {
		info.MaxPDULength = DefaultMaxPDUSize
	}
	if info.ImplementationClassUID == "" {
		info.ImplementationClassUID = DefaultImplementationClassUID
	}
	if info.ImplementationVersionName == "" {
		info.ImplementationVersionName = DefaultImplementationVersionName
	}
	return &Connection{
		label:          label,
		info:           info,
		currentState:   sta01,
		contextManager: newContextManager(label),
		maxPDU:         int(info.MaxPDULength),
	}
}

// State returns the current protocol state. It changes only through the
// transition table.
func (c *Connection) State() stateType {
	return c.currentState
}

// PresentationContexts returns the accepted contexts after negotiation, in
// context-ID order.
func (c *Connection) PresentationContexts() []contextManagerEntry {
	entries := make([]contextManagerEntry, 0, len(c.contextManager.contextIDToAbstractSyntaxNameMap))
	for id := 1; id <= 255; id += 2 {
		if e, ok := c.contextManager.contextIDToAbstractSyntaxNameMap[byte(id)]; ok {
			entries = append(entries, *e)
		}
	}
	return entries
}

// open dials the peer. The transport events (TransportConnConfirm or
// TransportClose) are raised by action AE-1; open only owns the socket.
func (c *Connection) open(timeout time.Duration) error {
	addr := net.JoinHostPort(c.info.Host, fmt.Sprint(c.info.Port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("dicom.Connection(%s): connect %s: %w", c.label, addr, err)
	}
	dicomlog.Vprintf(1, "dicom.Connection(%s): connected to %s", c.label, addr)
	c.conn = conn
	return nil
}

// listen binds the Move return port without accepting yet, so the port is
// reserved before the C-MOVE-RQ goes out.
func (c *Connection) listen(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("dicom.Connection(%s): listen port %d: %w", c.label, port, err)
	}
	c.listener = listener
	return nil
}

// initListener accepts the single inbound transport of the Move secondary
// connection, binding first if listen was not called. The accept honours the
// ARTIM timeout.
func (c *Connection) initListener(port int) error {
	if c.conn != nil {
		return nil
	}
	if c.listener == nil {
		if err := c.listen(port); err != nil {
			return err
		}
	}
	if tcp, ok := c.listener.(*net.TCPListener); ok && c.timer.timeout > 0 {
		tcp.SetDeadline(time.Now().Add(c.timer.timeout))
	}
	conn, err := c.listener.Accept()
	if err != nil {
		return fmt.Errorf("dicom.Connection(%s): accept: %w", c.label, err)
	}
	dicomlog.Vprintf(1, "dicom.Connection(%s): accepted incoming transport from %v", c.label, conn.RemoteAddr())
	c.conn = conn
	c.currentState = sta02
	c.timer.Start()
	return nil
}

// readPDU reads one PDU, honouring the ARTIM deadline when the timer is
// armed.
func (c *Connection) readPDU() (pdu.PDU, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("dicom.Connection(%s): read on closed connection", c.label)
	}
	if c.timer.armed {
		c.conn.SetReadDeadline(c.timer.deadline)
	} else if c.timer.timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.timer.timeout))
	} else {
		c.conn.SetReadDeadline(time.Time{})
	}
	v, err := pdu.ReadPDU(c.conn, c.maxPDU)
	if err != nil {
		return nil, err
	}
	dicomlog.Vprintf(2, "dicom.Connection(%s): read PDU: %v", c.label, v.String())
	return v, nil
}

// readMessage reads one complete message: a lone PDU for the A-* family, or
// P-DATA-TF PDUs up to and including one whose PDV carries the last-fragment
// flag.
func (c *Connection) readMessage() ([]pdu.PDU, error) {
	var pdus []pdu.PDU
	for {
		v, err := c.readPDU()
		if err != nil {
			return nil, err
		}
		pdus = append(pdus, v)
		if pd, ok := v.(*pdu.PDataTf); ok {
			last := false
			for _, item := range pd.Items {
				if item.Last {
					last = true
				}
			}
			if !last {
				continue
			}
		}
		return pdus, nil
	}
}

func (c *Connection) writePDU(v pdu.PDU) error {
	doassert(c.conn != nil)
	data, err := pdu.EncodePDU(v)
	if err != nil {
		dicomlog.Vprintf(0, "dicom.Connection(%s): failed to encode: %v", c.label, err)
		return err
	}
	n, err := c.conn.Write(data)
	if n != len(data) || err != nil {
		dicomlog.Vprintf(0, "dicom.Connection(%s): failed to write %d bytes (wrote %d): %v; closing connection", c.label, len(data), n, err)
		c.conn.Close()
		return fmt.Errorf("dicom.Connection(%s): short write: %w", c.label, err)
	}
	dicomlog.Vprintf(2, "dicom.Connection(%s): sent PDU: %v", c.label, v.String())
	return nil
}

// close releases the socket. The Move listener stays bound so a later batch
// of sub-operations can still connect; shutdown releases it too. Safe to call
// on every path, repeatedly.
func (c *Connection) close() {
	if c.conn != nil {
		dicomlog.Vprintf(1, "dicom.Connection(%s): closing connection %v", c.label, c.conn.RemoteAddr())
		c.conn.Close()
		c.conn = nil
	}
}

// shutdown releases the socket and the listener.
func (c *Connection) shutdown() {
	c.close()
	if c.listener != nil {
		c.listener.Close()
		c.listener = nil
	}
}
