package dicomul

// ULConnectionManager is the public entry point: it owns up to two
// connections (control, and the Move-secondary store channel), drives the
// event loop for one service request at a time and returns the response
// datasets.

import (
	"errors"
	"fmt"
	"time"

	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/openrad/go-dicomul/dimse"
	"github.com/openrad/go-dicomul/pdu"
	"github.com/suyashkumar/dicom"
)

var (
	// ErrAETitleTooLong reports an AE title that is empty or over the 16
	// byte limit.
	ErrAETitleTooLong = errors.New("dicomul: AE title must be 1-16 bytes")

	// ErrNotEstablished reports a Send* or Release call without a
	// transfer-ready association.
	ErrNotEstablished = errors.New("dicomul: association not established")

	// ErrAssociationFailed reports an association attempt that did not reach
	// the transfer-ready state (rejected, aborted, or timed out).
	ErrAssociationFailed = errors.New("dicomul: association failed")

	// ErrNilQuery reports a Find or Move call without a query.
	ErrNilQuery = errors.New("dicomul: nil query")

	// ErrReleaseFailed reports a release handshake that did not end idle.
	ErrReleaseFailed = errors.New("dicomul: release failed")
)

// EstablishParams identify the peer and the local AE for an association.
type EstablishParams struct {
	// CallingAETitle is the local AE title, CalledAETitle the peer's. Both
	// must be 1-16 ASCII bytes.
	CallingAETitle string
	CalledAETitle  string

	// Host and Port form the peer TCP endpoint.
	Host string
	Port int

	// LocalName is the local computer name, used in logs only.
	LocalName string

	// Timeout is the ARTIM timer duration.
	Timeout time.Duration
}

// Query carries a C-FIND or C-MOVE root query: the information model's
// abstract syntax UID and the identifier elements.
type Query struct {
	AbstractSyntaxUID string
	Elements          []*dicom.Element
}

// ULConnectionManager drives DICOM upper-layer associations as a service
// user, plus the minimal store SCP needed to receive C-MOVE sub-operations.
// A manager handles one request at a time; it is not safe for concurrent use.
type ULConnectionManager struct {
	control   *Connection
	secondary *Connection

	returnPort    int
	nextMessageID dimse.MessageID
}

func NewULConnectionManager() *ULConnectionManager {
	return &ULConnectionManager{nextMessageID: 1}
}

func (m *ULConnectionManager) messageID() dimse.MessageID {
	id := m.nextMessageID
	m.nextMessageID++
	return id
}

// Establish opens the control connection and negotiates an association for
// the given service. For ServiceStore, ds supplies the SOP class to offer.
// Returns nil iff the association reached the transfer-ready state.
func (m *ULConnectionManager) Establish(service ServiceKind, params EstablishParams, ds *dicom.Dataset) error {
	if err := validateAETitle(params.CallingAETitle); err != nil {
		return err
	}
	if err := validateAETitle(params.CalledAETitle); err != nil {
		return err
	}
	contexts, err := buildPresentationContexts(service, ds)
	if err != nil {
		return err
	}
	if m.control != nil {
		m.control.shutdown()
	}
	m.control = newConnection("control", ConnectionInfo{
		CallingAETitle: params.CallingAETitle,
		CalledAETitle:  params.CalledAETitle,
		Host:           params.Host,
		Port:           params.Port,
		LocalName:      params.LocalName,
	})
	m.control.isRequestor = true
	m.control.requestedContexts = contexts
	m.control.timer.SetTimeout(params.Timeout)

	var empty []*dicom.Dataset
	state := runEventLoop(ULEvent{event: evt01}, m.control, &empty, false)
	if state != sta06 {
		return fmt.Errorf("%w: %s service to %s, final state %v", ErrAssociationFailed, service, params.Host, state)
	}
	return nil
}

// EstablishMove prepares both channels of a C-MOVE: it binds the secondary
// (store SCP) connection to returnPort and negotiates the control association
// with the Move presentation contexts.
func (m *ULConnectionManager) EstablishMove(params EstablishParams, returnPort int) error {
	if err := validateAETitle(params.CallingAETitle); err != nil {
		return err
	}
	if err := validateAETitle(params.CalledAETitle); err != nil {
		return err
	}
	if m.secondary != nil {
		m.secondary.shutdown()
	}
	// The peer dials back: on the store channel our AE is the called side.
	m.secondary = newConnection("store", ConnectionInfo{
		CallingAETitle: params.CalledAETitle,
		CalledAETitle:  params.CallingAETitle,
		Host:           params.Host,
		Port:           returnPort,
		LocalName:      params.LocalName,
	})
	m.secondary.timer.SetTimeout(params.Timeout)
	if err := m.secondary.listen(returnPort); err != nil {
		return err
	}
	m.returnPort = returnPort

	if err := m.Establish(ServiceMove, params, nil); err != nil {
		m.secondary.shutdown()
		return err
	}
	return nil
}

// SendEcho performs a C-ECHO and returns the PDVs of the response message.
func (m *ULConnectionManager) SendEcho() ([]pdu.PresentationDataValueItem, error) {
	if m.control == nil || m.control.currentState != sta06 {
		return nil, ErrNotEstablished
	}
	pdus, err := createCEchoPDUs(m.control, m.messageID())
	if err != nil {
		return nil, err
	}
	var empty []*dicom.Dataset
	state := runEventLoop(ULEvent{event: evt09, pdus: pdus}, m.control, &empty, false)
	if state != sta06 {
		return nil, fmt.Errorf("dicomul: echo ended in state %v", state)
	}
	return getPDVs(m.control.lastMessage), nil
}

// SendFind performs a C-FIND and returns the identifier datasets of the
// pending responses, in arrival order. Datasets received before a peer abort
// are returned alongside the error.
func (m *ULConnectionManager) SendFind(query *Query) ([]*dicom.Dataset, error) {
	if m.control == nil || m.control.currentState != sta06 {
		return nil, ErrNotEstablished
	}
	if query == nil {
		return nil, ErrNilQuery
	}
	pdus, err := createCFindPDUs(m.control, query, m.messageID())
	if err != nil {
		return nil, err
	}
	var datasets []*dicom.Dataset
	state := runEventLoop(ULEvent{event: evt09, pdus: pdus}, m.control, &datasets, false)
	if state != sta06 {
		return datasets, fmt.Errorf("dicomul: find ended in state %v", state)
	}
	return datasets, nil
}

// SendStore performs a C-STORE of the dataset and returns the status
// dataset(s) of the response.
func (m *ULConnectionManager) SendStore(ds *dicom.Dataset) ([]*dicom.Dataset, error) {
	if m.control == nil || m.control.currentState != sta06 {
		return nil, ErrNotEstablished
	}
	if ds == nil {
		return nil, fmt.Errorf("dicomul: nil dataset")
	}
	pdus, err := createCStoreRqPDUs(m.control, ds, m.messageID())
	if err != nil {
		return nil, err
	}
	var datasets []*dicom.Dataset
	state := runEventLoop(ULEvent{event: evt09, pdus: pdus}, m.control, &datasets, false)
	if state != sta06 {
		return datasets, fmt.Errorf("dicomul: store ended in state %v", state)
	}
	return datasets, nil
}

// SendMove performs a C-MOVE, running the dual-channel coordinator: the
// control loop consumes C-MOVE-RSP messages while the secondary connection
// receives the moved objects as C-STORE sub-operations. It returns the union
// of datasets received on the secondary connection.
func (m *ULConnectionManager) SendMove(query *Query) ([]*dicom.Dataset, error) {
	if m.control == nil || m.control.currentState != sta06 {
		return nil, ErrNotEstablished
	}
	if m.secondary == nil {
		return nil, fmt.Errorf("dicomul: move requires EstablishMove")
	}
	if query == nil {
		return nil, ErrNilQuery
	}
	pdus, err := createCMovePDUs(m.control, query, m.messageID(), m.control.info.CallingAETitle)
	if err != nil {
		return nil, err
	}
	var datasets []*dicom.Dataset
	state := m.runMoveEventLoop(ULEvent{event: evt09, pdus: pdus}, &datasets)
	if state != sta06 {
		return datasets, fmt.Errorf("dicomul: move ended in state %v", state)
	}
	return datasets, nil
}

// runMoveEventLoop interleaves the control channel with the secondary store
// channel. The protocol dictates a strict ping-pong: each pending C-MOVE-RSP
// precedes exactly one batch of C-STORE sub-operations, so the two sockets
// are served by alternation, never in parallel.
func (m *ULConnectionManager) runMoveEventLoop(currentEvent ULEvent, outDatasets *[]*dicom.Dataset) stateType {
	c := m.control
	waiting := false
	for {
		if !waiting {
			if currentEvent.event == evtNone {
				return c.currentState
			}
			_, waiting = handleEvent(c, currentEvent)
			if c.raised != nil {
				currentEvent = *c.raised
				c.raised = nil
				waiting = false
				continue
			}
			currentEvent = ULEvent{event: evtNone}
		}
		switch c.currentState {
		case sta01, sta13, staDoesNotExist:
			return c.currentState
		}
		if !waiting {
			continue
		}

		msg := nextMessage(c)
		currentEvent = msg.event
		waiting = false
		if currentEvent.event != evt10 {
			continue
		}
		if !msg.complete {
			waiting = true
			continue
		}
		rsp, ok := msg.command.(*dimse.CMoveRsp)
		if !ok {
			dicomlog.Vprintf(0, "dicom.moveLoop: unexpected DIMSE message %v on control channel", msg.command)
			waiting = true
			currentEvent = ULEvent{event: evtNone}
			continue
		}
		if rsp.Status.Status.Pending() {
			// A batch of C-STORE sub-operations is on its way to the
			// secondary channel. Pump it until the dataset count stops
			// growing.
			if err := m.secondary.initListener(m.returnPort); err != nil {
				dicomlog.Vprintf(0, "dicom.moveLoop: secondary transport: %v", err)
				currentEvent = ULEvent{event: evt15, pdu: constructAbortPDU()}
				continue
			}
			for {
				before := len(*outDatasets)
				state := runEventLoop(ULEvent{event: evtNone}, m.secondary, outDatasets, true)
				dicomlog.Vprintf(1, "dicom.moveLoop: secondary pass ended in %v, %d dataset(s)", state, len(*outDatasets))
				if len(*outDatasets) == before {
					break
				}
			}
			waiting = true
			currentEvent = ULEvent{event: evtNone}
			continue
		}
		// Terminal C-MOVE-RSP: log status and sub-operation counters.
		dicomlog.Vprintf(1, "dicom.moveLoop: final status 0x%04X (%s): completed %d, failed %d, warning %d",
			uint16(rsp.Status.Status), dimse.StatusString(rsp.Status.Status),
			rsp.NumberOfCompletedSuboperations, rsp.NumberOfFailedSuboperations,
			rsp.NumberOfWarningSuboperations)
		if rsp.Status.Status != dimse.StatusSuccess {
			logServiceFailure(c, rsp, &rsp.Status)
		}
		currentEvent = ULEvent{event: evtNone}
	}
}

// Release performs the orderly release handshake on the control connection.
// Returns nil iff the machine ended idle.
func (m *ULConnectionManager) Release(timeout time.Duration) error {
	if m.control == nil || m.control.currentState != sta06 {
		return ErrNotEstablished
	}
	if timeout > 0 {
		m.control.timer.SetTimeout(timeout)
	}
	var empty []*dicom.Dataset
	state := runEventLoop(ULEvent{event: evt11}, m.control, &empty, false)
	if m.secondary != nil {
		m.secondary.shutdown()
	}
	if state != sta01 {
		return fmt.Errorf("%w: final state %v", ErrReleaseFailed, state)
	}
	return nil
}

// Abort tears the association down immediately with an A-ABORT (service-user
// source). Usable from any state.
func (m *ULConnectionManager) Abort() {
	if m.control != nil && m.control.conn != nil {
		var empty []*dicom.Dataset
		runEventLoop(ULEvent{event: evt15, pdu: constructAbortPDU()}, m.control, &empty, false)
		m.control.shutdown()
	}
	if m.secondary != nil {
		m.secondary.shutdown()
	}
}

// Close releases both connections. Safe on every path.
func (m *ULConnectionManager) Close() {
	if m.control != nil {
		m.control.shutdown()
	}
	if m.secondary != nil {
		m.secondary.shutdown()
	}
}
