package dicomul

// Implements the network statemachine, as defined in P3.8 9.2.3.
// http://dicom.nema.org/medical/dicom/current/output/pdf/part08.pdf

import (
	"fmt"

	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/openrad/go-dicomul/pdu"
)

type stateType int

const (
	staDoesNotExist stateType = iota
	sta01
	sta02
	sta03
	sta04
	sta05
	sta06
	sta07
	sta08
	sta09
	sta10
	sta11
	sta12
	sta13
)

var stateDescriptions = map[stateType]string{
	staDoesNotExist: "Does not exist",
	sta01:           "Idle",
	sta02:           "Transport connection open (Awaiting A-ASSOCIATE-RQ PDU)",
	sta03:           "Awaiting local A-ASSOCIATE response primitive (from local user)",
	sta04:           "Awaiting transport connection opening to complete (from local transport service)",
	sta05:           "Awaiting A-ASSOCIATE-AC or A-ASSOCIATE-RJ PDU",
	sta06:           "Association established and ready for data transfer",
	sta07:           "Awaiting A-RELEASE-RP PDU",
	sta08:           "Awaiting local A-RELEASE response primitive (from local user)",
	sta09:           "Release collision requestor side; awaiting A-RELEASE response (from local user)",
	sta10:           "Release collision acceptor side; awaiting A-RELEASE-RP PDU",
	sta11:           "Release collision requestor side; awaiting A-RELEASE-RP PDU",
	sta12:           "Release collision acceptor side; awaiting A-RELEASE response primitive (from local user)",
	sta13:           "Awaiting Transport Connection Close Indication (Association no longer exists)",
}

func (s stateType) String() string {
	description, ok := stateDescriptions[s]
	if !ok {
		description = "Unknown state"
	}
	return fmt.Sprintf("sta%02d(%s)", int(s), description)
}

type eventType int

const (
	evtNone eventType = iota // Event does not exist
	evt01
	evt02
	evt03
	evt04
	evt05
	evt06
	evt07
	evt08
	evt09
	evt10
	evt11
	evt12
	evt13
	evt14
	evt15
	evt16
	evt17
	evt18
	evt19
)

var eventDescriptions = map[eventType]string{
	evtNone: "Event does not exist",
	evt01:   "A-ASSOCIATE request (local user)",
	evt02:   "Connection established (for service user)",
	evt03:   "A-ASSOCIATE-AC PDU (received on transport connection)",
	evt04:   "A-ASSOCIATE-RJ PDU (received on transport connection)",
	evt05:   "Connection accepted (for service provider)",
	evt06:   "A-ASSOCIATE-RQ PDU (on transport connection)",
	evt07:   "A-ASSOCIATE response primitive (accept)",
	evt08:   "A-ASSOCIATE response primitive (reject)",
	evt09:   "P-DATA request primitive",
	evt10:   "P-DATA-TF PDU (on transport connection)",
	evt11:   "A-RELEASE request primitive",
	evt12:   "A-RELEASE-RQ PDU (on transport)",
	evt13:   "A-RELEASE-RP PDU (on transport)",
	evt14:   "A-RELEASE response primitive",
	evt15:   "A-ABORT request primitive",
	evt16:   "A-ABORT PDU (on transport)",
	evt17:   "Transport connection closed indication (local transport service)",
	evt18:   "ARTIM timer expired (Association reject/release timer)",
	evt19:   "Unrecognized or invalid PDU received",
}

func (e eventType) String() string {
	description, ok := eventDescriptions[e]
	if !ok {
		description = "Unknown event"
	}
	return fmt.Sprintf("evt%02d(%s)", int(e), description)
}

// ULEvent is a tagged event driving the transition table: either a local
// primitive (possibly carrying PDUs to send) or the classification of a
// message just read off the transport.
type ULEvent struct {
	event eventType

	// pdu is the first PDU carried by the event, pdus the full message in
	// arrival (inbound) or send (outbound) order.
	pdu  pdu.PDU
	pdus []pdu.PDU

	err error
}

func (e *ULEvent) String() string {
	return fmt.Sprintf("type:%s err:%v pdu:%v", e.event.String(), e.err, e.pdu)
}

// stateAction is one of the AE/DT/AR/AA actions of P3.8 Table 9-1. The
// callback performs the action against the connection and returns the next
// state; WaitForPeer is set when the next transition is driven by an inbound
// PDU rather than a locally raised event.
type stateAction struct {
	Name        string
	Description string
	WaitForPeer bool
	Callback    func(c *Connection, event ULEvent) stateType
}

func (s *stateAction) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.Description)
}

var actionAe1 = &stateAction{"AE-1",
	"Issue TRANSPORT CONNECT request primitive to local transport service",
	false,
	func(c *Connection, event ULEvent) stateType {
		if err := c.open(c.timer.timeout); err != nil {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): AE-1: %v", c.label, err)
			c.raised = &ULEvent{event: evt17, err: err}
			return sta04
		}
		c.raised = &ULEvent{event: evt02}
		return sta04
	}}

var actionAe2 = &stateAction{"AE-2", "Connection established on the user side. Send A-ASSOCIATE-RQ PDU",
	true,
	func(c *Connection, event ULEvent) stateType {
		items := c.contextManager.generateAssociateRequest(
			c.requestedContexts, c.maxPDU,
			c.info.ImplementationClassUID, c.info.ImplementationVersionName)
		rq := &pdu.AAssociateRQ{
			ProtocolVersion: pdu.CurrentProtocolVersion,
			CalledAETitle:   c.info.CalledAETitle,
			CallingAETitle:  c.info.CallingAETitle,
			Items:           items,
		}
		if err := c.writePDU(rq); err != nil {
			c.raised = &ULEvent{event: evt17, err: err}
			return sta05
		}
		c.timer.Start()
		return sta05
	}}

var actionAe3 = &stateAction{"AE-3", "Issue A-ASSOCIATE confirmation (accept) primitive",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.timer.Stop()
		v := event.pdu.(*pdu.AAssociateAC)
		err := c.contextManager.onAssociateResponse(v.Items)
		if err == nil {
			return sta06
		}
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): AE-3: %v", c.label, err)
		return actionAa8.Callback(c, event)
	}}

var actionAe4 = &stateAction{"AE-4", "Issue A-ASSOCIATE confirmation (reject) primitive and close transport connection",
	false,
	func(c *Connection, event ULEvent) stateType {
		if rj, ok := event.pdu.(*pdu.AAssociateRj); ok {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): association rejected: result %d source %d reason %d",
				c.label, rj.Result, rj.Source, rj.Reason)
		}
		c.timer.Stop()
		c.close()
		return sta01
	}}

var actionAe5 = &stateAction{"AE-5", "Issue Transport connection response primitive; start ARTIM timer",
	true,
	func(c *Connection, event ULEvent) stateType {
		c.timer.Start()
		return sta02
	}}

var actionAe6 = &stateAction{"AE-6", "Stop ARTIM timer; if the A-ASSOCIATE-RQ is acceptable raise the accept response, otherwise the reject response",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.timer.Stop()
		v := event.pdu.(*pdu.AAssociateRQ)
		if v.ProtocolVersion != 0x0001 {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): wrong remote protocol version 0x%x", c.label, v.ProtocolVersion)
			c.raised = &ULEvent{event: evt08, pdu: &pdu.AAssociateRj{
				Result: pdu.ResultRejectedPermanent,
				Source: pdu.SourceULServiceProviderACSE,
				Reason: 2,
			}}
			return sta03
		}
		responses, err := c.contextManager.onAssociateRequest(v.Items, c.maxPDU)
		if err != nil {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): AE-6: %v", c.label, err)
			c.raised = &ULEvent{event: evt08, pdu: &pdu.AAssociateRj{
				Result: pdu.ResultRejectedPermanent,
				Source: pdu.SourceULServiceProviderACSE,
				Reason: 1,
			}}
			return sta03
		}
		doassert(len(responses) > 0)
		c.raised = &ULEvent{event: evt07, pdu: &pdu.AAssociateAC{
			ProtocolVersion: pdu.CurrentProtocolVersion,
			CalledAETitle:   v.CalledAETitle,
			CallingAETitle:  v.CallingAETitle,
			Items:           responses,
		}}
		return sta03
	}}

var actionAe7 = &stateAction{"AE-7", "Send A-ASSOCIATE-AC PDU",
	true,
	func(c *Connection, event ULEvent) stateType {
		if err := c.writePDU(event.pdu.(*pdu.AAssociateAC)); err != nil {
			c.raised = &ULEvent{event: evt17, err: err}
		}
		c.timer.Stop()
		return sta06
	}}

var actionAe8 = &stateAction{"AE-8", "Send A-ASSOCIATE-RJ PDU and start ARTIM timer",
	true,
	func(c *Connection, event ULEvent) stateType {
		if err := c.writePDU(event.pdu.(*pdu.AAssociateRj)); err != nil {
			c.raised = &ULEvent{event: evt17, err: err}
		}
		c.timer.Start()
		return sta13
	}}

// Data transfer related actions
var actionDt1 = &stateAction{"DT-1", "Send P-DATA-TF PDU",
	true,
	func(c *Connection, event ULEvent) stateType {
		doassert(len(event.pdus) > 0)
		for _, v := range event.pdus {
			if err := c.writePDU(v); err != nil {
				c.raised = &ULEvent{event: evt17, err: err}
				return sta06
			}
		}
		return sta06
	}}

var actionDt2 = &stateAction{"DT-2", "Send P-DATA indication primitive",
	true,
	func(c *Connection, event ULEvent) stateType {
		// The event loop consumes the PDV content; the table only confirms
		// the state.
		return sta06
	}}

// Association release related actions
var actionAr1 = &stateAction{"AR-1", "Send A-RELEASE-RQ PDU",
	true,
	func(c *Connection, event ULEvent) stateType {
		if err := c.writePDU(constructReleasePDU()); err != nil {
			c.raised = &ULEvent{event: evt17, err: err}
			return sta07
		}
		c.timer.Start()
		return sta07
	}}

var actionAr2 = &stateAction{"AR-2", "Issue A-RELEASE indication primitive",
	false,
	func(c *Connection, event ULEvent) stateType {
		// The facade is a pure SCU (plus the Move store SCP); the release
		// response is raised immediately.
		c.raised = &ULEvent{event: evt14}
		return sta08
	}}

var actionAr3 = &stateAction{"AR-3", "Issue A-RELEASE confirmation primitive and close transport connection",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.timer.Stop()
		c.close()
		return sta01
	}}

var actionAr4 = &stateAction{"AR-4", "Issue A-RELEASE-RP PDU and start ARTIM timer",
	true,
	func(c *Connection, event ULEvent) stateType {
		if err := c.writePDU(&pdu.AReleaseRp{}); err != nil {
			c.raised = &ULEvent{event: evt17, err: err}
			return sta13
		}
		c.timer.Start()
		return sta13
	}}

var actionAr5 = &stateAction{"AR-5", "Stop ARTIM timer",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.timer.Stop()
		c.close()
		return sta01
	}}

var actionAr6 = &stateAction{"AR-6", "Issue P-DATA indication",
	true,
	func(c *Connection, event ULEvent) stateType {
		return sta07
	}}

var actionAr7 = &stateAction{"AR-7", "Issue P-DATA-TF PDU",
	false,
	func(c *Connection, event ULEvent) stateType {
		for _, v := range event.pdus {
			if err := c.writePDU(v); err != nil {
				c.raised = &ULEvent{event: evt17, err: err}
				return sta08
			}
		}
		c.raised = &ULEvent{event: evt14}
		return sta08
	}}

var actionAr8 = &stateAction{"AR-8", "Issue A-RELEASE indication (release collision): requestor proceeds to Sta09, acceptor to Sta10",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.raised = &ULEvent{event: evt14}
		if c.isRequestor {
			return sta09
		}
		return sta10
	}}

var actionAr9 = &stateAction{"AR-9", "Send A-RELEASE-RP PDU",
	true,
	func(c *Connection, event ULEvent) stateType {
		if err := c.writePDU(&pdu.AReleaseRp{}); err != nil {
			c.raised = &ULEvent{event: evt17, err: err}
		}
		return sta11
	}}

var actionAr10 = &stateAction{"AR-10", "Issue A-RELEASE confirmation primitive",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.raised = &ULEvent{event: evt14}
		return sta12
	}}

// Association abort related actions
var actionAa1 = &stateAction{"AA-1", "Send A-ABORT PDU (service-user source) and start (or restart) ARTIM timer",
	true,
	func(c *Connection, event ULEvent) stateType {
		if c.conn == nil {
			c.timer.Stop()
			return sta01
		}
		diagnostic := pdu.AbortReasonNotSpecified
		if c.currentState == sta02 {
			diagnostic = pdu.AbortReasonUnexpectedPDU
		}
		if err := c.writePDU(&pdu.AAbort{Source: pdu.AbortSourceUser, Reason: diagnostic}); err != nil {
			c.timer.Stop()
			c.close()
			return sta01
		}
		c.timer.Start()
		return sta13
	}}

var actionAa2 = &stateAction{"AA-2", "Stop ARTIM timer if running. Close transport connection",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.timer.Stop()
		c.close()
		return sta01
	}}

var actionAa3 = &stateAction{"AA-3", "Issue A-ABORT (or A-P-ABORT) indication and close transport connection",
	false,
	func(c *Connection, event ULEvent) stateType {
		if ab, ok := event.pdu.(*pdu.AAbort); ok {
			dicomlog.Vprintf(0, "dicom.stateMachine(%s): association aborted by peer: source %d reason %d",
				c.label, ab.Source, ab.Reason)
		}
		c.timer.Stop()
		c.close()
		return sta01
	}}

var actionAa4 = &stateAction{"AA-4", "Issue A-P-ABORT indication primitive",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.timer.Stop()
		c.close()
		return sta01
	}}

var actionAa5 = &stateAction{"AA-5", "Stop ARTIM timer",
	false,
	func(c *Connection, event ULEvent) stateType {
		c.timer.Stop()
		return sta01
	}}

var actionAa6 = &stateAction{"AA-6", "Ignore PDU",
	true,
	func(c *Connection, event ULEvent) stateType {
		return sta13
	}}

var actionAa7 = &stateAction{"AA-7", "Send A-ABORT PDU",
	true,
	func(c *Connection, event ULEvent) stateType {
		if c.conn == nil {
			c.timer.Stop()
			return sta01
		}
		if err := c.writePDU(&pdu.AAbort{Source: pdu.AbortSourceProvider, Reason: 0}); err != nil {
			c.timer.Stop()
			c.close()
			return sta01
		}
		return sta13
	}}

var actionAa8 = &stateAction{"AA-8", "Send A-ABORT PDU (service-dul source), issue an A-P-ABORT indication and start ARTIM timer",
	true,
	func(c *Connection, event ULEvent) stateType {
		if c.conn == nil {
			c.timer.Stop()
			return sta01
		}
		if err := c.writePDU(&pdu.AAbort{Source: pdu.AbortSourceProvider, Reason: 0}); err != nil {
			c.timer.Stop()
			c.close()
			return sta01
		}
		c.timer.Start()
		return sta13
	}}

type stateTransitionKey struct {
	current stateType
	event   eventType
}

// P3.8 Table 9-1, with ARTIM expiry mapped to AA-4 in Sta5-Sta8 and to AA-2
// in Sta2 and Sta13, so a silent peer in those states lands the machine back
// in Sta1. The release collision states Sta9-Sta12 have no ARTIM row; expiry
// there takes the AA-1 fallback of handleEvent.
var stateTransitions = map[stateTransitionKey]*stateAction{
	{sta01, evt01}: actionAe1,
	{sta01, evt05}: actionAe5,
	{sta02, evt03}: actionAa1,
	{sta02, evt04}: actionAa1,
	{sta02, evt06}: actionAe6,
	{sta02, evt10}: actionAa1,
	{sta02, evt12}: actionAa1,
	{sta02, evt13}: actionAa1,
	{sta02, evt16}: actionAa2,
	{sta02, evt17}: actionAa5,
	{sta02, evt18}: actionAa2,
	{sta02, evt19}: actionAa1,
	{sta03, evt03}: actionAa8,
	{sta03, evt04}: actionAa8,
	{sta03, evt06}: actionAa8,
	{sta03, evt07}: actionAe7,
	{sta03, evt08}: actionAe8,
	{sta03, evt10}: actionAa8,
	{sta03, evt12}: actionAa8,
	{sta03, evt13}: actionAa8,
	{sta03, evt15}: actionAa1,
	{sta03, evt16}: actionAa3,
	{sta03, evt17}: actionAa4,
	{sta03, evt19}: actionAa8,
	{sta04, evt02}: actionAe2,
	{sta04, evt15}: actionAa2,
	{sta04, evt17}: actionAa4,
	{sta05, evt03}: actionAe3,
	{sta05, evt04}: actionAe4,
	{sta05, evt06}: actionAa8,
	{sta05, evt10}: actionAa8,
	{sta05, evt12}: actionAa8,
	{sta05, evt13}: actionAa8,
	{sta05, evt15}: actionAa1,
	{sta05, evt16}: actionAa3,
	{sta05, evt17}: actionAa4,
	{sta05, evt18}: actionAa4,
	{sta05, evt19}: actionAa8,
	{sta06, evt03}: actionAa8,
	{sta06, evt04}: actionAa8,
	{sta06, evt06}: actionAa8,
	{sta06, evt09}: actionDt1,
	{sta06, evt10}: actionDt2,
	{sta06, evt11}: actionAr1,
	{sta06, evt12}: actionAr2,
	{sta06, evt13}: actionAa8,
	{sta06, evt15}: actionAa1,
	{sta06, evt16}: actionAa3,
	{sta06, evt17}: actionAa4,
	{sta06, evt18}: actionAa4,
	{sta06, evt19}: actionAa8,
	{sta07, evt03}: actionAa8,
	{sta07, evt04}: actionAa8,
	{sta07, evt06}: actionAa8,
	{sta07, evt10}: actionAr6,
	{sta07, evt12}: actionAr8,
	{sta07, evt13}: actionAr3,
	{sta07, evt15}: actionAa1,
	{sta07, evt16}: actionAa3,
	{sta07, evt17}: actionAa4,
	{sta07, evt18}: actionAa4,
	{sta07, evt19}: actionAa8,
	{sta08, evt03}: actionAa8,
	{sta08, evt04}: actionAa8,
	{sta08, evt06}: actionAa8,
	{sta08, evt09}: actionAr7,
	{sta08, evt10}: actionAa8,
	{sta08, evt12}: actionAa8,
	{sta08, evt13}: actionAa8,
	{sta08, evt14}: actionAr4,
	{sta08, evt15}: actionAa1,
	{sta08, evt16}: actionAa3,
	{sta08, evt17}: actionAa4,
	{sta08, evt18}: actionAa4,
	{sta08, evt19}: actionAa8,
	{sta09, evt03}: actionAa8,
	{sta09, evt04}: actionAa8,
	{sta09, evt06}: actionAa8,
	{sta09, evt10}: actionAa8,
	{sta09, evt12}: actionAa8,
	{sta09, evt13}: actionAa8,
	{sta09, evt14}: actionAr9,
	{sta09, evt15}: actionAa1,
	{sta09, evt16}: actionAa3,
	{sta09, evt17}: actionAa4,
	{sta09, evt19}: actionAa8,
	{sta10, evt03}: actionAa8,
	{sta10, evt04}: actionAa8,
	{sta10, evt06}: actionAa8,
	{sta10, evt10}: actionAa8,
	{sta10, evt12}: actionAa8,
	{sta10, evt13}: actionAr10,
	{sta10, evt15}: actionAa1,
	{sta10, evt16}: actionAa3,
	{sta10, evt17}: actionAa4,
	{sta10, evt19}: actionAa8,
	{sta11, evt03}: actionAa8,
	{sta11, evt04}: actionAa8,
	{sta11, evt06}: actionAa8,
	{sta11, evt10}: actionAa8,
	{sta11, evt12}: actionAa8,
	{sta11, evt13}: actionAr3,
	{sta11, evt15}: actionAa1,
	{sta11, evt16}: actionAa3,
	{sta11, evt17}: actionAa4,
	{sta11, evt19}: actionAa8,
	{sta12, evt03}: actionAa8,
	{sta12, evt04}: actionAa8,
	{sta12, evt06}: actionAa8,
	{sta12, evt10}: actionAa8,
	{sta12, evt12}: actionAa8,
	{sta12, evt13}: actionAa8,
	{sta12, evt14}: actionAr4,
	{sta12, evt15}: actionAa1,
	{sta12, evt16}: actionAa3,
	{sta12, evt17}: actionAa4,
	{sta12, evt19}: actionAa8,
	{sta13, evt03}: actionAa6,
	{sta13, evt04}: actionAa6,
	{sta13, evt06}: actionAa7,
	{sta13, evt07}: actionAa7,
	{sta13, evt08}: actionAa7,
	{sta13, evt09}: actionAa7,
	{sta13, evt10}: actionAa6,
	{sta13, evt11}: actionAa6,
	{sta13, evt12}: actionAa6,
	{sta13, evt13}: actionAa6,
	{sta13, evt14}: actionAa6,
	{sta13, evt15}: actionAa2,
	{sta13, evt16}: actionAa2,
	{sta13, evt17}: actionAr5,
	{sta13, evt18}: actionAa2,
	{sta13, evt19}: actionAa7,
}

func findAction(currentState stateType, event eventType) *stateAction {
	if action, ok := stateTransitions[stateTransitionKey{currentState, event}]; ok {
		return action
	}
	return nil
}

// handleEvent feeds one event through the transition table. It returns the
// resulting state and whether the next transition is driven by an inbound
// PDU. Unknown (state, event) pairs abort the association per P3.8: AA-1 and
// Sta13.
func handleEvent(c *Connection, event ULEvent) (stateType, bool) {
	action := findAction(c.currentState, event.event)
	if action == nil {
		dicomlog.Vprintf(0, "dicom.stateMachine(%s): no transition for state %v, event %v; aborting",
			c.label, c.currentState.String(), event.String())
		action = actionAa1
	}
	dicomlog.Vprintf(2, "dicom.stateMachine(%s): state %v, event %v -> action %s",
		c.label, c.currentState.String(), event.event.String(), action.Name)
	next := action.Callback(c, event)
	c.currentState = next
	dicomlog.Vprintf(2, "dicom.stateMachine(%s): next state %v", c.label, next.String())
	return next, action.WaitForPeer
}
