package dicomul

// The single-connection event loop: reads framed PDUs, maps them to events,
// drives the transition table and reassembles command+data responses.

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
	"github.com/openrad/go-dicomul/commandset"
	"github.com/openrad/go-dicomul/dimse"
	"github.com/openrad/go-dicomul/pdu"
	"github.com/suyashkumar/dicom"
)

// inboundMessage is the classification of one complete message read off the
// transport.
type inboundMessage struct {
	event ULEvent

	// Set when event is a P-DATA-TF whose DIMSE command (and data payload,
	// if announced) assembled completely.
	contextID byte
	command   dimse.Message
	data      []byte
	complete  bool
}

// nextMessage reads and classifies one complete message. Read failures
// synthesise TransportClose; a missed ARTIM deadline synthesises the timer
// event. A non-P-DATA PDU interleaved into a fragmented message interrupts it
// and is classified instead.
func nextMessage(c *Connection) inboundMessage {
	pdus, err := c.readMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			dicomlog.Vprintf(1, "dicom.eventLoop(%s): ARTIM expired while waiting", c.label)
			return inboundMessage{event: ULEvent{event: evt18, err: err}}
		}
		if !errors.Is(err, io.EOF) {
			dicomlog.Vprintf(0, "dicom.eventLoop(%s): read failed: %v", c.label, err)
		}
		return inboundMessage{event: ULEvent{event: evt17, err: err}}
	}
	c.lastMessage = pdus
	if c.timer.Expired() {
		return inboundMessage{event: ULEvent{event: evt18}}
	}
	event := ULEvent{event: determineEventByPDU(pdus[0]), pdu: pdus[0], pdus: pdus}
	if event.event != evt10 {
		return inboundMessage{event: event}
	}
	for _, p := range pdus {
		pd, ok := p.(*pdu.PDataTf)
		if !ok {
			// Interrupting PDU inside a fragmented message: classify it and
			// let the table deal with it.
			return inboundMessage{event: ULEvent{event: determineEventByPDU(p), pdu: p, pdus: []pdu.PDU{p}}}
		}
		contextID, command, data, err := c.assembler.AddDataPDU(pd)
		if err != nil {
			dicomlog.Vprintf(0, "dicom.eventLoop(%s): failed to assemble message: %v", c.label, err)
			return inboundMessage{event: ULEvent{event: evt19, err: err}}
		}
		if command != nil {
			// The PDVs must arrive on a context negotiated for this
			// association; anything else is a protocol violation.
			entry, err := c.contextManager.lookupByContextID(contextID)
			if err != nil {
				dicomlog.Vprintf(0, "dicom.eventLoop(%s): %v", c.label, err)
				return inboundMessage{event: ULEvent{event: evt19, err: err}}
			}
			dicomlog.Vprintf(2, "dicom.eventLoop(%s): DIMSE message on context %d (%s): %v",
				c.label, contextID, dicomuid.UIDString(entry.abstractSyntaxUID), command)
			return inboundMessage{event: event, contextID: contextID, command: command, data: data, complete: true}
		}
	}
	return inboundMessage{event: event}
}

// runEventLoop drives one connection through events until it is terminal or
// transfer-ready, appending response datasets to outDatasets. startWaiting
// puts the loop into passive mode: the first step is a read, as on the Move
// secondary connection.
func runEventLoop(currentEvent ULEvent, c *Connection, outDatasets *[]*dicom.Dataset, startWaiting bool) stateType {
	waiting := startWaiting
	receivingData := false
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
		if c.currentState == sta06 && !waiting && !receivingData {
			return c.currentState
		}
		if !waiting {
			continue
		}

		msg := nextMessage(c)
		currentEvent = msg.event
		waiting = false
		if currentEvent.event != evt10 {
			// A-RELEASE, A-ABORT, A-ASSOCIATE-*, transport or timer events
			// fall through to the transition table on the next iteration.
			continue
		}
		if !msg.complete {
			// More fragments (or the announced data message) still to come.
			waiting = true
			continue
		}

		if msg.command.CommandField() == dimse.CommandFieldCStoreRq {
			// C-STORE-RQ arrives only on the secondary connection during a
			// C-MOVE. Acknowledge on the same context; the peer releases.
			req := msg.command.(*dimse.CStoreRq)
			if req.MoveOriginatorApplicationEntityTitle != "" {
				dicomlog.Vprintf(1, "dicom.eventLoop(%s): sub-operation from %q (originator message %d)",
					c.label, strings.TrimSpace(req.MoveOriginatorApplicationEntityTitle), req.MoveOriginatorMessageID)
			}
			appendDataSet(c, outDatasets, msg.data)
			rsp, err := createCStoreRspPDUs(c, req, msg.contextID)
			if err != nil {
				dicomlog.Vprintf(0, "dicom.eventLoop(%s): failed to build C-STORE-RSP: %v", c.label, err)
				currentEvent = ULEvent{event: evt19, err: err}
				continue
			}
			for _, v := range rsp {
				if err := c.writePDU(v); err != nil {
					currentEvent = ULEvent{event: evt17, err: err}
					break
				}
			}
			if currentEvent.event == evt17 {
				continue
			}
			receivingData = true
			waiting = true
			currentEvent = ULEvent{event: evtNone}
			continue
		}

		status := msg.command.GetStatus()
		switch {
		case status == nil:
			// A request other than C-STORE-RQ has no business arriving here.
			dicomlog.Vprintf(0, "dicom.eventLoop(%s): unexpected DIMSE request %v", c.label, msg.command)
			waiting = true
		case status.Status.Pending():
			appendDataSet(c, outDatasets, msg.data)
			receivingData = true
			waiting = true
		case status.Status == dimse.StatusSuccess:
			if msg.command.CommandField() == dimse.CommandFieldCStoreRsp {
				appendStatusDataSet(c, outDatasets, msg.command)
			}
			receivingData = false
		default:
			logServiceFailure(c, msg.command, status)
			if msg.command.CommandField() == dimse.CommandFieldCStoreRsp {
				appendStatusDataSet(c, outDatasets, msg.command)
			}
			receivingData = false
		}
		currentEvent = ULEvent{event: evtNone}
	}
}

// appendDataSet decodes and appends one received dataset. Decode failures are
// logged and skipped; the protocol run continues.
func appendDataSet(c *Connection, outDatasets *[]*dicom.Dataset, data []byte) {
	if len(data) == 0 {
		return
	}
	ds, err := decodeDataSet(data)
	if err != nil {
		dicomlog.Vprintf(0, "dicom.eventLoop(%s): failed to decode dataset: %v", c.label, err)
		return
	}
	if ds != nil {
		*outDatasets = append(*outDatasets, ds)
	}
}

// appendStatusDataSet represents a terminal C-STORE-RSP as a small status
// dataset for the caller.
func appendStatusDataSet(c *Connection, outDatasets *[]*dicom.Dataset, msg dimse.Message) {
	rsp, ok := msg.(*dimse.CStoreRsp)
	if !ok {
		return
	}
	var elems []*dicom.Element
	if e, err := dimse.NewElement(commandset.CommandField, msg.CommandField()); err == nil {
		elems = append(elems, e)
	}
	if e, err := dimse.NewElement(commandset.Status, int(rsp.Status.Status)); err == nil {
		elems = append(elems, e)
	}
	if rsp.AffectedSOPInstanceUID != "" {
		if e, err := dimse.NewElement(commandset.AffectedSOPInstanceUID, rsp.AffectedSOPInstanceUID); err == nil {
			elems = append(elems, e)
		}
	}
	*outDatasets = append(*outDatasets, &dicom.Dataset{Elements: elems})
}

// logServiceFailure reports a non-pending, non-success DIMSE status along
// with the optional error comment (0000,0902). The offending element
// (0000,0901) is not decoded into the status and is not logged.
func logServiceFailure(c *Connection, msg dimse.Message, status *dimse.Status) {
	dicomlog.Vprintf(0, "dicom.eventLoop(%s): DIMSE status 0x%04X (%s) for %v",
		c.label, uint16(status.Status), dimse.StatusString(status.Status), msg)
	if status.ErrorComment != "" {
		dicomlog.Vprintf(0, "dicom.eventLoop(%s): error comment: %s", c.label, status.ErrorComment)
	}
}
