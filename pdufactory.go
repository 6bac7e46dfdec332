package dicomul

// Builders for the outbound command PDUs and helpers for carving messages
// into PDV fragments and back.

import (
	"bytes"
	"fmt"

	"github.com/openrad/go-dicomul/dimse"
	"github.com/openrad/go-dicomul/pdu"
	"github.com/openrad/go-dicomul/sopclass"
	"github.com/suyashkumar/dicom"
	dicomtag "github.com/suyashkumar/dicom/pkg/tag"
)

const priorityMedium = 0

// splitIntoPDUs produces the list of P_DATA_TF PDUs that collectively carry
// "data" on the given context, the final fragment flagged as last.
func splitIntoPDUs(c *Connection, contextID byte, command bool, data []byte) ([]pdu.PDU, error) {
	doassert(len(data) > 0)
	// Each PDV carries a 6 byte header inside the PDU; 8 bytes are kept
	// free for it.
	maxChunkSize := c.contextManager.peerMaxPDUSize - 8
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("invalid peer max PDU size %d", c.contextManager.peerMaxPDUSize)
	}
	var pdus []pdu.PDU
	for len(data) > 0 {
		chunkSize := len(data)
		if chunkSize > maxChunkSize {
			chunkSize = maxChunkSize
		}
		chunk := data[0:chunkSize]
		data = data[chunkSize:]
		pdus = append(pdus, &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
			{
				ContextID: contextID,
				Command:   command,
				Last:      len(data) == 0,
				Value:     chunk,
			}}})
	}
	return pdus, nil
}

// encodeCommand serializes a DIMSE command message into the P_DATA_TF PDUs
// carrying it, followed by the PDUs of the data payload when one is given.
func encodeCommand(c *Connection, contextID byte, msg dimse.Message, data []byte) ([]pdu.PDU, error) {
	buf := bytes.Buffer{}
	if err := dimse.EncodeMessage(&buf, msg); err != nil {
		return nil, fmt.Errorf("failed to encode DIMSE command %v: %w", msg, err)
	}
	pdus, err := splitIntoPDUs(c, contextID, true, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if msg.HasData() {
		doassert(len(data) > 0)
		dataPDUs, err := splitIntoPDUs(c, contextID, false, data)
		if err != nil {
			return nil, err
		}
		pdus = append(pdus, dataPDUs...)
	} else {
		doassert(len(data) == 0)
	}
	return pdus, nil
}

// createCEchoPDUs builds the C-ECHO-RQ message on the Verification context.
func createCEchoPDUs(c *Connection, messageID dimse.MessageID) ([]pdu.PDU, error) {
	context, err := c.contextManager.lookupByAbstractSyntaxUID(sopclass.VerificationSOPClass)
	if err != nil {
		return nil, err
	}
	msg := &dimse.CEchoRq{
		MessageID:          messageID,
		CommandDataSetType: dimse.CommandDataSetTypeNull,
	}
	return encodeCommand(c, context.contextID, msg, nil)
}

// createCFindPDUs builds the C-FIND-RQ command and identifier on the context
// matching the query's information model.
func createCFindPDUs(c *Connection, query *Query, messageID dimse.MessageID) ([]pdu.PDU, error) {
	context, err := c.contextManager.lookupByAbstractSyntaxUID(query.AbstractSyntaxUID)
	if err != nil {
		return nil, err
	}
	identifier, err := encodeIdentifier(query.Elements)
	if err != nil {
		return nil, err
	}
	msg := &dimse.CFindRq{
		AffectedSOPClassUID: query.AbstractSyntaxUID,
		MessageID:           messageID,
		Priority:            priorityMedium,
		CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
	}
	return encodeCommand(c, context.contextID, msg, identifier)
}

// createCMovePDUs builds the C-MOVE-RQ. The move destination is the calling
// AE title of the control connection, the local AE that the secondary (store)
// connection answers as.
func createCMovePDUs(c *Connection, query *Query, messageID dimse.MessageID, moveDestination string) ([]pdu.PDU, error) {
	context, err := c.contextManager.lookupByAbstractSyntaxUID(query.AbstractSyntaxUID)
	if err != nil {
		return nil, err
	}
	identifier, err := encodeIdentifier(query.Elements)
	if err != nil {
		return nil, err
	}
	msg := &dimse.CMoveRq{
		AffectedSOPClassUID: query.AbstractSyntaxUID,
		MessageID:           messageID,
		Priority:            priorityMedium,
		MoveDestination:     moveDestination,
		CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
	}
	return encodeCommand(c, context.contextID, msg, identifier)
}

// createCStoreRqPDUs builds the C-STORE-RQ command and dataset payload. The
// SOP class and instance UIDs come from the dataset itself.
func createCStoreRqPDUs(c *Connection, ds *dicom.Dataset, messageID dimse.MessageID) ([]pdu.PDU, error) {
	sopClassUID, err := datasetString(ds, dicomtag.SOPClassUID)
	if err != nil {
		return nil, err
	}
	sopInstanceUID, err := datasetString(ds, dicomtag.SOPInstanceUID)
	if err != nil {
		return nil, err
	}
	context, err := c.contextManager.lookupByAbstractSyntaxUID(sopClassUID)
	if err != nil {
		return nil, err
	}
	data, err := encodeDataSet(ds)
	if err != nil {
		return nil, err
	}
	msg := &dimse.CStoreRq{
		AffectedSOPClassUID:    sopClassUID,
		MessageID:              messageID,
		Priority:               priorityMedium,
		CommandDataSetType:     dimse.CommandDataSetTypeNonNull,
		AffectedSOPInstanceUID: sopInstanceUID,
	}
	return encodeCommand(c, context.contextID, msg, data)
}

// createCStoreRspPDUs acknowledges a received C-STORE-RQ with Status success,
// echoing the request's MessageID on the same context.
func createCStoreRspPDUs(c *Connection, req *dimse.CStoreRq, contextID byte) ([]pdu.PDU, error) {
	msg := &dimse.CStoreRsp{
		AffectedSOPClassUID:       req.AffectedSOPClassUID,
		MessageIDBeingRespondedTo: req.MessageID,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		AffectedSOPInstanceUID:    req.AffectedSOPInstanceUID,
		Status:                    dimse.Success,
	}
	return encodeCommand(c, contextID, msg, nil)
}

// determineEventByPDU maps an inbound PDU to the event driving the transition
// table. Unknown PDUs classify as evt19 (invalid PDU).
func determineEventByPDU(v pdu.PDU) eventType {
	switch v.(type) {
	case *pdu.AAssociateRQ:
		return evt06
	case *pdu.AAssociateAC:
		return evt03
	case *pdu.AAssociateRj:
		return evt04
	case *pdu.PDataTf:
		return evt10
	case *pdu.AReleaseRq:
		return evt12
	case *pdu.AReleaseRp:
		return evt13
	case *pdu.AAbort:
		return evt16
	default:
		return evt19
	}
}

// getPDVs flattens the PDV items of a message's P_DATA_TF PDUs in arrival
// order.
func getPDVs(pdus []pdu.PDU) []pdu.PresentationDataValueItem {
	var pdvs []pdu.PresentationDataValueItem
	for _, v := range pdus {
		if pd, ok := v.(*pdu.PDataTf); ok {
			pdvs = append(pdvs, pd.Items...)
		}
	}
	return pdvs
}

// concatenatePDVs joins the PDV payloads of a single message in arrival order.
func concatenatePDVs(pdvs []pdu.PresentationDataValueItem) []byte {
	var data []byte
	for _, pdv := range pdvs {
		data = append(data, pdv.Value...)
	}
	return data
}

// decodeDataSet parses dataset bytes received under the negotiated transfer
// syntax (Implicit VR Little Endian, the only one offered).
func decodeDataSet(data []byte) (*dicom.Dataset, error) {
	if len(data) == 0 {
		return nil, nil
	}
	reader := bytes.NewReader(data)
	ds, err := dicom.Parse(reader, int64(reader.Len()), nil, dicom.SkipPixelData(), dicom.SkipMetadataReadOnNewParserInit())
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return &ds, nil
}

// encodeDataSet serializes the non-meta elements of a dataset as Implicit VR
// Little Endian for the wire.
func encodeDataSet(ds *dicom.Dataset) ([]byte, error) {
	elems := make([]*dicom.Element, 0, len(ds.Elements))
	for _, elem := range ds.Elements {
		if elem.Tag.Group == 0x0002 { // file meta group never crosses the wire
			continue
		}
		elems = append(elems, elem)
	}
	buf := bytes.Buffer{}
	if err := dimse.EncodeElements(&buf, elems); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeIdentifier serializes query identifier elements.
func encodeIdentifier(elems []*dicom.Element) ([]byte, error) {
	buf := bytes.Buffer{}
	if err := dimse.EncodeElements(&buf, elems); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// constructReleasePDU builds an A-RELEASE-RQ.
func constructReleasePDU() pdu.PDU {
	return &pdu.AReleaseRq{}
}

// constructAbortPDU builds an A-ABORT with source service-user, reason 0.
func constructAbortPDU() pdu.PDU {
	return &pdu.AAbort{Source: pdu.AbortSourceUser, Reason: 0}
}
