package dimse

import (
	"bytes"
	"fmt"
	"io"

	"github.com/openrad/go-dicomul/commandset"
	"github.com/suyashkumar/dicom"
)

// Message is one DIMSE command set, request or response.
type Message interface {
	fmt.Stringer

	// Encode writes the message's command elements in wire order.
	Encode(io.Writer) error
	// GetMessageID reports the MessageID (requests) or the
	// MessageIDBeingRespondedTo (responses).
	GetMessageID() MessageID
	// CommandField reports the (0000,0100) value identifying the message.
	CommandField() uint16
	// GetStatus is nil on requests and the DIMSE status on responses.
	GetStatus() *Status
	// HasData reports whether a data payload follows the command message.
	HasData() bool
}

// Command field values. P3.7 E.1.
const (
	CommandFieldCStoreRq  uint16 = 0x0001
	CommandFieldCStoreRsp uint16 = 0x8001
	CommandFieldCFindRq   uint16 = 0x0020
	CommandFieldCFindRsp  uint16 = 0x8020
	CommandFieldCGetRq    uint16 = 0x0010
	CommandFieldCGetRsp   uint16 = 0x8010
	CommandFieldCMoveRq   uint16 = 0x0021
	CommandFieldCMoveRsp  uint16 = 0x8021
	CommandFieldCEchoRq   uint16 = 0x0030
	CommandFieldCEchoRsp  uint16 = 0x8030
)

type MessageID = uint16

// ReadMessage decodes one DIMSE message from a parsed command set.
func ReadMessage(dataset *dicom.Dataset) (Message, error) {
	d := newMessageDecoder(dataset)
	commandField := d.getUInt16(commandset.CommandField, RequiredElement)
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: read message: %w", err)
	}
	return d.decode(commandField)
}

// EncodeMessage serializes a command set: the group length element followed by
// the message's own elements. Commands are always encoded Implicit VR Little
// Endian, see P3.7 6.3.1.
func EncodeMessage(out io.Writer, v Message) error {
	body := bytes.Buffer{}
	if err := v.Encode(&body); err != nil {
		return fmt.Errorf("dimse: encode %v: %w", v, err)
	}
	header := messageFields{}
	header.add(commandset.CommandGroupLength, body.Len())
	if err := header.encode(out, nil); err != nil {
		return fmt.Errorf("dimse: encode group length: %w", err)
	}
	if _, err := out.Write(body.Bytes()); err != nil {
		return fmt.Errorf("dimse: write %v: %w", v, err)
	}
	return nil
}
