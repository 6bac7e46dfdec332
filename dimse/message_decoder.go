package dimse

import (
	"errors"
	"fmt"

	"github.com/openrad/go-dicomul/commandset"
	"github.com/suyashkumar/dicom"
	dicomtag "github.com/suyashkumar/dicom/pkg/tag"
)

// ErrMissingElement reports a required command-set element absent from a
// received message.
var ErrMissingElement = errors.New("dimse: required command element missing")

// ErrUnsupportedCommand reports a command field this module does not speak
// (C-GET among them).
var ErrUnsupportedCommand = errors.New("dimse: unsupported command field")

type isOptionalElement int

const (
	RequiredElement isOptionalElement = iota
	OptionalElement
)

type CommandDataSetType uint16

const (
	// CommandDataSetTypeNull indicates that the DIMSE message has no data
	// payload, when set in the CommandDataSetType element. Any other value
	// announces a payload.
	CommandDataSetTypeNull CommandDataSetType = 0x101

	CommandDataSetTypeNonNull CommandDataSetType = 1
)

// MessageDecoder picks typed values out of a parsed command set. Errors
// accumulate: the getters record the first failure and the per-message decode
// checks Error() once at the end, so a malformed element never half-populates
// a message silently.
type MessageDecoder struct {
	elements map[dicomtag.Tag]*dicom.Element
	err      error
}

func newMessageDecoder(ds *dicom.Dataset) *MessageDecoder {
	d := &MessageDecoder{elements: make(map[dicomtag.Tag]*dicom.Element)}
	for _, elem := range ds.Elements {
		d.elements[elem.Tag] = elem
	}
	return d
}

// Error returns the first failure recorded by the getters.
func (d *MessageDecoder) Error() error {
	return d.err
}

func (d *MessageDecoder) setError(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *MessageDecoder) decode(commandField uint16) (Message, error) {
	switch commandField {
	case CommandFieldCStoreRq:
		return CStoreRq{}.decode(d)
	case CommandFieldCStoreRsp:
		return CStoreRsp{}.decode(d)
	case CommandFieldCFindRq:
		return CFindRq{}.decode(d)
	case CommandFieldCFindRsp:
		return CFindRsp{}.decode(d)
	case CommandFieldCMoveRq:
		return CMoveRq{}.decode(d)
	case CommandFieldCMoveRsp:
		return CMoveRsp{}.decode(d)
	case CommandFieldCEchoRq:
		return CEchoRq{}.decode(d)
	case CommandFieldCEchoRsp:
		return CEchoRsp{}.decode(d)
	default:
		return nil, fmt.Errorf("%w: 0x%04x", ErrUnsupportedCommand, commandField)
	}
}

// UnparsedElements drains whatever the message-specific decode did not claim.
func (d *MessageDecoder) UnparsedElements() []*dicom.Element {
	elems := make([]*dicom.Element, 0, len(d.elements))
	for _, elem := range d.elements {
		elems = append(elems, elem)
	}
	d.elements = make(map[dicomtag.Tag]*dicom.Element)
	return elems
}

func (d *MessageDecoder) getStatus() Status {
	return Status{
		Status:       StatusCode(d.getUInt16(commandset.Status, RequiredElement)),
		ErrorComment: d.getString(commandset.ErrorComment, OptionalElement),
	}
}

func (d *MessageDecoder) getDataSetType() CommandDataSetType {
	return CommandDataSetType(d.getUInt16(commandset.CommandDataSetType, RequiredElement))
}

// take claims the element for the tag so it does not surface in
// UnparsedElements. Missing required tags record ErrMissingElement.
func (d *MessageDecoder) take(t dicomtag.Tag, optional isOptionalElement) *dicom.Element {
	elem, ok := d.elements[t]
	if !ok {
		if optional == RequiredElement {
			d.setError(fmt.Errorf("%w: %s", ErrMissingElement, t.String()))
		}
		return nil
	}
	delete(d.elements, t)
	return elem
}

func (d *MessageDecoder) getString(t dicomtag.Tag, optional isOptionalElement) string {
	elem := d.take(t, optional)
	if elem == nil {
		return ""
	}
	if elem.Value == nil {
		d.setError(fmt.Errorf("dimse: tag %s has no value", t.String()))
		return ""
	}
	v, ok := elem.Value.GetValue().([]string)
	if !ok {
		d.setError(fmt.Errorf("dimse: tag %s is not a string element", t.String()))
		return ""
	}
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (d *MessageDecoder) getUInt16(t dicomtag.Tag, optional isOptionalElement) uint16 {
	elem := d.take(t, optional)
	if elem == nil {
		return 0
	}
	if elem.Value == nil || elem.Value.ValueType() != dicom.Ints {
		d.setError(fmt.Errorf("dimse: tag %s is not an integer element", t.String()))
		return 0
	}
	v, ok := elem.Value.GetValue().([]int)
	if !ok {
		d.setError(fmt.Errorf("dimse: tag %s is not an integer element", t.String()))
		return 0
	}
	if len(v) == 0 {
		return 0
	}
	if v[0] < 0 || v[0] > 65535 {
		d.setError(fmt.Errorf("dimse: tag %s value %d out of uint16 range", t.String(), v[0]))
		return 0
	}
	return uint16(v[0])
}
