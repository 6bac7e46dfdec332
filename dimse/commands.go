package dimse

// The C-* request messages. P3.7 9.1; field order follows the command set
// layout of Table E.1-1 (ascending tags).

import (
	"fmt"
	"io"

	"github.com/openrad/go-dicomul/commandset"
	"github.com/suyashkumar/dicom"
)

// CEchoRq is the C-ECHO request. P3.7 9.1.5.
type CEchoRq struct {
	MessageID          MessageID
	CommandDataSetType CommandDataSetType
	Extra              []*dicom.Element // Unclaimed elements, passed through
}

func (v *CEchoRq) Encode(e io.Writer) error {
	f := messageFields{}
	f.add(commandset.CommandField, v.CommandField())
	f.add(commandset.MessageID, v.MessageID)
	f.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	return f.encode(e, v.Extra)
}

func (CEchoRq) decode(d *MessageDecoder) (*CEchoRq, error) {
	v := &CEchoRq{
		MessageID:          d.getUInt16(commandset.MessageID, RequiredElement),
		CommandDataSetType: d.getDataSetType(),
	}
	v.Extra = d.UnparsedElements()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: decode C-ECHO-RQ: %w", err)
	}
	return v, nil
}

func (v *CEchoRq) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CEchoRq) CommandField() uint16 { return CommandFieldCEchoRq }
func (v *CEchoRq) GetMessageID() MessageID { return v.MessageID }
func (v *CEchoRq) GetStatus() *Status { return nil }

func (v *CEchoRq) String() string {
	return fmt.Sprintf("CEchoRq{id:%d dataset:%v}", v.MessageID, v.CommandDataSetType)
}

// CFindRq is the C-FIND request; the identifier dataset follows as the data
// payload. P3.7 9.1.2.
type CFindRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	Priority            uint16
	CommandDataSetType  CommandDataSetType
	Extra               []*dicom.Element
}

func (v *CFindRq) Encode(e io.Writer) error {
	f := messageFields{}
	f.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	f.add(commandset.CommandField, v.CommandField())
	f.add(commandset.MessageID, v.MessageID)
	f.add(commandset.Priority, v.Priority)
	f.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	return f.encode(e, v.Extra)
}

func (CFindRq) decode(d *MessageDecoder) (*CFindRq, error) {
	v := &CFindRq{
		AffectedSOPClassUID: d.getString(commandset.AffectedSOPClassUID, RequiredElement),
		MessageID:           d.getUInt16(commandset.MessageID, RequiredElement),
		Priority:            d.getUInt16(commandset.Priority, RequiredElement),
		CommandDataSetType:  d.getDataSetType(),
	}
	v.Extra = d.UnparsedElements()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: decode C-FIND-RQ: %w", err)
	}
	return v, nil
}

func (v *CFindRq) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CFindRq) CommandField() uint16 { return CommandFieldCFindRq }
func (v *CFindRq) GetMessageID() MessageID { return v.MessageID }
func (v *CFindRq) GetStatus() *Status { return nil }

func (v *CFindRq) String() string {
	return fmt.Sprintf("CFindRq{sop:%s id:%d prio:%d dataset:%v}",
		v.AffectedSOPClassUID, v.MessageID, v.Priority, v.CommandDataSetType)
}

// CMoveRq is the C-MOVE request. The destination is the AE title the peer
// dials back to with the sub-operations. P3.7 9.1.4.
type CMoveRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	Priority            uint16
	MoveDestination     string
	CommandDataSetType  CommandDataSetType
	Extra               []*dicom.Element
}

func (v *CMoveRq) Encode(e io.Writer) error {
	f := messageFields{}
	f.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	f.add(commandset.CommandField, v.CommandField())
	f.add(commandset.MessageID, v.MessageID)
	f.add(commandset.MoveDestination, v.MoveDestination)
	f.add(commandset.Priority, v.Priority)
	f.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	return f.encode(e, v.Extra)
}

func (CMoveRq) decode(d *MessageDecoder) (*CMoveRq, error) {
	v := &CMoveRq{
		AffectedSOPClassUID: d.getString(commandset.AffectedSOPClassUID, RequiredElement),
		MessageID:           d.getUInt16(commandset.MessageID, RequiredElement),
		Priority:            d.getUInt16(commandset.Priority, RequiredElement),
		MoveDestination:     d.getString(commandset.MoveDestination, RequiredElement),
		CommandDataSetType:  d.getDataSetType(),
	}
	v.Extra = d.UnparsedElements()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: decode C-MOVE-RQ: %w", err)
	}
	return v, nil
}

func (v *CMoveRq) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CMoveRq) CommandField() uint16 { return CommandFieldCMoveRq }
func (v *CMoveRq) GetMessageID() MessageID { return v.MessageID }
func (v *CMoveRq) GetStatus() *Status { return nil }

func (v *CMoveRq) String() string {
	return fmt.Sprintf("CMoveRq{sop:%s id:%d prio:%d dest:%q dataset:%v}",
		v.AffectedSOPClassUID, v.MessageID, v.Priority, v.MoveDestination, v.CommandDataSetType)
}

// CStoreRq is the C-STORE request; the object dataset follows as the data
// payload. The MoveOriginator pair is present only when the store is a C-MOVE
// sub-operation. P3.7 9.1.1.
type CStoreRq struct {
	AffectedSOPClassUID                  string
	MessageID                            MessageID
	Priority                             uint16
	CommandDataSetType                   CommandDataSetType
	AffectedSOPInstanceUID               string
	MoveOriginatorApplicationEntityTitle string
	MoveOriginatorMessageID              MessageID
	Extra                                []*dicom.Element
}

func (v *CStoreRq) Encode(e io.Writer) error {
	f := messageFields{}
	f.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	f.add(commandset.CommandField, v.CommandField())
	f.add(commandset.MessageID, v.MessageID)
	f.add(commandset.Priority, v.Priority)
	f.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	f.add(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	f.addIf(v.MoveOriginatorApplicationEntityTitle != "",
		commandset.MoveOriginatorApplicationEntityTitle, v.MoveOriginatorApplicationEntityTitle)
	f.addIf(v.MoveOriginatorMessageID != 0,
		commandset.MoveOriginatorMessageID, v.MoveOriginatorMessageID)
	return f.encode(e, v.Extra)
}

func (CStoreRq) decode(d *MessageDecoder) (*CStoreRq, error) {
	v := &CStoreRq{
		AffectedSOPClassUID:                  d.getString(commandset.AffectedSOPClassUID, RequiredElement),
		MessageID:                            d.getUInt16(commandset.MessageID, RequiredElement),
		Priority:                             d.getUInt16(commandset.Priority, RequiredElement),
		CommandDataSetType:                   d.getDataSetType(),
		AffectedSOPInstanceUID:               d.getString(commandset.AffectedSOPInstanceUID, RequiredElement),
		MoveOriginatorApplicationEntityTitle: d.getString(commandset.MoveOriginatorApplicationEntityTitle, OptionalElement),
		MoveOriginatorMessageID:              d.getUInt16(commandset.MoveOriginatorMessageID, OptionalElement),
	}
	v.Extra = d.UnparsedElements()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: decode C-STORE-RQ: %w", err)
	}
	return v, nil
}

func (v *CStoreRq) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CStoreRq) CommandField() uint16 { return CommandFieldCStoreRq }
func (v *CStoreRq) GetMessageID() MessageID { return v.MessageID }
func (v *CStoreRq) GetStatus() *Status { return nil }

func (v *CStoreRq) String() string {
	s := fmt.Sprintf("CStoreRq{sop:%s id:%d prio:%d dataset:%v instance:%s",
		v.AffectedSOPClassUID, v.MessageID, v.Priority, v.CommandDataSetType, v.AffectedSOPInstanceUID)
	if v.MoveOriginatorApplicationEntityTitle != "" {
		s += fmt.Sprintf(" origin:%q/%d", v.MoveOriginatorApplicationEntityTitle, v.MoveOriginatorMessageID)
	}
	return s + "}"
}
