package dimse

// The C-* response messages. Every response carries a Status; pending
// statuses announce further responses to come.

import (
	"fmt"
	"io"

	"github.com/openrad/go-dicomul/commandset"
	"github.com/suyashkumar/dicom"
)

// CEchoRsp is the C-ECHO response. P3.7 9.1.5.
type CEchoRsp struct {
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	Status                    Status
	Extra                     []*dicom.Element
}

func (v *CEchoRsp) Encode(e io.Writer) error {
	f := messageFields{}
	f.add(commandset.CommandField, v.CommandField())
	f.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	f.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	f.addStatus(v.Status)
	return f.encode(e, v.Extra)
}

func (CEchoRsp) decode(d *MessageDecoder) (*CEchoRsp, error) {
	v := &CEchoRsp{
		MessageIDBeingRespondedTo: d.getUInt16(commandset.MessageIDBeingRespondedTo, RequiredElement),
		CommandDataSetType:        d.getDataSetType(),
		Status:                    d.getStatus(),
	}
	v.Extra = d.UnparsedElements()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: decode C-ECHO-RSP: %w", err)
	}
	return v, nil
}

func (v *CEchoRsp) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CEchoRsp) CommandField() uint16 { return CommandFieldCEchoRsp }
func (v *CEchoRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CEchoRsp) GetStatus() *Status { return &v.Status }

func (v *CEchoRsp) String() string {
	return fmt.Sprintf("CEchoRsp{id:%d dataset:%v status:0x%04X}",
		v.MessageIDBeingRespondedTo, v.CommandDataSetType, uint16(v.Status.Status))
}

// CFindRsp is one C-FIND response; pending responses carry a matching
// identifier as the data payload. P3.7 9.1.2.
type CFindRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	Status                    Status
	Extra                     []*dicom.Element
}

func (v *CFindRsp) Encode(e io.Writer) error {
	f := messageFields{}
	f.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	f.add(commandset.CommandField, v.CommandField())
	f.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	f.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	f.addStatus(v.Status)
	return f.encode(e, v.Extra)
}

func (CFindRsp) decode(d *MessageDecoder) (*CFindRsp, error) {
	v := &CFindRsp{
		AffectedSOPClassUID:       d.getString(commandset.AffectedSOPClassUID, RequiredElement),
		MessageIDBeingRespondedTo: d.getUInt16(commandset.MessageIDBeingRespondedTo, RequiredElement),
		CommandDataSetType:        d.getDataSetType(),
		Status:                    d.getStatus(),
	}
	v.Extra = d.UnparsedElements()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: decode C-FIND-RSP: %w", err)
	}
	return v, nil
}

func (v *CFindRsp) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CFindRsp) CommandField() uint16 { return CommandFieldCFindRsp }
func (v *CFindRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CFindRsp) GetStatus() *Status { return &v.Status }

func (v *CFindRsp) String() string {
	return fmt.Sprintf("CFindRsp{sop:%s id:%d dataset:%v status:0x%04X}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.CommandDataSetType, uint16(v.Status.Status))
}

// CMoveRsp is one C-MOVE response with the sub-operation counters. Zero
// counters are omitted on the wire. P3.7 9.1.4.
type CMoveRsp struct {
	AffectedSOPClassUID            string
	MessageIDBeingRespondedTo      MessageID
	CommandDataSetType             CommandDataSetType
	NumberOfRemainingSuboperations uint16
	NumberOfCompletedSuboperations uint16
	NumberOfFailedSuboperations    uint16
	NumberOfWarningSuboperations   uint16
	Status                         Status
	Extra                          []*dicom.Element
}

func (v *CMoveRsp) Encode(e io.Writer) error {
	f := messageFields{}
	f.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	f.add(commandset.CommandField, v.CommandField())
	f.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	f.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	f.addStatus(v.Status)
	f.addIf(v.NumberOfRemainingSuboperations != 0,
		commandset.NumberOfRemainingSuboperations, v.NumberOfRemainingSuboperations)
	f.addIf(v.NumberOfCompletedSuboperations != 0,
		commandset.NumberOfCompletedSuboperations, v.NumberOfCompletedSuboperations)
	f.addIf(v.NumberOfFailedSuboperations != 0,
		commandset.NumberOfFailedSuboperations, v.NumberOfFailedSuboperations)
	f.addIf(v.NumberOfWarningSuboperations != 0,
		commandset.NumberOfWarningSuboperations, v.NumberOfWarningSuboperations)
	return f.encode(e, v.Extra)
}

func (CMoveRsp) decode(d *MessageDecoder) (*CMoveRsp, error) {
	v := &CMoveRsp{
		AffectedSOPClassUID:            d.getString(commandset.AffectedSOPClassUID, RequiredElement),
		MessageIDBeingRespondedTo:      d.getUInt16(commandset.MessageIDBeingRespondedTo, RequiredElement),
		CommandDataSetType:             d.getDataSetType(),
		NumberOfRemainingSuboperations: d.getUInt16(commandset.NumberOfRemainingSuboperations, OptionalElement),
		NumberOfCompletedSuboperations: d.getUInt16(commandset.NumberOfCompletedSuboperations, OptionalElement),
		NumberOfFailedSuboperations:    d.getUInt16(commandset.NumberOfFailedSuboperations, OptionalElement),
		NumberOfWarningSuboperations:   d.getUInt16(commandset.NumberOfWarningSuboperations, OptionalElement),
		Status:                         d.getStatus(),
	}
	v.Extra = d.UnparsedElements()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: decode C-MOVE-RSP: %w", err)
	}
	return v, nil
}

func (v *CMoveRsp) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CMoveRsp) CommandField() uint16 { return CommandFieldCMoveRsp }
func (v *CMoveRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CMoveRsp) GetStatus() *Status { return &v.Status }

func (v *CMoveRsp) String() string {
	return fmt.Sprintf("CMoveRsp{sop:%s id:%d dataset:%v subops(r/c/f/w):%d/%d/%d/%d status:0x%04X}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.CommandDataSetType,
		v.NumberOfRemainingSuboperations, v.NumberOfCompletedSuboperations,
		v.NumberOfFailedSuboperations, v.NumberOfWarningSuboperations, uint16(v.Status.Status))
}

// CStoreRsp acknowledges one stored object. P3.7 9.1.1.
type CStoreRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	AffectedSOPInstanceUID    string
	Status                    Status
	Extra                     []*dicom.Element
}

func (v *CStoreRsp) Encode(e io.Writer) error {
	f := messageFields{}
	f.add(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID)
	f.add(commandset.CommandField, v.CommandField())
	f.add(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo)
	f.add(commandset.CommandDataSetType, uint16(v.CommandDataSetType))
	f.addStatus(v.Status)
	f.add(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID)
	return f.encode(e, v.Extra)
}

func (CStoreRsp) decode(d *MessageDecoder) (*CStoreRsp, error) {
	v := &CStoreRsp{
		AffectedSOPClassUID:       d.getString(commandset.AffectedSOPClassUID, RequiredElement),
		MessageIDBeingRespondedTo: d.getUInt16(commandset.MessageIDBeingRespondedTo, RequiredElement),
		CommandDataSetType:        d.getDataSetType(),
		AffectedSOPInstanceUID:    d.getString(commandset.AffectedSOPInstanceUID, RequiredElement),
		Status:                    d.getStatus(),
	}
	v.Extra = d.UnparsedElements()
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("dimse: decode C-STORE-RSP: %w", err)
	}
	return v, nil
}

func (v *CStoreRsp) HasData() bool { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CStoreRsp) CommandField() uint16 { return CommandFieldCStoreRsp }
func (v *CStoreRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CStoreRsp) GetStatus() *Status { return &v.Status }

func (v *CStoreRsp) String() string {
	return fmt.Sprintf("CStoreRsp{sop:%s id:%d dataset:%v instance:%s status:0x%04X}",
		v.AffectedSOPClassUID, v.MessageIDBeingRespondedTo, v.CommandDataSetType,
		v.AffectedSOPInstanceUID, uint16(v.Status.Status))
}
