package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// AAssociateRQ defines A_ASSOCIATE_RQ. P3.8 9.3.2.
type AAssociateRQ struct {
	ProtocolVersion uint16
	// Reserved uint16
	CalledAETitle  string
	CallingAETitle string
	Items          []SubItem
}

func (AAssociateRQ) Read(d *dicomio.Decoder) PDU {
	v := &AAssociateRQ{}
	decodeAAssociate(d, &v.ProtocolVersion, &v.CalledAETitle, &v.CallingAETitle, &v.Items)
	return v
}

func (v *AAssociateRQ) Write() ([]byte, error) {
	return encodeAAssociate(v.ProtocolVersion, v.CalledAETitle, v.CallingAETitle, v.Items)
}

func (v *AAssociateRQ) String() string {
	return fmt.Sprintf("A_ASSOCIATE_RQ{version:%v called:'%v' calling:'%v' items:%s}",
		v.ProtocolVersion, v.CalledAETitle, v.CallingAETitle, SubItemListString(v.Items))
}

// A_ASSOCIATE_RQ and _AC share the payload layout. P3.8 9.3.2 and 9.3.3.
func decodeAAssociate(d *dicomio.Decoder, protocolVersion *uint16, calledAETitle, callingAETitle *string, items *[]SubItem) {
	*protocolVersion = d.ReadUInt16()
	d.Skip(2) // Reserved
	*calledAETitle = d.ReadString(16)
	*callingAETitle = d.ReadString(16)
	d.Skip(8 * 4)
	for !d.EOF() {
		item := DecodeSubItem(d)
		if d.Error() != nil {
			break
		}
		*items = append(*items, item)
	}
	if *calledAETitle == "" || *callingAETitle == "" {
		d.SetError(fmt.Errorf("A_ASSOCIATE.{Called,Calling}AETitle must not be empty"))
	}
}

func encodeAAssociate(protocolVersion uint16, calledAETitle, callingAETitle string, items []SubItem) ([]byte, error) {
	if calledAETitle == "" || callingAETitle == "" {
		return nil, fmt.Errorf("CalledAETitle or CallingAETitle cannot be empty")
	}
	e := dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
	e.WriteUInt16(protocolVersion)
	e.WriteZeros(2) // Reserved
	e.WriteString(fillString(calledAETitle, 16))
	e.WriteString(fillString(callingAETitle, 16))
	e.WriteZeros(8 * 4)
	for _, item := range items {
		item.Write(e)
	}
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}
