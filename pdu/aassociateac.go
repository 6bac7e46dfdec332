package pdu

import (
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// AAssociateAC defines A_ASSOCIATE_AC. P3.8 9.3.3. The AE titles are copied
// from the A_ASSOCIATE_RQ being acknowledged.
type AAssociateAC struct {
	ProtocolVersion uint16
	// Reserved uint16
	CalledAETitle  string
	CallingAETitle string
	Items          []SubItem
}

func (AAssociateAC) Read(d *dicomio.Decoder) PDU {
	v := &AAssociateAC{}
	decodeAAssociate(d, &v.ProtocolVersion, &v.CalledAETitle, &v.CallingAETitle, &v.Items)
	return v
}

func (v *AAssociateAC) Write() ([]byte, error) {
	return encodeAAssociate(v.ProtocolVersion, v.CalledAETitle, v.CallingAETitle, v.Items)
}

func (v *AAssociateAC) String() string {
	return fmt.Sprintf("A_ASSOCIATE_AC{version:%v called:'%v' calling:'%v' items:%s}",
		v.ProtocolVersion, v.CalledAETitle, v.CallingAETitle, SubItemListString(v.Items))
}
