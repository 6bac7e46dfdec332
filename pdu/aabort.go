package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// AbortReasonType is the A_ABORT diagnostic, meaningful when the source is the
// service provider. P3.8 9.3.8.
type AbortReasonType byte

const (
	AbortReasonNotSpecified         AbortReasonType = 0
	AbortReasonUnrecognizedPDU      AbortReasonType = 1
	AbortReasonUnexpectedPDU        AbortReasonType = 2
	AbortReasonUnrecognizedPDUParam AbortReasonType = 4
	AbortReasonUnexpectedPDUParam   AbortReasonType = 5
	AbortReasonInvalidPDUParam      AbortReasonType = 6
)

// Possible values for AAbort.Source.
const (
	AbortSourceUser     byte = 0
	AbortSourceProvider byte = 2
)

// AAbort defines A_ABORT. P3.8 9.3.8.
type AAbort struct {
	Source byte
	Reason AbortReasonType
}

func (AAbort) Read(d *dicomio.Decoder) PDU {
	v := &AAbort{}
	d.Skip(2)
	v.Source = d.ReadByte()
	v.Reason = AbortReasonType(d.ReadByte())
	return v
}

func (v *AAbort) Write() ([]byte, error) {
	e := dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
	e.WriteZeros(2)
	e.WriteByte(v.Source)
	e.WriteByte(byte(v.Reason))
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func (v *AAbort) String() string {
	return fmt.Sprintf("A_ABORT{source:%d reason:%d}", v.Source, v.Reason)
}
