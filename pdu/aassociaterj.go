package pdu

import (
	"encoding/binary"
	"fmt"

	"github.com/grailbio/go-dicom/dicomio"
)

// AAssociateRj defines A_ASSOCIATE_RJ. P3.8 9.3.4.
type AAssociateRj struct {
	Result byte
	Source byte
	Reason byte
}

// Possible values for AAssociateRj.Result.
const (
	ResultRejectedPermanent byte = 1
	ResultRejectedTransient byte = 2
)

// Possible values for AAssociateRj.Source.
const (
	SourceULServiceUser                 byte = 1
	SourceULServiceProviderACSE         byte = 2
	SourceULServiceProviderPresentation byte = 3
)

// Possible values for AAssociateRj.Reason when Source is the service user.
const (
	ReasonNone                               byte = 1
	ReasonApplicationContextNameNotSupported byte = 2
	ReasonCallingAETitleNotRecognized        byte = 3
	ReasonCalledAETitleNotRecognized         byte = 7
)

func (AAssociateRj) Read(d *dicomio.Decoder) PDU {
	v := &AAssociateRj{}
	d.Skip(1) // reserved
	v.Result = d.ReadByte()
	v.Source = d.ReadByte()
	v.Reason = d.ReadByte()
	return v
}

func (v *AAssociateRj) Write() ([]byte, error) {
	e := dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
	e.WriteZeros(1)
	e.WriteByte(v.Result)
	e.WriteByte(v.Source)
	e.WriteByte(v.Reason)
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func (v *AAssociateRj) String() string {
	return fmt.Sprintf("A_ASSOCIATE_RJ{result:%d source:%d reason:%d}", v.Result, v.Source, v.Reason)
}
