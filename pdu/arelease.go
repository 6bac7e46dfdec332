package pdu

import (
	"encoding/binary"

	"github.com/grailbio/go-dicom/dicomio"
)

// AReleaseRq defines A_RELEASE_RQ. P3.8 9.3.6.
type AReleaseRq struct {
}

func (AReleaseRq) Read(d *dicomio.Decoder) PDU {
	d.Skip(4)
	return &AReleaseRq{}
}

func (v *AReleaseRq) Write() ([]byte, error) {
	e := dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
	e.WriteZeros(4)
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func (v *AReleaseRq) String() string {
	return "A_RELEASE_RQ"
}

// AReleaseRp defines A_RELEASE_RP. P3.8 9.3.7.
type AReleaseRp struct {
}

func (AReleaseRp) Read(d *dicomio.Decoder) PDU {
	d.Skip(4)
	return &AReleaseRp{}
}

func (v *AReleaseRp) Write() ([]byte, error) {
	e := dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
	e.WriteZeros(4)
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func (v *AReleaseRp) String() string {
	return "A_RELEASE_RP"
}
