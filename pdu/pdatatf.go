package pdu

import (
	"bytes"
	"encoding/binary"

	"github.com/grailbio/go-dicom/dicomio"
)

// PDataTf defines P_DATA_TF. P3.8 9.3.5.
type PDataTf struct {
	Items []PresentationDataValueItem
}

func (PDataTf) Read(d *dicomio.Decoder) PDU {
	v := &PDataTf{}
	for !d.EOF() {
		item := ReadPresentationDataValueItem(d)
		if d.Error() != nil {
			break
		}
		v.Items = append(v.Items, item)
	}
	return v
}

func (v *PDataTf) Write() ([]byte, error) {
	e := dicomio.NewBytesEncoder(binary.BigEndian, dicomio.UnknownVR)
	for i := range v.Items {
		v.Items[i].Write(e)
	}
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

func (v *PDataTf) String() string {
	buf := bytes.Buffer{}
	buf.WriteString("P_DATA_TF{items: [")
	for i, item := range v.Items {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(item.String())
	}
	buf.WriteString("]}")
	return buf.String()
}
