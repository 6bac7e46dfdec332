// Package pdu implements the message types defined in P3.8. It sits below the
// DIMSE layer.
//
// http://dicom.nema.org/medical/dicom/current/output/pdf/part08.pdf
package pdu

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/go-dicom/dicomio"
)

const CurrentProtocolVersion uint16 = 1

// PDU is the interface for DUL messages like A-ASSOCIATE-AC, P-DATA-TF.
type PDU interface {
	fmt.Stringer

	// Write serializes the PDU payload, excluding the 6-byte header common
	// to all PDU types; the header is produced by EncodePDU.
	Write() ([]byte, error)

	// Read decodes the payload from d. Errors accumulate inside d.
	Read(d *dicomio.Decoder) PDU
}

// Type defines the type byte of a PDU packet.
type Type byte

const (
	TypeAAssociateRq Type = 1 // A_ASSOCIATE_RQ
	TypeAAssociateAc Type = 2 // A_ASSOCIATE_AC
	TypeAAssociateRj Type = 3 // A_ASSOCIATE_RJ
	TypePDataTf      Type = 4 // P_DATA_TF
	TypeAReleaseRq   Type = 5 // A_RELEASE_RQ
	TypeAReleaseRp   Type = 6 // A_RELEASE_RP
	TypeAAbort       Type = 7 // A_ABORT
)

// EncodePDU serializes "v" into []byte, header included.
func EncodePDU(v PDU) ([]byte, error) {
	var pduType Type
	switch v.(type) {
	case *AAssociateRQ:
		pduType = TypeAAssociateRq
	case *AAssociateAC:
		pduType = TypeAAssociateAc
	case *AAssociateRj:
		pduType = TypeAAssociateRj
	case *PDataTf:
		pduType = TypePDataTf
	case *AReleaseRq:
		pduType = TypeAReleaseRq
	case *AReleaseRp:
		pduType = TypeAReleaseRp
	case *AAbort:
		pduType = TypeAAbort
	default:
		return nil, fmt.Errorf("EncodePDU: unknown PDU %v", v)
	}
	payload, err := v.Write()
	if err != nil {
		return nil, err
	}
	var header [6]byte
	header[0] = byte(pduType)
	header[1] = 0 // Reserved.
	binary.BigEndian.PutUint32(header[2:6], uint32(len(payload)))
	return append(header[:], payload...), nil
}

// ReadPDU reads one PDU from a stream. maxPDUSize defines the maximum
// possible PDU size, in bytes, accepted by the caller.
func ReadPDU(in io.Reader, maxPDUSize int) (PDU, error) {
	var pduType Type
	var skip byte
	var length uint32
	err := binary.Read(in, binary.BigEndian, &pduType)
	if err != nil {
		return nil, err
	}
	err = binary.Read(in, binary.BigEndian, &skip)
	if err != nil {
		return nil, err
	}
	err = binary.Read(in, binary.BigEndian, &length)
	if err != nil {
		return nil, err
	}
	if length >= uint32(maxPDUSize)*2 {
		// Avoid using too much memory. *2 is just an arbitrary slack.
		return nil, fmt.Errorf("ReadPDU: invalid length %d; larger than max PDU size %d", length, maxPDUSize)
	}
	d := dicomio.NewDecoder(
		&io.LimitedReader{R: in, N: int64(length)},
		binary.BigEndian,  // PDU is always big endian
		dicomio.UnknownVR) // irrelevant for PDU parsing
	var v PDU
	switch pduType {
	case TypeAAssociateRq:
		v = AAssociateRQ{}.Read(d)
	case TypeAAssociateAc:
		v = AAssociateAC{}.Read(d)
	case TypeAAssociateRj:
		v = AAssociateRj{}.Read(d)
	case TypeAAbort:
		v = AAbort{}.Read(d)
	case TypePDataTf:
		v = PDataTf{}.Read(d)
	case TypeAReleaseRq:
		v = AReleaseRq{}.Read(d)
	case TypeAReleaseRp:
		v = AReleaseRp{}.Read(d)
	}
	if v == nil {
		return nil, fmt.Errorf("ReadPDU: unknown PDU type 0x%02x", byte(pduType))
	}
	if err := d.Finish(); err != nil {
		return nil, err
	}
	return v, nil
}

func SubItemListString(items []SubItem) string {
	buf := bytes.Buffer{}
	buf.WriteString("[")
	for i, subitem := range items {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(subitem.String())
	}
	buf.WriteString("]")
	return buf.String()
}

// fillString pads the string with " " up to the given length.
func fillString(v string, length int) string {
	if len(v) > length {
		return v[:length]
	}
	for len(v) < length {
		v += " "
	}
	return v
}
