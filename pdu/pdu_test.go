package pdu_test

import (
	"bytes"
	"testing"

	"github.com/openrad/go-dicomul/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v pdu.PDU) pdu.PDU {
	data, err := pdu.EncodePDU(v)
	require.NoError(t, err)
	decoded, err := pdu.ReadPDU(bytes.NewReader(data), 4<<20)
	require.NoError(t, err)
	return decoded
}

func TestAAssociateRQRoundTrip(t *testing.T) {
	v := &pdu.AAssociateRQ{
		ProtocolVersion: pdu.CurrentProtocolVersion,
		CalledAETitle:   "ANY-SCP",
		CallingAETitle:  "TESTCLIENT",
		Items: []pdu.SubItem{
			&pdu.ApplicationContextItem{Name: pdu.DICOMApplicationContextItemName},
			&pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextRequest,
				ContextID: 1,
				Items: []pdu.SubItem{
					&pdu.AbstractSyntaxSubItem{Name: "1.2.840.10008.1.1"},
					&pdu.TransferSyntaxSubItem{Name: "1.2.840.10008.1.2"},
				},
			},
			&pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextRequest,
				ContextID: 3,
				Items: []pdu.SubItem{
					&pdu.AbstractSyntaxSubItem{Name: "1.2.840.10008.5.1.4.1.2.2.1"},
					&pdu.TransferSyntaxSubItem{Name: "1.2.840.10008.1.2"},
				},
			},
			&pdu.UserInformationItem{
				Items: []pdu.SubItem{
					&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: 16384},
					&pdu.ImplementationClassUIDSubItem{Name: "1.2.3.4"},
					&pdu.ImplementationVersionNameSubItem{Name: "TEST_1_0"},
				},
			},
		},
	}
	decoded := roundTrip(t, v)
	rq, ok := decoded.(*pdu.AAssociateRQ)
	require.True(t, ok)
	// AE titles come back space-padded to 16 bytes on the wire.
	assert.Equal(t, "ANY-SCP         ", rq.CalledAETitle)
	assert.Equal(t, "TESTCLIENT      ", rq.CallingAETitle)
	assert.Equal(t, v.ProtocolVersion, rq.ProtocolVersion)
	require.Len(t, rq.Items, 4)

	pc, ok := rq.Items[1].(*pdu.PresentationContextItem)
	require.True(t, ok)
	assert.Equal(t, byte(1), pc.ContextID)
	require.Len(t, pc.Items, 2)
	as, ok := pc.Items[0].(*pdu.AbstractSyntaxSubItem)
	require.True(t, ok)
	assert.Equal(t, "1.2.840.10008.1.1", as.Name)

	ui, ok := rq.Items[3].(*pdu.UserInformationItem)
	require.True(t, ok)
	require.Len(t, ui.Items, 3)
	maxLen, ok := ui.Items[0].(*pdu.UserInformationMaximumLengthItem)
	require.True(t, ok)
	assert.Equal(t, uint32(16384), maxLen.MaximumLengthReceived)
}

func TestAAssociateRjRoundTrip(t *testing.T) {
	decoded := roundTrip(t, &pdu.AAssociateRj{
		Result: pdu.ResultRejectedPermanent,
		Source: pdu.SourceULServiceUser,
		Reason: pdu.ReasonNone,
	})
	rj, ok := decoded.(*pdu.AAssociateRj)
	require.True(t, ok)
	assert.Equal(t, pdu.ResultRejectedPermanent, rj.Result)
	assert.Equal(t, pdu.SourceULServiceUser, rj.Source)
	assert.Equal(t, pdu.ReasonNone, rj.Reason)
}

func TestAAbortRoundTrip(t *testing.T) {
	decoded := roundTrip(t, &pdu.AAbort{Source: pdu.AbortSourceUser, Reason: 0})
	ab, ok := decoded.(*pdu.AAbort)
	require.True(t, ok)
	assert.Equal(t, pdu.AbortSourceUser, ab.Source)
	assert.Equal(t, pdu.AbortReasonNotSpecified, ab.Reason)
}

func TestReleaseRoundTrip(t *testing.T) {
	_, ok := roundTrip(t, &pdu.AReleaseRq{}).(*pdu.AReleaseRq)
	assert.True(t, ok)
	_, ok = roundTrip(t, &pdu.AReleaseRp{}).(*pdu.AReleaseRp)
	assert.True(t, ok)
}

func TestPDataTfRoundTrip(t *testing.T) {
	v := &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
		{ContextID: 1, Command: true, Last: false, Value: []byte{1, 2, 3}},
		{ContextID: 1, Command: true, Last: true, Value: []byte{4, 5}},
	}}
	decoded := roundTrip(t, v)
	pd, ok := decoded.(*pdu.PDataTf)
	require.True(t, ok)
	require.Len(t, pd.Items, 2)
	assert.Equal(t, []byte{1, 2, 3}, pd.Items[0].Value)
	assert.False(t, pd.Items[0].Last)
	assert.True(t, pd.Items[0].Command)
	assert.Equal(t, []byte{4, 5}, pd.Items[1].Value)
	assert.True(t, pd.Items[1].Last)
}

func TestReadPDUUnknownType(t *testing.T) {
	// Type byte 0x0A is not a PS3.8 PDU.
	data := []byte{0x0A, 0, 0, 0, 0, 2, 0xde, 0xad}
	_, err := pdu.ReadPDU(bytes.NewReader(data), 4<<20)
	assert.Error(t, err)
}

func TestReadPDUOversizedLength(t *testing.T) {
	data := []byte{0x04, 0, 0xff, 0xff, 0xff, 0xff}
	_, err := pdu.ReadPDU(bytes.NewReader(data), 16384)
	assert.Error(t, err)
}
