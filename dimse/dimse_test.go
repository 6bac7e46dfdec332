package dimse_test

import (
	"bytes"
	"testing"

	"github.com/openrad/go-dicomul/dimse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
)

func testDIMSE(t *testing.T, v dimse.Message) dimse.Message {
	buf := bytes.Buffer{}
	require.NoError(t, dimse.EncodeMessage(&buf, v))
	reader := bytes.NewReader(buf.Bytes())
	ds, err := dicom.Parse(reader, int64(reader.Len()), nil, dicom.SkipPixelData(), dicom.SkipMetadataReadOnNewParserInit())
	require.NoError(t, err)
	decoded, err := dimse.ReadMessage(&ds)
	require.NoError(t, err)
	assert.Equal(t, v.String(), decoded.String())
	return decoded
}

func TestCEchoRq(t *testing.T) {
	testDIMSE(t, &dimse.CEchoRq{
		MessageID:          0x1234,
		CommandDataSetType: dimse.CommandDataSetTypeNull,
	})
}

func TestCEchoRsp(t *testing.T) {
	v := testDIMSE(t, &dimse.CEchoRsp{
		MessageIDBeingRespondedTo: 0x1234,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		Status:                    dimse.Success,
	})
	require.NotNil(t, v.GetStatus())
	assert.Equal(t, dimse.StatusSuccess, v.GetStatus().Status)
}

func TestCFindRq(t *testing.T) {
	v := testDIMSE(t, &dimse.CFindRq{
		AffectedSOPClassUID: "1.2.840.10008.5.1.4.1.2.1.1",
		MessageID:           1,
		Priority:            0,
		CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
	})
	assert.True(t, v.HasData())
}

func TestCFindRsp(t *testing.T) {
	v := testDIMSE(t, &dimse.CFindRsp{
		AffectedSOPClassUID:       "1.2.840.10008.5.1.4.1.2.1.1",
		MessageIDBeingRespondedTo: 1,
		CommandDataSetType:        dimse.CommandDataSetTypeNonNull,
		Status:                    dimse.Status{Status: dimse.StatusPending},
	})
	assert.True(t, v.GetStatus().Status.Pending())
}

func TestCMoveRq(t *testing.T) {
	testDIMSE(t, &dimse.CMoveRq{
		AffectedSOPClassUID: "1.2.840.10008.5.1.4.1.2.2.2",
		MessageID:           7,
		Priority:            0,
		MoveDestination:     "STORESCP",
		CommandDataSetType:  dimse.CommandDataSetTypeNonNull,
	})
}

func TestCMoveRsp(t *testing.T) {
	v := testDIMSE(t, &dimse.CMoveRsp{
		AffectedSOPClassUID:            "1.2.840.10008.5.1.4.1.2.2.2",
		MessageIDBeingRespondedTo:      7,
		CommandDataSetType:             dimse.CommandDataSetTypeNull,
		NumberOfCompletedSuboperations: 2,
		Status:                         dimse.Success,
	})
	rsp, ok := v.(*dimse.CMoveRsp)
	require.True(t, ok)
	assert.Equal(t, uint16(2), rsp.NumberOfCompletedSuboperations)
}

func TestCStoreRq(t *testing.T) {
	testDIMSE(t, &dimse.CStoreRq{
		AffectedSOPClassUID:    "1.2.840.10008.5.1.4.1.1.2",
		MessageID:              3,
		Priority:               0,
		CommandDataSetType:     dimse.CommandDataSetTypeNonNull,
		AffectedSOPInstanceUID: "1.2.3.4.5",
	})
}

func TestCStoreRqWithMoveOriginator(t *testing.T) {
	testDIMSE(t, &dimse.CStoreRq{
		AffectedSOPClassUID:                  "1.2.840.10008.5.1.4.1.1.2",
		MessageID:                            3,
		Priority:                             0,
		CommandDataSetType:                   dimse.CommandDataSetTypeNonNull,
		AffectedSOPInstanceUID:               "1.2.3.4.5",
		MoveOriginatorApplicationEntityTitle: "MOVESCU",
		MoveOriginatorMessageID:              9,
	})
}

func TestCStoreRsp(t *testing.T) {
	testDIMSE(t, &dimse.CStoreRsp{
		AffectedSOPClassUID:       "1.2.840.10008.5.1.4.1.1.2",
		MessageIDBeingRespondedTo: 3,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		AffectedSOPInstanceUID:    "1.2.3.4.5",
		Status:                    dimse.Success,
	})
}

func TestStatusPending(t *testing.T) {
	assert.True(t, dimse.StatusPending.Pending())
	assert.True(t, dimse.StatusPendingWithWarning.Pending())
	assert.False(t, dimse.StatusSuccess.Pending())
	assert.False(t, dimse.StatusCancel.Pending())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "success", dimse.StatusString(dimse.StatusSuccess))
	assert.Equal(t, "move destination unknown", dimse.StatusString(dimse.CMoveMoveDestinationUnknown))
	// Unknown non-zero codes surface as unable to process.
	assert.Equal(t, "unable to process", dimse.StatusString(dimse.StatusCode(0xC123)))
}
