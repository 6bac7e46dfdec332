package dicomul

// End-to-end scenarios against scripted in-process peers. Each test starts a
// TCP listener playing the remote SCP (and, for Move, a store SCU dialing
// back), drives the manager through the public facade and checks the final
// state and the returned datasets.

import (
	"bytes"
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/openrad/go-dicomul/dimse"
	"github.com/openrad/go-dicomul/pdu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	dicomtag "github.com/suyashkumar/dicom/pkg/tag"
)

const testTimeout = 10 * time.Second

func startPeer(t *testing.T, script func(conn net.Conn)) (host string, port int) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}()
	return "127.0.0.1", listener.Addr().(*net.TCPAddr).Port
}

func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()
	return port
}

func peerReadPDU(t *testing.T, conn net.Conn) pdu.PDU {
	v, err := pdu.ReadPDU(conn, DefaultMaxPDUSize)
	if !assert.NoError(t, err) {
		return nil
	}
	return v
}

func peerWritePDU(t *testing.T, conn net.Conn, v pdu.PDU) {
	data, err := pdu.EncodePDU(v)
	if !assert.NoError(t, err) {
		return
	}
	_, err = conn.Write(data)
	assert.NoError(t, err)
}

// peerAcceptAssociation reads an A-ASSOCIATE-RQ and accepts every proposed
// context on Implicit VR Little Endian.
func peerAcceptAssociation(t *testing.T, conn net.Conn) *pdu.AAssociateRQ {
	v := peerReadPDU(t, conn)
	rq, ok := v.(*pdu.AAssociateRQ)
	if !assert.True(t, ok, "expected A-ASSOCIATE-RQ, got %v", v) {
		return nil
	}
	items := []pdu.SubItem{
		&pdu.ApplicationContextItem{Name: pdu.DICOMApplicationContextItemName},
	}
	for _, item := range rq.Items {
		if pc, ok := item.(*pdu.PresentationContextItem); ok {
			items = append(items, &pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextResponse,
				ContextID: pc.ContextID,
				Result:    pdu.PresentationContextAccepted,
				Items:     []pdu.SubItem{&pdu.TransferSyntaxSubItem{Name: ImplicitVRLittleEndian}},
			})
		}
	}
	items = append(items, &pdu.UserInformationItem{
		Items: []pdu.SubItem{&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: 16384}},
	})
	peerWritePDU(t, conn, &pdu.AAssociateAC{
		ProtocolVersion: pdu.CurrentProtocolVersion,
		CalledAETitle:   rq.CalledAETitle,
		CallingAETitle:  rq.CallingAETitle,
		Items:           items,
	})
	return rq
}

func peerSendDIMSE(t *testing.T, conn net.Conn, contextID byte, msg dimse.Message, data []byte) {
	buf := bytes.Buffer{}
	if !assert.NoError(t, dimse.EncodeMessage(&buf, msg)) {
		return
	}
	peerWritePDU(t, conn, &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
		{ContextID: contextID, Command: true, Last: true, Value: buf.Bytes()},
	}})
	if len(data) > 0 {
		peerWritePDU(t, conn, &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
			{ContextID: contextID, Command: false, Last: true, Value: data},
		}})
	}
}

func peerReadDIMSE(t *testing.T, conn net.Conn) (byte, dimse.Message, []byte) {
	var assembler dimse.CommandAssembler
	for {
		v := peerReadPDU(t, conn)
		pd, ok := v.(*pdu.PDataTf)
		if !assert.True(t, ok, "expected P-DATA-TF, got %v", v) {
			return 0, nil, nil
		}
		contextID, msg, data, err := assembler.AddDataPDU(pd)
		if !assert.NoError(t, err) {
			return 0, nil, nil
		}
		if msg != nil {
			return contextID, msg, data
		}
	}
}

func peerAnswerRelease(t *testing.T, conn net.Conn) {
	v := peerReadPDU(t, conn)
	if _, ok := v.(*pdu.AReleaseRq); !assert.True(t, ok, "expected A-RELEASE-RQ, got %v", v) {
		return
	}
	peerWritePDU(t, conn, &pdu.AReleaseRp{})
}

func mustElement(t *testing.T, tg dicomtag.Tag, value interface{}) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(tg, value)
	require.NoError(t, err)
	return elem
}

func encodeTestDataSet(t *testing.T, elems []*dicom.Element) []byte {
	t.Helper()
	buf := bytes.Buffer{}
	require.NoError(t, dimse.EncodeElements(&buf, elems))
	return buf.Bytes()
}

func testParams(host string, port int) EstablishParams {
	return EstablishParams{
		CallingAETitle: "TESTSCU",
		CalledAETitle:  "ANY-SCP",
		Host:           host,
		Port:           port,
		LocalName:      "testhost",
		Timeout:        testTimeout,
	}
}

// Scenario 1: echo, success status, orderly release.
func TestEchoScenario(t *testing.T) {
	host, port := startPeer(t, func(conn net.Conn) {
		peerAcceptAssociation(t, conn)
		contextID, msg, _ := peerReadDIMSE(t, conn)
		rq, ok := msg.(*dimse.CEchoRq)
		if !assert.True(t, ok, "expected C-ECHO-RQ, got %v", msg) {
			return
		}
		peerSendDIMSE(t, conn, contextID, &dimse.CEchoRsp{
			MessageIDBeingRespondedTo: rq.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Success,
		}, nil)
		peerAnswerRelease(t, conn)
	})

	m := NewULConnectionManager()
	defer m.Close()
	require.NoError(t, m.Establish(ServiceEcho, testParams(host, port), nil))
	assert.Equal(t, sta06, m.control.State())

	pdvs, err := m.SendEcho()
	require.NoError(t, err)
	assert.NotEmpty(t, pdvs)

	require.NoError(t, m.Release(testTimeout))
	assert.Equal(t, sta01, m.control.State())
}

// Scenario 2: find with two pending identifiers, success, release.
func TestFindScenario(t *testing.T) {
	host, port := startPeer(t, func(conn net.Conn) {
		peerAcceptAssociation(t, conn)
		contextID, msg, _ := peerReadDIMSE(t, conn)
		rq, ok := msg.(*dimse.CFindRq)
		if !assert.True(t, ok, "expected C-FIND-RQ, got %v", msg) {
			return
		}
		for _, name := range []string{"ADAMS^A", "ALLEN^B"} {
			peerSendDIMSE(t, conn, contextID, &dimse.CFindRsp{
				AffectedSOPClassUID:       rq.AffectedSOPClassUID,
				MessageIDBeingRespondedTo: rq.MessageID,
				CommandDataSetType:        dimse.CommandDataSetTypeNonNull,
				Status:                    dimse.Status{Status: dimse.StatusPending},
			}, encodeTestDataSet(t, []*dicom.Element{
				mustElement(t, dicomtag.PatientName, []string{name}),
			}))
		}
		peerSendDIMSE(t, conn, contextID, &dimse.CFindRsp{
			AffectedSOPClassUID:       rq.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: rq.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			Status:                    dimse.Success,
		}, nil)
		peerAnswerRelease(t, conn)
	})

	m := NewULConnectionManager()
	defer m.Close()
	require.NoError(t, m.Establish(ServiceFind, testParams(host, port), nil))

	datasets, err := m.SendFind(&Query{
		AbstractSyntaxUID: "1.2.840.10008.5.1.4.1.2.1.1",
		Elements: []*dicom.Element{
			mustElement(t, dicomtag.PatientName, []string{"A*"}),
		},
	})
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	for i, want := range []string{"ADAMS^A", "ALLEN^B"} {
		elem, err := datasets[i].FindElementByTag(dicomtag.PatientName)
		require.NoError(t, err)
		assert.Equal(t, []string{want}, elem.Value.GetValue())
	}

	require.NoError(t, m.Release(testTimeout))
}

// Scenario 3: the peer rejects the association.
func TestAssociationRejectedScenario(t *testing.T) {
	host, port := startPeer(t, func(conn net.Conn) {
		v := peerReadPDU(t, conn)
		if _, ok := v.(*pdu.AAssociateRQ); !assert.True(t, ok) {
			return
		}
		peerWritePDU(t, conn, &pdu.AAssociateRj{
			Result: pdu.ResultRejectedPermanent,
			Source: pdu.SourceULServiceUser,
			Reason: pdu.ReasonNone,
		})
	})

	m := NewULConnectionManager()
	defer m.Close()
	err := m.Establish(ServiceFind, testParams(host, port), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssociationFailed))
	assert.Equal(t, sta01, m.control.State())
}

// Scenario 4: store one CT dataset, success status back.
func TestStoreScenario(t *testing.T) {
	const sopClassUID = "1.2.840.10008.5.1.4.1.1.2"
	const sopInstanceUID = "1.2.3.4.5.6.7.8"

	host, port := startPeer(t, func(conn net.Conn) {
		peerAcceptAssociation(t, conn)
		contextID, msg, data := peerReadDIMSE(t, conn)
		rq, ok := msg.(*dimse.CStoreRq)
		if !assert.True(t, ok, "expected C-STORE-RQ, got %v", msg) {
			return
		}
		assert.Equal(t, sopClassUID, rq.AffectedSOPClassUID)
		assert.Equal(t, sopInstanceUID, rq.AffectedSOPInstanceUID)
		assert.NotEmpty(t, data)
		peerSendDIMSE(t, conn, contextID, &dimse.CStoreRsp{
			AffectedSOPClassUID:       rq.AffectedSOPClassUID,
			MessageIDBeingRespondedTo: rq.MessageID,
			CommandDataSetType:        dimse.CommandDataSetTypeNull,
			AffectedSOPInstanceUID:    rq.AffectedSOPInstanceUID,
			Status:                    dimse.Success,
		}, nil)
		peerAnswerRelease(t, conn)
	})

	ds := &dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, dicomtag.SOPClassUID, []string{sopClassUID}),
		mustElement(t, dicomtag.SOPInstanceUID, []string{sopInstanceUID}),
		mustElement(t, dicomtag.PatientID, []string{"123"}),
	}}

	m := NewULConnectionManager()
	defer m.Close()
	require.NoError(t, m.Establish(ServiceStore, testParams(host, port), ds))

	datasets, err := m.SendStore(ds)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	statusElem, err := datasets[0].FindElementByTag(dicomtag.Tag{Group: 0x0000, Element: 0x0900})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, statusElem.Value.GetValue())

	require.NoError(t, m.Release(testTimeout))
}

// Scenario 5: move with two C-STORE sub-operations on the secondary channel.
func TestMoveScenario(t *testing.T) {
	const sopClassUID = "1.2.840.10008.5.1.4.1.1.2"
	returnPort := freePort(t)

	storeObject := func(instanceUID string) []*dicom.Element {
		return []*dicom.Element{
			mustElement(t, dicomtag.SOPClassUID, []string{sopClassUID}),
			mustElement(t, dicomtag.SOPInstanceUID, []string{instanceUID}),
			mustElement(t, dicomtag.PatientID, []string{"123"}),
		}
	}

	// The store SCU half of the mock PACS: dial the return port and push
	// the two objects, then release.
	runStoreSCU := func() {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(returnPort)))
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()
		peerWritePDU(t, conn, &pdu.AAssociateRQ{
			ProtocolVersion: pdu.CurrentProtocolVersion,
			CalledAETitle:   "TESTSCU",
			CallingAETitle:  "ANY-SCP",
			Items: []pdu.SubItem{
				&pdu.ApplicationContextItem{Name: pdu.DICOMApplicationContextItemName},
				&pdu.PresentationContextItem{
					Type:      pdu.ItemTypePresentationContextRequest,
					ContextID: 1,
					Items: []pdu.SubItem{
						&pdu.AbstractSyntaxSubItem{Name: sopClassUID},
						&pdu.TransferSyntaxSubItem{Name: ImplicitVRLittleEndian},
					},
				},
				&pdu.UserInformationItem{
					Items: []pdu.SubItem{&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: 16384}},
				},
			},
		})
		v := peerReadPDU(t, conn)
		if _, ok := v.(*pdu.AAssociateAC); !assert.True(t, ok, "expected A-ASSOCIATE-AC, got %v", v) {
			return
		}
		for i, instanceUID := range []string{"1.2.3.4.5.1", "1.2.3.4.5.2"} {
			peerSendDIMSE(t, conn, 1, &dimse.CStoreRq{
				AffectedSOPClassUID:    sopClassUID,
				MessageID:              dimse.MessageID(i + 1),
				Priority:               0,
				CommandDataSetType:     dimse.CommandDataSetTypeNonNull,
				AffectedSOPInstanceUID: instanceUID,
			}, encodeTestDataSet(t, storeObject(instanceUID)))
			_, rsp, _ := peerReadDIMSE(t, conn)
			storeRsp, ok := rsp.(*dimse.CStoreRsp)
			if !assert.True(t, ok, "expected C-STORE-RSP, got %v", rsp) {
				return
			}
			assert.Equal(t, dimse.StatusSuccess, storeRsp.Status.Status)
		}
		peerWritePDU(t, conn, &pdu.AReleaseRq{})
		v = peerReadPDU(t, conn)
		assert.IsType(t, &pdu.AReleaseRp{}, v)
	}

	host, port := startPeer(t, func(conn net.Conn) {
		peerAcceptAssociation(t, conn)
		contextID, msg, _ := peerReadDIMSE(t, conn)
		rq, ok := msg.(*dimse.CMoveRq)
		if !assert.True(t, ok, "expected C-MOVE-RQ, got %v", msg) {
			return
		}
		assert.Equal(t, "TESTSCU", strings.TrimSpace(rq.MoveDestination))
		peerSendDIMSE(t, conn, contextID, &dimse.CMoveRsp{
			AffectedSOPClassUID:            rq.AffectedSOPClassUID,
			MessageIDBeingRespondedTo:      rq.MessageID,
			CommandDataSetType:             dimse.CommandDataSetTypeNull,
			NumberOfRemainingSuboperations: 2,
			Status:                         dimse.Status{Status: dimse.StatusPending},
		}, nil)

		runStoreSCU()

		peerSendDIMSE(t, conn, contextID, &dimse.CMoveRsp{
			AffectedSOPClassUID:            rq.AffectedSOPClassUID,
			MessageIDBeingRespondedTo:      rq.MessageID,
			CommandDataSetType:             dimse.CommandDataSetTypeNull,
			NumberOfCompletedSuboperations: 2,
			Status:                         dimse.Success,
		}, nil)
		peerAnswerRelease(t, conn)
	})

	m := NewULConnectionManager()
	defer m.Close()
	require.NoError(t, m.EstablishMove(testParams(host, port), returnPort))

	datasets, err := m.SendMove(&Query{
		AbstractSyntaxUID: "1.2.840.10008.5.1.4.1.2.2.2",
		Elements: []*dicom.Element{
			mustElement(t, dicomtag.PatientID, []string{"123"}),
		},
	})
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	for i, want := range []string{"1.2.3.4.5.1", "1.2.3.4.5.2"} {
		elem, err := datasets[i].FindElementByTag(dicomtag.SOPInstanceUID)
		require.NoError(t, err)
		assert.Equal(t, []string{want}, elem.Value.GetValue())
	}

	require.NoError(t, m.Release(testTimeout))
	assert.Equal(t, sta01, m.control.State())
}

// Scenario 6: the peer never answers the association request; ARTIM fires.
func TestAssociationTimeoutScenario(t *testing.T) {
	host, port := startPeer(t, func(conn net.Conn) {
		// Accept the transport, then stay silent past the ARTIM deadline.
		time.Sleep(3 * time.Second)
	})

	params := testParams(host, port)
	params.Timeout = 500 * time.Millisecond

	m := NewULConnectionManager()
	defer m.Close()
	start := time.Now()
	err := m.Establish(ServiceEcho, params, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssociationFailed))
	assert.Equal(t, sta01, m.control.State())
	assert.Less(t, time.Since(start), 3*time.Second)
}

// AE titles are validated before any socket work.
func TestEstablishValidatesAETitles(t *testing.T) {
	m := NewULConnectionManager()
	params := EstablishParams{
		CallingAETitle: "THIS-AE-TITLE-IS-TOO-LONG",
		CalledAETitle:  "ANY-SCP",
		Host:           "127.0.0.1",
		Port:           1,
		Timeout:        time.Second,
	}
	err := m.Establish(ServiceEcho, params, nil)
	assert.True(t, errors.Is(err, ErrAETitleTooLong))

	params.CallingAETitle = "TESTSCU"
	params.CalledAETitle = "THIS-AE-TITLE-IS-TOO-LONG"
	err = m.Establish(ServiceEcho, params, nil)
	assert.True(t, errors.Is(err, ErrAETitleTooLong))
}

func TestSendWithoutAssociation(t *testing.T) {
	m := NewULConnectionManager()
	_, err := m.SendEcho()
	assert.True(t, errors.Is(err, ErrNotEstablished))
	_, err = m.SendFind(&Query{AbstractSyntaxUID: "1.2.840.10008.5.1.4.1.2.1.1"})
	assert.True(t, errors.Is(err, ErrNotEstablished))
	_, err = m.SendMove(&Query{AbstractSyntaxUID: "1.2.840.10008.5.1.4.1.2.2.2"})
	assert.True(t, errors.Is(err, ErrNotEstablished))
}
