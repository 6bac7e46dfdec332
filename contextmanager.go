package dicomul

import (
	"fmt"

	"github.com/grailbio/go-dicom/dicomlog"
	"github.com/grailbio/go-dicom/dicomuid"
	"github.com/openrad/go-dicomul/pdu"
)

type contextManagerEntry struct {
	contextID         byte
	abstractSyntaxUID string
	transferSyntaxUID string
}

// contextManager manages mappings between a contextID and the corresponding
// abstract-syntax UID (aka SOP). UIDs are static and global; contextIDs are
// allocated anew during each association handshake, odd values 1, 3, 5, etc.
// One contextManager is created per association.
type contextManager struct {
	label string // for logging only

	// The two maps are inverses of each other. They hold only accepted
	// contexts.
	contextIDToAbstractSyntaxNameMap map[byte]*contextManagerEntry
	abstractSyntaxNameToContextIDMap map[string]*contextManagerEntry

	// Info about the other side of the communication, gleaned from
	// A-ASSOCIATE-* pdus.
	peerMaxPDUSize                int
	peerImplementationClassUID    string
	peerImplementationVersionName string

	// tmpRequests is used only on the requestor side. It holds the
	// contextID->PresentationContextItem mapping generated for the
	// A_ASSOCIATE_RQ PDU. Once the A_ASSOCIATE_AC arrives, tmpRequests is
	// matched against the response and the accepted mappings are filled.
	tmpRequests map[byte]*pdu.PresentationContextItem
}

func newContextManager(label string) *contextManager {
	return &contextManager{
		label:                            label,
		contextIDToAbstractSyntaxNameMap: make(map[byte]*contextManagerEntry),
		abstractSyntaxNameToContextIDMap: make(map[string]*contextManagerEntry),
		peerMaxPDUSize:                   16384, // The default value used by Osirix & pynetdicom.
		tmpRequests:                      make(map[byte]*pdu.PresentationContextItem),
	}
}

// generateAssociateRequest produces the item list to embed in
// A_ASSOCIATE_RQ.Items from the presentation contexts the association builder
// assigned. maxPDUSize is the maximum PDU size, in bytes, this side is willing
// to receive.
func (m *contextManager) generateAssociateRequest(
	contexts []PresentationContext, maxPDUSize int,
	implementationClassUID, implementationVersionName string) []pdu.SubItem {
	items := []pdu.SubItem{
		&pdu.ApplicationContextItem{
			Name: pdu.DICOMApplicationContextItemName,
		}}
	for _, pc := range contexts {
		syntaxItems := []pdu.SubItem{
			&pdu.AbstractSyntaxSubItem{Name: pc.AbstractSyntaxUID},
		}
		for _, syntaxUID := range pc.TransferSyntaxUIDs {
			syntaxItems = append(syntaxItems, &pdu.TransferSyntaxSubItem{Name: syntaxUID})
		}
		item := &pdu.PresentationContextItem{
			Type:      pdu.ItemTypePresentationContextRequest,
			ContextID: pc.ID,
			Result:    0, // must be zero for request
			Items:     syntaxItems,
		}
		items = append(items, item)
		m.tmpRequests[pc.ID] = item
	}
	items = append(items,
		&pdu.UserInformationItem{
			Items: []pdu.SubItem{
				&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: uint32(maxPDUSize)},
				&pdu.ImplementationClassUIDSubItem{Name: implementationClassUID},
				&pdu.ImplementationVersionNameSubItem{Name: implementationVersionName}}})
	return items
}

// onAssociateRequest is called when an A_ASSOCIATE_RQ arrives on the provider
// side (the Move secondary connection). It returns the items to send back in
// the A_ASSOCIATE_AC, accepting every proposed context with the first transfer
// syntax the peer offers.
func (m *contextManager) onAssociateRequest(requestItems []pdu.SubItem, maxPDUSize int) ([]pdu.SubItem, error) {
	responses := []pdu.SubItem{
		&pdu.ApplicationContextItem{
			Name: pdu.DICOMApplicationContextItemName,
		},
	}
	for _, requestItem := range requestItems {
		switch ri := requestItem.(type) {
		case *pdu.ApplicationContextItem:
			if ri.Name != pdu.DICOMApplicationContextItemName {
				dicomlog.Vprintf(0, "dicom.contextManager(%s): Illegal application context name %v, want %v",
					m.label, ri.Name, pdu.DICOMApplicationContextItemName)
			}
		case *pdu.PresentationContextItem:
			var sopUID string
			var pickedTransferSyntaxUID string
			for _, subItem := range ri.Items {
				switch c := subItem.(type) {
				case *pdu.AbstractSyntaxSubItem:
					if sopUID != "" {
						return nil, fmt.Errorf("multiple AbstractSyntaxSubItems found in %v", ri.String())
					}
					sopUID = c.Name
				case *pdu.TransferSyntaxSubItem:
					// Pick the first syntax UID proposed by the peer.
					if pickedTransferSyntaxUID == "" {
						pickedTransferSyntaxUID = c.Name
					}
				default:
					return nil, fmt.Errorf("unknown subitem in PresentationContext: %s", subItem.String())
				}
			}
			if sopUID == "" || pickedTransferSyntaxUID == "" {
				return nil, fmt.Errorf("SOP or transfer syntax not found in PresentationContext: %v", ri.String())
			}
			responses = append(responses, &pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextResponse,
				ContextID: ri.ContextID,
				Result:    pdu.PresentationContextAccepted,
				Items:     []pdu.SubItem{&pdu.TransferSyntaxSubItem{Name: pickedTransferSyntaxUID}}})
			m.addContextMapping(sopUID, pickedTransferSyntaxUID, ri.ContextID)
		case *pdu.UserInformationItem:
			m.readUserInformation(ri)
		}
	}
	responses = append(responses,
		&pdu.UserInformationItem{
			Items: []pdu.SubItem{&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: uint32(maxPDUSize)}}})
	dicomlog.Vprintf(1, "dicom.contextManager(%s): Received associate request, #contexts:%v, maxPDU:%v, implclass:%v, version:%v",
		m.label, len(m.contextIDToAbstractSyntaxNameMap),
		m.peerMaxPDUSize, m.peerImplementationClassUID, m.peerImplementationVersionName)
	return responses, nil
}

// onAssociateResponse is called on the requestor side when the A_ASSOCIATE_AC
// arrives. Contexts the peer did not accept are left out of the mapping.
func (m *contextManager) onAssociateResponse(responses []pdu.SubItem) error {
	for _, responseItem := range responses {
		switch ri := responseItem.(type) {
		case *pdu.PresentationContextItem:
			if ri.Result != pdu.PresentationContextAccepted {
				dicomlog.Vprintf(1, "dicom.contextManager(%s): Context %d rejected by peer, result %d",
					m.label, ri.ContextID, ri.Result)
				continue
			}
			var pickedTransferSyntaxUID string
			for _, subItem := range ri.Items {
				switch c := subItem.(type) {
				case *pdu.TransferSyntaxSubItem:
					if pickedTransferSyntaxUID == "" {
						pickedTransferSyntaxUID = c.Name
					} else {
						return fmt.Errorf("multiple syntax UIDs returned in A_ASSOCIATE_AC: %v", ri.String())
					}
				default:
					return fmt.Errorf("unknown subitem %s in PresentationContext: %s", subItem.String(), ri.String())
				}
			}
			request, ok := m.tmpRequests[ri.ContextID]
			if !ok {
				return fmt.Errorf("unknown context ID %d in A_ASSOCIATE_AC: %v", ri.ContextID, ri.String())
			}
			found := false
			var sopUID string
			for _, subItem := range request.Items {
				switch c := subItem.(type) {
				case *pdu.AbstractSyntaxSubItem:
					sopUID = c.Name
				case *pdu.TransferSyntaxSubItem:
					if c.Name == pickedTransferSyntaxUID {
						found = true
					}
				}
			}
			if !found || sopUID == "" {
				return fmt.Errorf("TransferSyntaxUID or AbstractSyntaxSubItem not found in %v", ri.String())
			}
			m.addContextMapping(sopUID, pickedTransferSyntaxUID, ri.ContextID)
		case *pdu.UserInformationItem:
			m.readUserInformation(ri)
		}
	}
	if len(m.contextIDToAbstractSyntaxNameMap) == 0 {
		return fmt.Errorf("peer accepted no presentation context")
	}
	dicomlog.Vprintf(1, "dicom.contextManager(%s): Received associate response, #contexts:%v, maxPDU:%v, implclass:%v, version:%v",
		m.label, len(m.contextIDToAbstractSyntaxNameMap),
		m.peerMaxPDUSize, m.peerImplementationClassUID, m.peerImplementationVersionName)
	return nil
}

func (m *contextManager) readUserInformation(ri *pdu.UserInformationItem) {
	for _, subItem := range ri.Items {
		switch c := subItem.(type) {
		case *pdu.UserInformationMaximumLengthItem:
			m.peerMaxPDUSize = int(c.MaximumLengthReceived)
		case *pdu.ImplementationClassUIDSubItem:
			m.peerImplementationClassUID = c.Name
		case *pdu.ImplementationVersionNameSubItem:
			m.peerImplementationVersionName = c.Name
		}
	}
}

// addContextMapping records a (global) UID <-> (per-association) context ID
// binding.
func (m *contextManager) addContextMapping(abstractSyntaxUID, transferSyntaxUID string, contextID byte) {
	dicomlog.Vprintf(2, "dicom.contextManager(%s): Map context %d -> %s, %s",
		m.label, contextID, dicomuid.UIDString(abstractSyntaxUID), dicomuid.UIDString(transferSyntaxUID))
	doassert(abstractSyntaxUID != "")
	doassert(transferSyntaxUID != "")
	doassert(contextID%2 == 1)
	e := &contextManagerEntry{
		abstractSyntaxUID: abstractSyntaxUID,
		transferSyntaxUID: transferSyntaxUID,
		contextID:         contextID,
	}
	m.contextIDToAbstractSyntaxNameMap[contextID] = e
	m.abstractSyntaxNameToContextIDMap[abstractSyntaxUID] = e
}

func (m *contextManager) lookupByAbstractSyntaxUID(name string) (contextManagerEntry, error) {
	e, ok := m.abstractSyntaxNameToContextIDMap[name]
	if !ok {
		return contextManagerEntry{}, fmt.Errorf("dicom.contextManager(%s): unknown syntax %s", m.label, dicomuid.UIDString(name))
	}
	return *e, nil
}

func (m *contextManager) lookupByContextID(contextID byte) (contextManagerEntry, error) {
	e, ok := m.contextIDToAbstractSyntaxNameMap[contextID]
	if !ok {
		return contextManagerEntry{}, fmt.Errorf("dicom.contextManager(%s): unknown context ID %d", m.label, contextID)
	}
	return *e, nil
}
