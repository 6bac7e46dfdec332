package dicomul

import (
	"fmt"

	"github.com/openrad/go-dicomul/sopclass"
	"github.com/suyashkumar/dicom"
	dicomtag "github.com/suyashkumar/dicom/pkg/tag"
)

// ServiceKind selects the service role an association is established for and
// with it the presentation contexts offered in the A-ASSOCIATE-RQ.
type ServiceKind int

const (
	ServiceEcho ServiceKind = iota
	ServiceFind
	ServiceStore
	ServiceMove
)

func (k ServiceKind) String() string {
	switch k {
	case ServiceEcho:
		return "echo"
	case ServiceFind:
		return "find"
	case ServiceStore:
		return "store"
	case ServiceMove:
		return "move"
	}
	return fmt.Sprintf("service(%d)", int(k))
}

// buildPresentationContexts produces the deterministic context list for the
// service, IDs odd starting at 1. Each context offers exactly one transfer
// syntax, Implicit VR Little Endian; Explicit VR is deliberately not offered.
// For ServiceStore the abstract syntax is the SOP class of the dataset to be
// sent.
func buildPresentationContexts(kind ServiceKind, ds *dicom.Dataset) ([]PresentationContext, error) {
	var sops []sopclass.SOPUID
	switch kind {
	case ServiceEcho:
		sops = sopclass.VerificationClasses
	case ServiceFind:
		sops = sopclass.QRFindClasses
	case ServiceMove:
		sops = sopclass.QRMoveClasses
	case ServiceStore:
		if ds == nil {
			return nil, fmt.Errorf("store association requires a dataset")
		}
		sopClassUID, err := datasetString(ds, dicomtag.SOPClassUID)
		if err != nil {
			return nil, fmt.Errorf("store association: %w", err)
		}
		sops = []sopclass.SOPUID{{Name: "Storage", UID: sopClassUID}}
	default:
		return nil, fmt.Errorf("unknown service kind %v", kind)
	}
	contexts := make([]PresentationContext, 0, len(sops))
	contextID := byte(1)
	for _, sop := range sops {
		contexts = append(contexts, PresentationContext{
			ID:                 contextID,
			AbstractSyntaxUID:  sop.UID,
			TransferSyntaxUIDs: []string{ImplicitVRLittleEndian},
		})
		contextID += 2 // must stay odd
	}
	return contexts, nil
}

// datasetString extracts the sole string value of the given tag.
func datasetString(ds *dicom.Dataset, t dicomtag.Tag) (string, error) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return "", fmt.Errorf("tag %s not found in dataset: %w", t.String(), err)
	}
	v, ok := elem.Value.GetValue().([]string)
	if !ok || len(v) == 0 {
		return "", fmt.Errorf("tag %s has no string value", t.String())
	}
	return v[0], nil
}
