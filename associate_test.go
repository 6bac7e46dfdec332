package dicomul

import (
	"testing"

	"github.com/openrad/go-dicomul/sopclass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	dicomtag "github.com/suyashkumar/dicom/pkg/tag"
)

func assertOddDistinctIDs(t *testing.T, contexts []PresentationContext) {
	t.Helper()
	seen := map[byte]bool{}
	for _, pc := range contexts {
		assert.Equal(t, byte(1), pc.ID%2, "context ID %d must be odd", pc.ID)
		assert.False(t, seen[pc.ID], "context ID %d must be unique", pc.ID)
		seen[pc.ID] = true
		require.Len(t, pc.TransferSyntaxUIDs, 1)
		assert.Equal(t, ImplicitVRLittleEndian, pc.TransferSyntaxUIDs[0])
	}
}

func TestBuildPresentationContextsEcho(t *testing.T) {
	contexts, err := buildPresentationContexts(ServiceEcho, nil)
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, sopclass.VerificationSOPClass, contexts[0].AbstractSyntaxUID)
	assertOddDistinctIDs(t, contexts)
}

func TestBuildPresentationContextsFind(t *testing.T) {
	contexts, err := buildPresentationContexts(ServiceFind, nil)
	require.NoError(t, err)
	require.Len(t, contexts, 5)
	uids := make([]string, 0, len(contexts))
	for _, pc := range contexts {
		uids = append(uids, pc.AbstractSyntaxUID)
	}
	assert.Contains(t, uids, sopclass.PatientRootQueryRetrieveFIND)
	assert.Contains(t, uids, sopclass.StudyRootQueryRetrieveFIND)
	assert.Contains(t, uids, sopclass.PatientStudyOnlyQueryRetrieveFIND)
	assert.Contains(t, uids, sopclass.ModalityWorklistFIND)
	assert.Contains(t, uids, sopclass.GeneralPurposeWorklistFIND)
	assertOddDistinctIDs(t, contexts)
}

func TestBuildPresentationContextsMove(t *testing.T) {
	contexts, err := buildPresentationContexts(ServiceMove, nil)
	require.NoError(t, err)
	require.Len(t, contexts, 4)
	uids := make([]string, 0, len(contexts))
	for _, pc := range contexts {
		uids = append(uids, pc.AbstractSyntaxUID)
	}
	assert.Contains(t, uids, sopclass.PatientRootQueryRetrieveMOVE)
	assert.Contains(t, uids, sopclass.StudyRootQueryRetrieveMOVE)
	assertOddDistinctIDs(t, contexts)
}

func TestBuildPresentationContextsStore(t *testing.T) {
	sopClass, err := dicom.NewElement(dicomtag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.2"})
	require.NoError(t, err)
	ds := &dicom.Dataset{Elements: []*dicom.Element{sopClass}}
	contexts, err := buildPresentationContexts(ServiceStore, ds)
	require.NoError(t, err)
	require.Len(t, contexts, 1)
	assert.Equal(t, "1.2.840.10008.5.1.4.1.1.2", contexts[0].AbstractSyntaxUID)
	assertOddDistinctIDs(t, contexts)
}

func TestBuildPresentationContextsStoreWithoutDataset(t *testing.T) {
	_, err := buildPresentationContexts(ServiceStore, nil)
	assert.Error(t, err)
}

func TestPadAETitle(t *testing.T) {
	assert.Equal(t, "ANY-SCP         ", padAETitle("ANY-SCP"))
	assert.Len(t, padAETitle(""), 16)
	assert.Len(t, padAETitle("0123456789ABCDEFXYZ"), 16)
}

func TestValidateAETitle(t *testing.T) {
	assert.NoError(t, validateAETitle("ANY-SCP"))
	assert.NoError(t, validateAETitle("0123456789ABCDEF"))
	assert.Error(t, validateAETitle(""))
	assert.Error(t, validateAETitle("0123456789ABCDEFG"))
}
