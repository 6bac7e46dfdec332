// Package sopclass lists the SOP class UIDs this module negotiates.
//
// https://www.dicomlibrary.com/dicom/sop/
package sopclass

// SOPUID is a named SOP class UID.
type SOPUID struct {
	Name string
	UID  string
}

// Query/retrieve and worklist information models.
const (
	VerificationSOPClass = "1.2.840.10008.1.1"

	PatientRootQueryRetrieveFIND = "1.2.840.10008.5.1.4.1.2.1.1"
	PatientRootQueryRetrieveMOVE = "1.2.840.10008.5.1.4.1.2.1.2"
	StudyRootQueryRetrieveFIND   = "1.2.840.10008.5.1.4.1.2.2.1"
	StudyRootQueryRetrieveMOVE   = "1.2.840.10008.5.1.4.1.2.2.2"

	// Retired, still offered for compatibility with older archives.
	PatientStudyOnlyQueryRetrieveFIND = "1.2.840.10008.5.1.4.1.2.3.1"

	ModalityWorklistFIND = "1.2.840.10008.5.1.4.31"

	// Retired, still offered.
	GeneralPurposeWorklistFIND = "1.2.840.10008.5.1.4.32.1"
)

// For issuing C-ECHO.
var VerificationClasses = []SOPUID{
	{"VerificationSOPClass", VerificationSOPClass},
}

// For issuing C-FIND.
var QRFindClasses = []SOPUID{
	{"PatientRootQueryRetrieveInformationModelFIND", PatientRootQueryRetrieveFIND},
	{"StudyRootQueryRetrieveInformationModelFIND", StudyRootQueryRetrieveFIND},
	{"PatientStudyOnlyQueryRetrieveInformationModelFIND", PatientStudyOnlyQueryRetrieveFIND},
	{"ModalityWorklistInformationModelFIND", ModalityWorklistFIND},
	{"GeneralPurposeWorklistInformationModelFIND", GeneralPurposeWorklistFIND},
}

// For issuing C-MOVE.
var QRMoveClasses = []SOPUID{
	{"PatientRootQueryRetrieveInformationModelFIND", PatientRootQueryRetrieveFIND},
	{"PatientRootQueryRetrieveInformationModelMOVE", PatientRootQueryRetrieveMOVE},
	{"StudyRootQueryRetrieveInformationModelFIND", StudyRootQueryRetrieveFIND},
	{"StudyRootQueryRetrieveInformationModelMOVE", StudyRootQueryRetrieveMOVE},
}

// For issuing or receiving C-STORE. Subset of P3.4 B.5 covering the common
// image object classes.
var StorageClasses = []SOPUID{
	{"ComputedRadiographyImageStorage", "1.2.840.10008.5.1.4.1.1.1"},
	{"DigitalXRayImagePresentationStorage", "1.2.840.10008.5.1.4.1.1.1.1"},
	{"DigitalMammographyXRayImagePresentationStorage", "1.2.840.10008.5.1.4.1.1.1.2"},
	{"CTImageStorage", "1.2.840.10008.5.1.4.1.1.2"},
	{"EnhancedCTImageStorage", "1.2.840.10008.5.1.4.1.1.2.1"},
	{"UltrasoundMultiframeImageStorage", "1.2.840.10008.5.1.4.1.1.3.1"},
	{"MRImageStorage", "1.2.840.10008.5.1.4.1.1.4"},
	{"EnhancedMRImageStorage", "1.2.840.10008.5.1.4.1.1.4.1"},
	{"UltrasoundImageStorage", "1.2.840.10008.5.1.4.1.1.6.1"},
	{"SecondaryCaptureImageStorage", "1.2.840.10008.5.1.4.1.1.7"},
	{"XRayAngiographicImageStorage", "1.2.840.10008.5.1.4.1.1.12.1"},
	{"XRayRadiofluoroscopicImageStorage", "1.2.840.10008.5.1.4.1.1.12.2"},
	{"NuclearMedicineImageStorage", "1.2.840.10008.5.1.4.1.1.20"},
	{"PositronEmissionTomographyImageStorage", "1.2.840.10008.5.1.4.1.1.128"},
	{"RTImageStorage", "1.2.840.10008.5.1.4.1.1.481.1"},
	{"RTDoseStorage", "1.2.840.10008.5.1.4.1.1.481.2"},
	{"RTStructureSetStorage", "1.2.840.10008.5.1.4.1.1.481.3"},
	{"RTPlanStorage", "1.2.840.10008.5.1.4.1.1.481.5"},
	{"DigitalIntraOralXRayImagePresentationStorage", "1.2.840.10008.5.1.4.1.1.1.3"},
	{"VLPhotographicImageStorage", "1.2.840.10008.5.1.4.1.1.77.1.4"},
}
