package dimse

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/openrad/go-dicomul/commandset"
	"github.com/suyashkumar/dicom"
	dicomtag "github.com/suyashkumar/dicom/pkg/tag"
)

// NewElement creates a command-set element for the given tag, converting the
// value to the representation the dicom library expects.
func NewElement(t dicomtag.Tag, value interface{}) (*dicom.Element, error) {
	switch v := value.(type) {
	case int:
		return dicom.NewElement(t, []int{v})
	case uint16:
		return dicom.NewElement(t, []int{int(v)})
	case uint32:
		return dicom.NewElement(t, []int{int(v)})
	case string:
		return dicom.NewElement(t, []string{v})
	case []int:
		return dicom.NewElement(t, v)
	case []string:
		return dicom.NewElement(t, v)
	default:
		return nil, fmt.Errorf("NewElement: unsupported value type %T for tag %s", value, t.String())
	}
}

// messageFields accumulates the command elements of one message in wire
// order, keeping the first construction error so Encode implementations stay
// declarative.
type messageFields struct {
	elems []*dicom.Element
	err   error
}

func (f *messageFields) add(t dicomtag.Tag, value interface{}) {
	if f.err != nil {
		return
	}
	elem, err := NewElement(t, value)
	if err != nil {
		f.err = fmt.Errorf("dimse: tag %s: %w", t.String(), err)
		return
	}
	f.elems = append(f.elems, elem)
}

func (f *messageFields) addIf(present bool, t dicomtag.Tag, value interface{}) {
	if present {
		f.add(t, value)
	}
}

func (f *messageFields) addStatus(s Status) {
	f.add(commandset.Status, int(s.Status))
	f.addIf(s.ErrorComment != "", commandset.ErrorComment, s.ErrorComment)
}

func (f *messageFields) encode(out io.Writer, extra []*dicom.Element) error {
	if f.err != nil {
		return f.err
	}
	return EncodeElements(out, append(f.elems, extra...))
}

// EncodeElements writes the elements to out as Implicit VR Little Endian, the
// encoding mandated for command sets (P3.7 6.3.1) and the only transfer syntax
// this module negotiates for data sets.
func EncodeElements(out io.Writer, elems []*dicom.Element) error {
	writer, err := dicom.NewWriter(out)
	if err != nil {
		return fmt.Errorf("EncodeElements: error creating writer: %w", err)
	}
	writer.SetTransferSyntax(binary.LittleEndian, true)
	for _, elem := range elems {
		if err := writer.WriteElement(elem); err != nil {
			return fmt.Errorf("EncodeElements: error writing element %s: %w", elem.Tag.String(), err)
		}
	}
	return nil
}
