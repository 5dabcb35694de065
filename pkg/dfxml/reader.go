package dfxml

import (
	"encoding/xml"
	"errors"
	"io"
)

var ErrNoHeader = errors.New("dfxml: missing source header")

// ReadHeader decodes the document header up to, and excluding, the first
// <fileobject> element.
func ReadHeader(r io.Reader) (DFXMLHeader, error) {
	var hdr DFXMLHeader

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return hdr, ErrNoHeader
			}
			return hdr, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "dfxml":
			for _, a := range start.Attr {
				if a.Name.Local == "xmloutputversion" {
					hdr.XmlOutput = a.Value
				}
			}
		case "metadata":
			err = dec.DecodeElement(&hdr.Metadata, &start)
		case "creator":
			err = dec.DecodeElement(&hdr.Creator, &start)
		case "source":
			if err := dec.DecodeElement(&hdr.Source, &start); err != nil {
				return hdr, err
			}
			return hdr, nil
		case "fileobject":
			return hdr, ErrNoHeader
		}
		if err != nil {
			return hdr, err
		}
	}
}

// ReadFileObjects parses and returns all <fileobject> elements from the reader.
func ReadFileObjects(r io.Reader) ([]FileObject, error) {
	dec := xml.NewDecoder(r)
	var fileObjects []FileObject

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}

		// Look for start elements named "fileobject"
		if startElem, ok := tok.(xml.StartElement); ok && startElem.Name.Local == "fileobject" {
			var fo FileObject
			if err := dec.DecodeElement(&fo, &startElem); err != nil {
				return nil, err
			}
			fileObjects = append(fileObjects, fo)
		}
	}
	return fileObjects, nil
}
