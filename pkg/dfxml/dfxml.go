package dfxml

import (
	"encoding/xml"
	"os"
	"os/user"
	"runtime"
	"strconv"
	"time"
)

const XmlOutputVersion = "1.0"

var DefaultMetadata = Metadata{
	Xmlns:    "http://www.forensicswiki.org/wiki/Category:Digital_Forensics_XML",
	XmlnsXsi: "http://www.w3.org/2001/XMLSchema-instance",
	XmlnsDC:  "http://purl.org/dc/elements/1.1/",
	Type:     "Signature Scan Report",
}

// DFXMLHeader represents the root element of a DFXML document.
type DFXMLHeader struct {
	XMLName   xml.Name `xml:"dfxml"`
	XmlOutput string   `xml:"xmloutputversion,attr,omitempty"`
	Metadata  Metadata `xml:"metadata"`
	Creator   Creator  `xml:"creator"`
	Source    Source   `xml:"source"`
}

// Metadata contains various metadata attributes for the DFXML document.
type Metadata struct {
	Xmlns    string `xml:"xmlns,attr"`
	XmlnsXsi string `xml:"xmlns:xsi,attr"`
	XmlnsDC  string `xml:"xmlns:dc,attr"`
	Type     string `xml:"dc:type"`
}

// Creator describes the software and environment used to generate the DFXML.
type Creator struct {
	Package              string  `xml:"package"`
	Version              string  `xml:"version"`
	ExecutionEnvironment ExecEnv `xml:"execution_environment"`
}

// ExecEnv provides information about the operating system and host where the DFXML was created.
type ExecEnv struct {
	OS      string `xml:"os_sysname"`
	Release string `xml:"os_release"`
	Version string `xml:"os_version"`
	Host    string `xml:"host"`
	Arch    string `xml:"arch"`
	UID     int    `xml:"uid"`
	Start   string `xml:"start_time"`
}

// Source describes the scanned file.
type Source struct {
	ImageFilename string `xml:"image_filename"`
	ImageSize     uint64 `xml:"image_size"`
}

// FileObject is a signature match, located by its byte runs within the
// scanned file.
type FileObject struct {
	XMLName     xml.Name `xml:"fileobject"`
	Filename    string   `xml:"filename"`
	FileSize    uint64   `xml:"filesize"`
	Signature   string   `xml:"signature,omitempty"`
	Description string   `xml:"description,omitempty"`
	Confidence  uint8    `xml:"confidence"`
	ByteRuns    ByteRuns `xml:"byte_runs"`
}

// ByteRuns is a collection of ByteRun entries.
type ByteRuns struct {
	Runs []ByteRun `xml:"byte_run"`
}

// ByteRun describes a contiguous block of data within the image.
type ByteRun struct {
	Offset    uint64 `xml:"offset,attr"`     // Logical offset within the file object.
	ImgOffset uint64 `xml:"img_offset,attr"` // Physical offset within the scanned file.
	Length    uint64 `xml:"len,attr"`
}

// GetExecEnv retrieves runtime information to populate the ExecEnv struct.
func GetExecEnv() ExecEnv {
	sysname, release, version := uname()

	host, err := os.Hostname()
	if err != nil {
		host = "unknown_host"
	}

	uid := 0
	currentUser, err := user.Current()
	if err == nil {
		if uidInt, parseErr := strconv.Atoi(currentUser.Uid); parseErr == nil {
			uid = uidInt
		}
	}

	return ExecEnv{
		OS:      sysname,
		Release: release,
		Version: version,
		Host:    host,
		Arch:    runtime.GOARCH,
		UID:     uid,
		Start:   time.Now().UTC().Format("2006-01-02T15:04:05Z"),
	}
}
