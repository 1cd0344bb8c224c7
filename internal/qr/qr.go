// ============================================================================
// internal/qr/qr.go
// QR payload formats and PNG data-URI encoding
// ============================================================================

package qr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Payload type discriminators embedded in every QR code
const (
	TypePermissionLetter = "permission-letter"
	TypeOutpass          = "outpass"
)

// PLPayload is the JSON embedded in a permission letter QR, minted when the
// warden approves. Field names are part of the scanner wire format.
type PLPayload struct {
	PLID            string `json:"plId"`
	StudentID       string `json:"studentId"`
	RegNo           string `json:"regNo"`
	Name            string `json:"name"`
	RoomNo          string `json:"roomNo"`
	HostelName      string `json:"hostelName"`
	PlaceOfVisit    string `json:"placeOfVisit"`
	ArrivalDateTime string `json:"arrivalDateTime"` // ISO 8601
	Type            string `json:"type"`
}

// OutpassPayload is the JSON embedded in an outpass QR, minted at creation.
type OutpassPayload struct {
	StudentID    string `json:"studentId"`
	RegNo        string `json:"regNo"`
	Name         string `json:"name"`
	Department   string `json:"department"`
	YearOfStudy  string `json:"yearOfStudy"`
	RoomNo       string `json:"roomNo"`
	HostelName   string `json:"hostelName"`
	PlaceOfVisit string `json:"placeOfVisit"`
	Type         string `json:"type"`
	CreatedAt    string `json:"createdAt"` // ISO 8601
}

// ScanData is the subset of either payload a gate scan needs to act on.
type ScanData struct {
	Type      string `json:"type"`
	PLID      string `json:"plId"`
	StudentID string `json:"studentId"`
	RegNo     string `json:"regNo"`
	Name      string `json:"name"`
}

// ParseScan decodes the raw JSON string a scanner reads out of a QR image.
func ParseScan(raw string) (*ScanData, error) {
	if raw == "" {
		return nil, fmt.Errorf("QR data is required")
	}
	var data ScanData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("invalid QR code format")
	}
	return &data, nil
}

// Encoder turns a payload into a scannable image. Failure is fatal to the
// operation minting the code: no QR, no approval.
type Encoder interface {
	Encode(payload interface{}) (string, error)
}

// PNGEncoder renders payloads as PNG data URIs suitable for direct embedding
// in an <img> tag.
type PNGEncoder struct {
	// Size is the square pixel size of the generated image.
	Size int
}

// NewPNGEncoder returns an encoder with the default 256px size.
func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{Size: 256}
}

// Encode marshals the payload to JSON and renders it as a QR PNG data URI.
func (e *PNGEncoder) Encode(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal QR payload: %w", err)
	}

	size := e.Size
	if size <= 0 {
		size = 256
	}

	png, err := qrcode.Encode(string(data), qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
