package utils

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	log "github.com/sirupsen/logrus"
)

// --- 1. Image Payload ---

// JpegDataURLPrefix is the fixed scheme marker the face service expects in front of every image.
const JpegDataURLPrefix = "data:image/jpeg;base64,"

// ErrNotDataURL is returned by DecodeDataURL when the input lacks a base64 data URL header.
var ErrNotDataURL = errors.New("not a base64 data URL")

// LoadImageDataURL reads the whole file into memory and returns it as a JPEG data URL.
// The file is closed before this returns, so no handle outlives the network calls.
func LoadImageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}

	if !IsJpeg(data) {
		// The service only accepts the jpeg marker, so we still send it as one.
		log.WithFields(log.Fields{
			"path": path,
			"mime": mimetype.Detect(data).String(),
		}).Warn("Image does not look like a JPEG, sending it anyway")
	}

	return EncodeDataURL(data), nil
}

// EncodeDataURL wraps raw bytes as "data:image/jpeg;base64,<std-base64>".
func EncodeDataURL(data []byte) string {
	return JpegDataURLPrefix + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL reverses EncodeDataURL. It accepts any "data:<mime>;base64," header.
func DecodeDataURL(s string) ([]byte, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotDataURL
	}
	return base64.StdEncoding.DecodeString(payload)
}

// IsJpeg sniffs the leading bytes of data.
func IsJpeg(data []byte) bool {
	return mimetype.Detect(data).Is("image/jpeg")
}

// --- 2. Console Output ---

// PrettyJSON indents a JSON body by two spaces. Bodies that are not valid JSON are returned as-is.
func PrettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ShowError prints a formatted error box to stderr without exiting.
func ShowError(context string, err error) {
	FprintError(os.Stderr, context, err)
}

// FprintError is ShowError with an explicit writer.
func FprintError(w io.Writer, context string, err error) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "🚨 SURI ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(w, "DETAILS: %v\n", err)
	}
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}
