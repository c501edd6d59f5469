package export

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
)

// tEXt keywords used in saved files.
const (
	keywordDescription = "Description"
	keywordSoftware    = "Software"
)

// ErrNoMetadata is returned when a PNG has no embedded settings chunk.
var ErrNoMetadata = errors.New("export: no settings metadata in file")

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// encodePNGWithMetadata encodes the image and splices two tEXt chunks
// after IHDR: the settings JSON under Description and the producer tag
// under Software. The standard encoder has no metadata hook, so the
// chunks are inserted into the finished byte stream.
func encodePNGWithMetadata(final *image.RGBA, settings []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, final); err != nil {
		return nil, fmt.Errorf("export: encode png: %w", err)
	}
	data := buf.Bytes()
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("export: encoder produced bad png signature")
	}

	// IHDR is required to be first: 4 length + 4 type + 13 data + 4 crc.
	insertAt := len(pngSignature) + 4 + 4 + 13 + 4
	if len(data) < insertAt {
		return nil, errors.New("export: png shorter than its header")
	}

	out := make([]byte, 0, len(data)+len(settings)+64)
	out = append(out, data[:insertAt]...)
	out = appendTextChunk(out, keywordDescription, settings)
	out = appendTextChunk(out, keywordSoftware, []byte(softwareTag))
	out = append(out, data[insertAt:]...)
	return out, nil
}

// appendTextChunk appends one tEXt chunk: length, type, keyword NUL text,
// CRC over type and data.
func appendTextChunk(out []byte, keyword string, text []byte) []byte {
	payload := make([]byte, 0, len(keyword)+1+len(text))
	payload = append(payload, keyword...)
	payload = append(payload, 0)
	payload = append(payload, text...)

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(payload)))
	out = append(out, length[:]...)

	crcStart := len(out)
	out = append(out, "tEXt"...)
	out = append(out, payload...)

	var crc [4]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(out[crcStart:]))
	return append(out, crc[:]...)
}

// pngDescription walks the chunk list and returns the Description tEXt
// payload.
func pngDescription(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("export: not a png file")
	}
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		bodyStart := pos + 8
		bodyEnd := bodyStart + length
		if bodyEnd+4 > len(data) {
			return nil, errors.New("export: truncated png chunk")
		}
		if typ == "tEXt" {
			body := data[bodyStart:bodyEnd]
			if sep := bytes.IndexByte(body, 0); sep >= 0 && string(body[:sep]) == keywordDescription {
				return body[sep+1:], nil
			}
		}
		if typ == "IEND" {
			break
		}
		pos = bodyEnd + 4
	}
	return nil, ErrNoMetadata
}
