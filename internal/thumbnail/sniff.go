package thumbnail

import (
	"bytes"
	"strings"

	"github.com/zRedShift/mimemagic"

	"github.com/fastevo/fastevo-upload-service/internal/domain/entity"
)

// sniffLen is how much of the file the container-signature check looks at.
const sniffLen = 12

// LooksLikeVideo inspects the first bytes of src against known video
// container signatures and falls back to the declared MIME type when nothing
// matches. Advisory sniffing only, not a security boundary.
func LooksLikeVideo(src *entity.MediaSource) bool {
	head, err := src.Head(sniffLen)
	if err == nil && matchesVideoSignature(head) {
		return true
	}

	declared := src.MimeType
	if declared == "" && err == nil {
		declared = mimemagic.MatchMagic(head).MediaType()
	}
	return strings.HasPrefix(declared, "video/")
}

func matchesVideoSignature(head []byte) bool {
	if len(head) < sniffLen {
		return false
	}

	// ISO-BMFF: MP4 variants, MOV, 3GP. The brand box starts at offset 4.
	if bytes.Equal(head[4:8], []byte("ftyp")) {
		return true
	}
	// Matroska/WebM EBML header.
	if bytes.Equal(head[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}) {
		return true
	}
	// AVI: RIFF container with the AVI fourcc.
	if bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("AVI ")) {
		return true
	}
	// FLV.
	if bytes.Equal(head[0:3], []byte("FLV")) {
		return true
	}
	// QuickTime without an ftyp box: moov/mdat/wide atom at offset 4.
	atom := string(head[4:8])
	if atom == "moov" || atom == "mdat" || atom == "wide" {
		return true
	}
	return false
}
