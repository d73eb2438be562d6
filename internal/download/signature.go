package download

import "bytes"

const (
	// Anything under 1KiB is an error page or a truncated body, never a real
	// catalog image.
	minValidSize = 1024

	// signatureLen bytes are enough for every supported container, including
	// RIFF whose format tag sits at offset 8.
	signatureLen = 16
)

var signatures = [][]byte{
	{0xFF, 0xD8, 0xFF},      // JPEG
	{0x89, 'P', 'N', 'G'},   // PNG
	[]byte("GIF8"),          // GIF87a / GIF89a
	[]byte("BM"),            // BMP
}

// validSignature reports whether prefix starts with a known image container
// signature. WEBP is checked separately because its tag is nested in RIFF.
func validSignature(prefix []byte) bool {
	for _, sig := range signatures {
		if bytes.HasPrefix(prefix, sig) {
			return true
		}
	}
	if bytes.HasPrefix(prefix, []byte("RIFF")) && len(prefix) >= 12 &&
		bytes.Equal(prefix[8:12], []byte("WEBP")) {
		return true
	}
	return false
}

// looksLikeHTML reports whether the body is a masked error or anti-bot page.
func looksLikeHTML(prefix []byte) bool {
	trimmed := bytes.TrimLeft(prefix, " \t\r\n")
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype")) ||
		bytes.HasPrefix(lower, []byte("<html")) ||
		bytes.HasPrefix(lower, []byte("<?xml"))
}
