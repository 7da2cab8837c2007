// Package imagetype identifies common image formats from a payload's leading
// bytes. It inspects at most the first 12 bytes and never errors: unknown
// content is reported as "not an image" or falls back to jpg, depending on
// the caller's mode.
package imagetype

import "bytes"

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	gifMagic  = []byte{0x47, 0x49, 0x46, 0x38}
	riffMagic = []byte{0x52, 0x49, 0x46, 0x46}
	webpMagic = []byte{0x57, 0x45, 0x42, 0x50}
)

var mimeByExt = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// DetectExt returns the extension token (png, jpg, gif, webp) for the image
// format matching buf's signature. When no signature matches, it returns the
// empty string in strict mode and "jpg" otherwise.
func DetectExt(buf []byte, strict bool) string {
	ext := match(buf)
	if ext == "" && !strict {
		return "jpg"
	}
	return ext
}

// DetectMIME is DetectExt returning a MIME type instead of an extension.
func DetectMIME(buf []byte, strict bool) string {
	ext := DetectExt(buf, strict)
	return mimeByExt[ext]
}

func match(buf []byte) string {
	if len(buf) < 12 {
		return ""
	}
	switch {
	case bytes.HasPrefix(buf, pngMagic):
		return "png"
	case bytes.HasPrefix(buf, jpegMagic):
		return "jpg"
	case bytes.HasPrefix(buf, gifMagic):
		return "gif"
	case bytes.HasPrefix(buf, riffMagic) && bytes.Equal(buf[8:12], webpMagic):
		return "webp"
	}
	return ""
}
