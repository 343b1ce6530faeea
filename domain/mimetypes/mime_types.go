package mimetypes

import (
	"mime"
	"strings"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"

	ApplicationPDF         MIME = "application/pdf"
	ApplicationOctetStream MIME = "application/octet-stream"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"
)

// attachments lists what may be stored as a message attachment, with the
// extension given to the stored file.
var attachments = map[MIME]string{
	ImageJPEG:      ".jpg",
	ImagePNG:       ".png",
	ImageGIF:       ".gif",
	ImageWEBP:      ".webp",
	ApplicationPDF: ".pdf",
}

// ToMIME strips parameters such as charset and lowercases the media type.
func ToMIME(raw string) MIME {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return Unknown
	}
	return MIME(strings.ToLower(mt))
}

func Matches(detected string, expected MIME) (MIME, bool) {
	mt := ToMIME(detected)
	if mt == Unknown {
		return Unknown, false
	}
	return expected, mt == expected
}

// Allowed reports whether the type may be attached to a message.
func Allowed(m MIME) bool {
	_, ok := attachments[m]
	return ok
}

// Extension returns the file extension used when storing an allowed type.
func Extension(m MIME) string {
	return attachments[m]
}
