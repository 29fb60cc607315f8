package media

import (
	"path"
	"strings"
)

// DefaultMimeType is returned when neither a hint nor a known extension is available.
const DefaultMimeType = "application/octet-stream"

var extensionMimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"mp4":  "video/mp4",
	"mov":  "video/quicktime",
	"avi":  "video/x-msvideo",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"pdf":  "application/pdf",
	"txt":  "text/plain",
}

// DetectMimeType returns hint verbatim when it is non-empty, otherwise the MIME
// type registered for the file-name extension, otherwise DefaultMimeType.
func DetectMimeType(fileName, hint string) string {
	if hint != "" {
		return hint
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(strings.TrimSpace(fileName))), ".")
	if mime, ok := extensionMimeTypes[ext]; ok {
		return mime
	}
	return DefaultMimeType
}
