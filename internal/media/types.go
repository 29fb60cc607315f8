package media

import (
	"encoding/base64"
	"strings"
)

// MediaType classifies the kind of media content.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
	MediaTypeFile  MediaType = "file"
)

// MediaTypeFromMime returns the media class of a MIME type.
func MediaTypeFromMime(mime string) MediaType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaTypeImage
	case strings.HasPrefix(mime, "audio/"):
		return MediaTypeAudio
	case strings.HasPrefix(mime, "video/"):
		return MediaTypeVideo
	default:
		return MediaTypeFile
	}
}

// Content is the result of one content fetch. It is built by NewContent and
// must not be modified afterwards; it belongs to the workflow that fetched it.
type Content struct {
	Raw      []byte
	Base64   string
	DataURI  string
	MimeType string
	Size     int
}

// NewContent derives the encoded forms of raw for the given MIME type.
func NewContent(raw []byte, mime string) Content {
	if raw == nil {
		raw = []byte{}
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	return Content{
		Raw:      raw,
		Base64:   encoded,
		DataURI:  DataURI(mime, encoded),
		MimeType: mime,
		Size:     len(raw),
	}
}

// IsImage reports whether the content MIME type is image/*.
func (c Content) IsImage() bool {
	return MediaTypeFromMime(c.MimeType) == MediaTypeImage
}

// DataURI formats an already base64-encoded payload as a data URI.
func DataURI(mime, encoded string) string {
	return "data:" + mime + ";base64," + encoded
}
