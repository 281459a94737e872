package model

import (
	"mime"
	"path/filepath"
	"strings"
)

// Category is the upload family a note-creation request declares.
type Category int

const (
	CategoryMedia Category = iota + 1
	CategoryDocument
)

// String implements fmt.Stringer.
func (c Category) String() string {
	switch c {
	case CategoryMedia:
		return "media"
	case CategoryDocument:
		return "document"
	default:
		return "unknown"
	}
}

// MediaKind is the resolved kind of a transcribable upload.
type MediaKind int

const (
	MediaAudio MediaKind = iota + 1
	MediaVideo
)

// String implements fmt.Stringer.
func (k MediaKind) String() string {
	switch k {
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	default:
		return "unknown"
	}
}

// DocumentKind is the resolved kind of an extractable document.
type DocumentKind int

const (
	DocumentPDF DocumentKind = iota + 1
	DocumentWord
	DocumentPlainText
)

// String implements fmt.Stringer.
func (k DocumentKind) String() string {
	switch k {
	case DocumentPDF:
		return "pdf"
	case DocumentWord:
		return "word"
	case DocumentPlainText:
		return "text"
	default:
		return "unknown"
	}
}

var mediaExtensions = map[string]MediaKind{
	".mp3":  MediaAudio,
	".m4a":  MediaAudio,
	".wav":  MediaAudio,
	".ogg":  MediaAudio,
	".oga":  MediaAudio,
	".flac": MediaAudio,
	".aac":  MediaAudio,
	".webm": MediaAudio,
	".mp4":  MediaVideo,
	".mov":  MediaVideo,
	".mkv":  MediaVideo,
	".avi":  MediaVideo,
	".mpeg": MediaVideo,
}

var documentExtensions = map[string]DocumentKind{
	".pdf":  DocumentPDF,
	".docx": DocumentWord,
	".doc":  DocumentWord,
	".txt":  DocumentPlainText,
}

// Extension returns the lower-cased extension of filename, including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ClassifyMedia resolves an upload to a MediaKind from its declared content
// type. Generic binary types fall back to the filename extension.
func ClassifyMedia(contentType, filename string) (MediaKind, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	switch {
	case strings.HasPrefix(mediaType, "audio/"):
		return MediaAudio, true
	case strings.HasPrefix(mediaType, "video/"):
		return MediaVideo, true
	case mediaType == "" || mediaType == "application/octet-stream":
		kind, ok := mediaExtensions[Extension(filename)]
		return kind, ok
	default:
		return 0, false
	}
}

// ClassifyDocument resolves an upload to a DocumentKind from its extension.
func ClassifyDocument(filename string) (DocumentKind, bool) {
	kind, ok := documentExtensions[Extension(filename)]
	return kind, ok
}
