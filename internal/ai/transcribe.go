package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// DefaultTranscribeMaxBytes is the upstream's per-file ceiling.
const DefaultTranscribeMaxBytes = 25 << 20

// transcriptionPrompt primes the model for lecture-style speech.
const transcriptionPrompt = "Educational content such as a lecture, seminar, meeting, or study discussion. " +
	"Transcribe technical and academic terms, numbers, dates, and proper nouns exactly. " +
	"Use punctuation for readability and drop filler words and repetitions."

// Audio is a media payload to transcribe.
type Audio struct {
	Data     []byte
	Filename string
	MIMEType string
}

// Transcribe converts speech in audio to text. An empty languageHint uses
// the configured default.
func (c *Client) Transcribe(ctx context.Context, audio Audio, languageHint string) (string, error) {
	limit := c.cfg.TranscribeMaxBytes
	if limit <= 0 {
		limit = DefaultTranscribeMaxBytes
	}
	if int64(len(audio.Data)) > limit {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(audio.Data), limit)
	}
	if languageHint == "" {
		languageHint = c.cfg.LanguageHint
	}

	body, contentType, err := buildTranscriptionForm(audio, c.cfg.TranscribeModel, languageHint)
	if err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	reply, replyType, err := c.do(ctx, ServiceTranscribe, req)
	if err != nil {
		return "", err
	}

	text := parseTranscript(reply, replyType)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func buildTranscriptionForm(audio Audio, model, language string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := audio.Filename
	if filename == "" {
		filename = "upload"
	}
	mimeType := audio.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": filename,
	}))
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"model", model},
		{"language", language},
		{"prompt", transcriptionPrompt},
		{"temperature", "0"},
		{"response_format", "text"},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// parseTranscript accepts both response_format=text and the JSON shape.
func parseTranscript(body []byte, contentType string) string {
	if strings.HasPrefix(contentType, "application/json") {
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil {
			return strings.TrimSpace(parsed.Text)
		}
	}
	return strings.TrimSpace(string(body))
}
