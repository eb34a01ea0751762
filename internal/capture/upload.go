package capture

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"omnichat/internal/content"
)

const MaxUploadBytes = 10 << 20

// ValidateUpload checks an image file before any of it is read.
func ValidateUpload(mimeType string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/") {
		return ErrInvalidFile
	}
	if size > MaxUploadBytes {
		return ErrFileTooLarge
	}
	return nil
}

// ReadUpload validates and reads an image into a data URI.
func ReadUpload(name, mimeType string, size int64, r io.Reader) (content.ImagePayload, error) {
	if err := ValidateUpload(mimeType, size); err != nil {
		return content.ImagePayload{}, fmt.Errorf("%s: %w", name, err)
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return content.ImagePayload{}, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > MaxUploadBytes {
		return content.ImagePayload{}, fmt.Errorf("%s: %w", name, ErrFileTooLarge)
	}
	return content.ImagePayload{DataURI: content.DataURI(mediaType(mimeType), data)}, nil
}

// ReadUploadFile reads an image from disk. The MIME type comes from the file
// extension, or from the first bytes when the extension is unknown.
func ReadUploadFile(path string) (content.ImagePayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return content.ImagePayload{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return content.ImagePayload{}, err
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	var head []byte
	if mimeType == "" {
		head = make([]byte, 512)
		n, err := io.ReadFull(f, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return content.ImagePayload{}, err
		}
		head = head[:n]
		mimeType = http.DetectContentType(head)
	}

	return ReadUpload(filepath.Base(path), mimeType, info.Size(), io.MultiReader(bytes.NewReader(head), f))
}

func mediaType(mimeType string) string {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return strings.TrimSpace(mimeType)
}
