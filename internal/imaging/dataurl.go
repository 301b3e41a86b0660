package imaging

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
)

var extByType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DecodeDataURL accepts either a data:<mime>;base64,<payload> URL or a bare
// base64 string and returns the raw bytes.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty image payload", apperr.ErrInvalid)
	}

	encoded := s
	if strings.HasPrefix(s, "data:") {
		rest := strings.TrimPrefix(s, "data:")
		comma := strings.Index(rest, ",")
		if comma < 0 {
			return nil, fmt.Errorf("%w: data URL missing comma separator", apperr.ErrInvalid)
		}
		if !strings.Contains(rest[:comma], ";base64") {
			return nil, fmt.Errorf("%w: only base64 data URLs are supported", apperr.ErrInvalid)
		}
		encoded = rest[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 data", apperr.ErrInvalid)
		}
	}
	return data, nil
}

// SniffContentType returns the image MIME type detected from data's magic
// bytes, or ErrDecode when data is not a supported image.
func SniffContentType(data []byte) (string, error) {
	ct := strings.Split(http.DetectContentType(data), ";")[0]
	if _, ok := extByType[ct]; !ok {
		return "", fmt.Errorf("%w: unsupported content type %s", apperr.ErrDecode, ct)
	}
	return ct, nil
}

// Extension returns the file extension for an image MIME type, or ".bin".
func Extension(contentType string) string {
	if ext, ok := extByType[contentType]; ok {
		return ext
	}
	return ".bin"
}
