package endpoint

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// DefaultBodyLimit bounds how much of a request body ReadBody buffers when
// the caller does not pick a limit.
const DefaultBodyLimit int64 = 1 << 20 // 1MB

// ReadBody buffers the request body, reading at most limit bytes.
//
// A limit <= 0 uses DefaultBodyLimit. A missing body yields an empty slice.
// A body larger than limit is reported as a 413 EndpointError; other read
// failures are reported as 400.
func ReadBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r == nil {
		return nil, Error(http.StatusInternalServerError, "", errors.New("endpoint: body: nil request"))
	}
	if r.Body == nil || r.Body == http.NoBody {
		return []byte{}, nil
	}
	if limit <= 0 {
		limit = DefaultBodyLimit
	}

	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, Error(http.StatusRequestEntityTooLarge, "", fmt.Errorf("endpoint: body: exceeds %d bytes", mbe.Limit))
		}
		return nil, Error(http.StatusBadRequest, "", fmt.Errorf("endpoint: body: %w", err))
	}
	return b, nil
}

// MediaType returns the lowercased media type of the request's Content-Type
// header, without parameters. It returns "" when the header is absent.
func MediaType(r *http.Request) string {
	if r == nil {
		return ""
	}
	ct := strings.TrimSpace(r.Header.Get("Content-Type"))
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		// If malformed, return the raw (lowercased) content-type.
		return strings.ToLower(ct)
	}
	return strings.ToLower(mt)
}

// IsJSON reports whether the request declares a JSON body
// (application/json or a +json suffix).
func IsJSON(r *http.Request) bool {
	mt := MediaType(r)
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
