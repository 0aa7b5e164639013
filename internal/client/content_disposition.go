package client

import (
	"mime"
	"net/url"
	"strings"

	"reviewdeck/internal/types"
)

// FilenameFromContentDisposition extracts the download name from a
// Content-Disposition header. RFC 5987 `filename*` wins over `filename`.
// Missing or malformed headers yield fallback.
func FilenameFromContentDisposition(header, fallback string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(header)
	if err == nil {
		// mime decodes filename* into filename when the charset is supported.
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}
	if name := extendedFilename(header); name != "" {
		return name
	}
	return fallback
}

// extendedFilename handles `filename*=` values mime rejects, for example an
// unquoted charset other than UTF-8 or US-ASCII.
func extendedFilename(header string) string {
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "filename*") {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if idx := strings.LastIndex(value, "''"); idx >= 0 {
			value = value[idx+2:]
		}
		decoded, err := url.PathUnescape(value)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(decoded)
	}
	return ""
}

func defaultExportName(kind types.JobKind) string {
	return string(kind) + "_export.csv"
}
