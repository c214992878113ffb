package exoserver

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/function61/gokit/mime"
)

func outJson(w http.ResponseWriter, out interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func contentTypeForFilename(path string) string {
	ext := filepath.Ext(path)

	// works with uppercase extensions as well
	return mime.TypeByExtension(ext, mime.OctetStream)
}
