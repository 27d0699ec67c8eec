package pkg

import (
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ReadCSVUpload pulls the "file" part out of a multipart upload and decodes
// it to text. Writes the error response itself and returns false on failure.
func ReadCSVUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (string, bool) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		WriteAPIError(w, "Debes subir un archivo CSV.", http.StatusBadRequest)
		return "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteAPIError(w, "Debes subir un archivo CSV.", http.StatusBadRequest)
		return "", false
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Warnf("close uploaded csv: %s", err)
		}
	}()

	if name := strings.ToLower(header.Filename); name != "" && !strings.HasSuffix(name, ".csv") {
		WriteAPIError(w, "El archivo debe tener extension .csv.", http.StatusBadRequest)
		return "", false
	}

	raw, err := io.ReadAll(io.LimitReader(file, maxSize))
	if err != nil {
		WriteAPIError(w, "No se pudo leer el CSV.", http.StatusBadRequest)
		return "", false
	}
	return DecodeCSVBytes(raw), true
}
