package statusapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(body io.Reader, out any) error {
	if err := json.NewDecoder(io.LimitReader(body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("statusapi: decode body: %w", err)
	}
	return nil
}
