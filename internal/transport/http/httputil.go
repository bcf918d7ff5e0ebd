// Package httptransport is the thin HTTP layer over the pipeline services.
// Handlers delegate to domain services and keep transport concerns isolated.
package httptransport

import (
	"encoding/json"
	"net/http"

	"doctrine/pkg/pipeerrors"
)

// writeError translates a domain error into the JSON error envelope. Internal
// errors omit the description so storage details never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	code := pipeerrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != pipeerrors.CodeInternal {
		body["error_description"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(pipeerrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pipeerrors.New(pipeerrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
