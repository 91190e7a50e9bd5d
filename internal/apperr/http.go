package apperr

import (
	"encoding/json"
	"net/http"
)

// Write renders err as a catalog payload and returns the catalog error it wrote.
func Write(w http.ResponseWriter, err error) *Error {
	e := From(err)
	status := e.Status
	if status == 0 {
		status = Status(e.Key)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e.Payload())
	return e
}
