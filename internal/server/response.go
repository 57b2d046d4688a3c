package server

import (
	"encoding/json"
	"net/http"

	"github.com/NgigiN/ledger/internal/apperr"
)

// message is the body of every non-data response.
type message struct {
	Msg string `json:"msg"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMsg(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, message{Msg: msg})
}

// writeErr maps an application error to its status code. Storage faults are
// reported without their cause.
func writeErr(w http.ResponseWriter, err error) {
	writeMsg(w, apperr.HTTPStatus(apperr.KindOf(err)), apperr.MessageOf(err))
}
