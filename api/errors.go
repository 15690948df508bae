package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zkforge/proofhost/log"
)

// Error implements the error interface and carries the API error code plus
// the HTTP status it maps to. Codes in the 40001-49999 range are the
// client's fault, 50001-59999 the server's. Codes are append-only; never
// reuse a retired one.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

func (e Error) Error() string {
	return e.Err.Error()
}

// WithErr returns a copy of the Error with the underlying error wrapped
// into the message.
func (e Error) WithErr(err error) Error {
	e.Err = fmt.Errorf("%v: %w", e.Err, err)
	return e
}

// MarshalJSON flattens the wrapped error into a string field, since
// encoding/json would not call Error() on its own.
func (e Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Err  string `json:"error"`
		Code int    `json:"code"`
	}{
		Err:  e.Err.Error(),
		Code: e.Code,
	})
}

// Write replies to the request with the error's HTTP status and JSON body.
func (e Error) Write(w http.ResponseWriter) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Warnw("failed to marshal error response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(data); err != nil {
		log.Warnw("failed to write error response", "error", err)
	}
}

var (
	ErrResourceNotFound       = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody          = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedAddress       = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrMalformedParam         = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedInstruction   = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed instruction")}
	ErrRecordAlreadyExists    = Error{Code: 40006, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("record already exists")}
	ErrVerifyingKeyNotFound   = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("verifying key not found")}
	ErrComputeBudgetExhausted = Error{Code: 40008, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("compute budget exhausted")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
