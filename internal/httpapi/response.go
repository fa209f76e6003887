package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	mtAuth "github.com/MrEthical07/mtAuth"
	"github.com/MrEthical07/mtAuth/internal/validation"
)

// CodeInvalidRequest marks a body that failed to decode or validate.
const CodeInvalidRequest = "INVALID_REQUEST"

const maxBodyBytes = 1 << 16

type invalidRequest struct {
	Success bool                   `json:"success"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

// decode reads a JSON body into dst and runs its validate tags. It writes
// the 400 response itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, invalidRequest{
			Code:    CodeInvalidRequest,
			Message: "malformed JSON body",
		})
		return false
	}
	if fields := validation.Struct(dst); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, invalidRequest{
			Code:    CodeInvalidRequest,
			Message: "missing or invalid fields",
			Fields:  fields,
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeResult(w http.ResponseWriter, res mtAuth.Result) {
	writeJSON(w, res.HTTPStatus, res)
}

func writeError(w http.ResponseWriter, err error) {
	writeResult(w, mtAuth.ResultFromError(err))
}
