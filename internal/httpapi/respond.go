package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Fallback lists the contact channels shown to customers when the order
// flow degrades.
type Fallback struct {
	WhatsApp string `json:"whatsapp"`
	Email    string `json:"email"`
}

// apiError is a client-facing failure: Err is the short "error" field,
// Message the optional human explanation.
type apiError struct {
	Status  int
	Err     string
	Message string
}

var errInvalidBody = &apiError{
	Status:  http.StatusBadRequest,
	Err:     "Solicitud inválida",
	Message: "El cuerpo de la solicitud no es JSON válido",
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) *apiError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zctx.From(r.Context()).Error("Encode response", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Error interno del servidor", "", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeFailure writes {"success":false,"error":...,"message":...,"fallback":{...}}.
func writeFailure(w http.ResponseWriter, status int, errText, message string, fb *Fallback) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("error")
	e.Str(errText)
	if message != "" {
		e.FieldStart("message")
		e.Str(message)
	}
	if fb != nil {
		e.FieldStart("fallback")
		e.ObjStart()
		e.FieldStart("whatsapp")
		e.Str(fb.WhatsApp)
		e.FieldStart("email")
		e.Str(fb.Email)
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Bytes())))
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func (e *apiError) write(w http.ResponseWriter) {
	writeFailure(w, e.Status, e.Err, e.Message, nil)
}

// internalError logs err and answers 500. fb is attached for customer-facing
// routes.
func internalError(w http.ResponseWriter, r *http.Request, err error, message string, fb *Fallback) {
	zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	writeFailure(w, http.StatusInternalServerError, "Error interno del servidor", message, fb)
}
