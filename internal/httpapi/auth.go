package httpapi

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// Credentials are the admin panel login.
type Credentials struct {
	Username string
	Password string
}

// Token returns the bearer token issued at login.
func (c Credentials) Token() string {
	return base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
}

// Match compares user and password in constant time. Empty configured
// credentials never match.
func (c Credentials) Match(user, password string) bool {
	if c.Username == "" || c.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.Username))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password))
	return userOK&passOK == 1
}

// parseAuthorization decodes "Basic b64(user:pass)" or "Bearer b64(user:pass)".
func parseAuthorization(header string) (user, password string, ok bool) {
	scheme, value, found := strings.Cut(header, " ")
	if !found || (!strings.EqualFold(scheme, "Basic") && !strings.EqualFold(scheme, "Bearer")) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return "", "", false
	}
	user, password, ok = strings.Cut(string(raw), ":")
	return user, password, ok
}

var (
	errAuthRequired = &apiError{Status: http.StatusUnauthorized, Err: "Autenticación requerida"}
	errBadLogin     = &apiError{Status: http.StatusUnauthorized, Err: "Credenciales inválidas"}
)

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="admin"`)
			errAuthRequired.write(w)
			return
		}
		user, password, ok := parseAuthorization(header)
		if !ok || !s.admin.Match(user, password) {
			errBadLogin.write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if e := decodeJSON(w, r, &req); e != nil {
		e.write(w)
		return
	}
	if !s.admin.Match(req.Username, req.Password) {
		errBadLogin.write(w)
		return
	}
	writeJSON(w, r, http.StatusOK, loginResponse{
		Success: true,
		Message: "Login exitoso",
		Token:   s.admin.Token(),
	})
}
