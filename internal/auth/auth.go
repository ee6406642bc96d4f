package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

const DefaultPasscode = "jimmyliao"

// Passcode verifies the shared passcode that unlocks the studio UI.
type Passcode struct {
	secret   []byte
	onResult func(ok bool)
}

// NewPasscode creates a verifier. An empty secret falls back to DefaultPasscode.
// onResult may be nil.
func NewPasscode(secret string, onResult func(ok bool)) *Passcode {
	if secret == "" {
		secret = DefaultPasscode
	}
	return &Passcode{secret: []byte(secret), onResult: onResult}
}

// Verify is an exact, case-sensitive comparison.
func (p *Passcode) Verify(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), p.secret) == 1
}

type verifyRequest struct {
	Passcode string `json:"passcode"`
}

type verifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Handler serves POST /api/verify-passcode.
func (p *Passcode) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, verifyResponse{Message: "Method not allowed"})
			return
		}

		// an empty body carries no passcode and is an ordinary mismatch
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			hlog.FromRequest(r).Debug().Err(err).Msg("passcode body rejected")
			writeJSON(w, http.StatusBadRequest, verifyResponse{Message: "Invalid request body"})
			return
		}

		ok := p.Verify(req.Passcode)
		if p.onResult != nil {
			p.onResult(ok)
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, verifyResponse{Message: "Invalid passcode"})
			return
		}
		writeJSON(w, http.StatusOK, verifyResponse{Success: true})
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
