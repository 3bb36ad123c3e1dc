package httpserver

import (
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"

	"gallery/internal/logging"
)

const flashSession = "gallery"

// newSessionStore derives independent signing and encryption keys from the
// configured secret.
func newSessionStore(secret string) (*sessions.CookieStore, error) {
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("gallery flash cookie"))
	hashKey := make([]byte, 32)
	blockKey := make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, err
	}
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store, nil
}

func (s *Server) addFlash(w http.ResponseWriter, r *http.Request, msg string) {
	// A cookie we cannot decode still yields a fresh session.
	sess, _ := s.sessions.Get(r, flashSession)
	sess.AddFlash(msg)
	if err := sess.Save(r, w); err != nil {
		logging.Warn().Err(err).Msg("save flash")
	}
}

func (s *Server) popFlashes(w http.ResponseWriter, r *http.Request) []string {
	sess, _ := s.sessions.Get(r, flashSession)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := sess.Save(r, w); err != nil {
		logging.Warn().Err(err).Msg("clear flashes")
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprint(v))
	}
	return out
}
