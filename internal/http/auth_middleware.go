package http

import (
	"context"
	"net/http"
	"strings"

	"bankroll/internal/auth"
)

type sessionKey struct{}

// bearerToken reads the Authorization header. The websocket endpoint may
// also pass the token as ?access_token= since browsers cannot set headers
// on an upgrade request.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if websocketRequest(r) {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func websocketRequest(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// requireSession rejects requests without a live session and stores the
// session in the request context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.auth.GetSession(r.Context(), bearerToken(r))
		if err != nil {
			ErrorFor(err).Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next(w, r.WithContext(ctx))
	}
}

// sessionFrom returns the session stored by requireSession.
func sessionFrom(ctx context.Context) auth.Session {
	sess, _ := ctx.Value(sessionKey{}).(auth.Session)
	return sess
}
