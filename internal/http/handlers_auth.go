package http

import (
	"net/http"
	"time"

	"bankroll/internal/auth"
	applog "bankroll/internal/log"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

type signUpResponse struct {
	UserID  string       `json:"userId"`
	Session *sessionView `json:"session,omitempty"`
}

// handleSignUp answers 201 with a session, or 202 when the account must be
// confirmed before signing in.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		requestError(err).Write(w)
		return
	}

	res, err := s.auth.SignUp(r.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		s.authFailed(r, "signup", err)
		ErrorFor(err).Write(w)
		return
	}
	s.metrics.AuthEvent(string(auth.SignedUp))

	body := signUpResponse{UserID: res.UserID}
	if res.Session == nil {
		NewJSONResponse().Status(http.StatusAccepted).Body(body).Write(w)
		return
	}
	v := newSessionView(*res.Session)
	body.Session = &v
	NewJSONResponse().Status(http.StatusCreated).Body(body).Write(w)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		requestError(err).Write(w)
		return
	}

	sess, err := s.auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		s.authFailed(r, "signin", err)
		ErrorFor(err).Write(w)
		return
	}
	s.metrics.AuthEvent(string(auth.SignedIn))
	NewJSONResponse().Body(newSessionView(sess)).Write(w)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, s.validate, &req); err != nil {
		requestError(err).Write(w)
		return
	}

	sess, err := s.auth.Confirm(r.Context(), req.Token)
	if err != nil {
		s.authFailed(r, "confirm", err)
		ErrorFor(err).Write(w)
		return
	}
	s.metrics.AuthEvent(string(auth.SignedIn))
	NewJSONResponse().Body(newSessionView(sess)).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := s.auth.SignOut(r.Context(), sess.Token); err != nil {
		ErrorFor(err).Write(w)
		return
	}
	s.metrics.AuthEvent(string(auth.SignedOut))
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(newSessionView(sessionFrom(r.Context()))).Write(w)
}

func (s *Server) authFailed(r *http.Request, op string, err error) {
	s.metrics.AuthEvent(op + "_failed")
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
		InfoContext(r.Context(), "Auth request rejected",
			applog.FieldOperation, op,
			applog.FieldError, err.Error())
}

// handleAuthEvents streams the caller's own session transitions over a
// websocket until either side closes it or the session ends.
func (s *Server) handleAuthEvents(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth)

	// Subscribe first so no event is lost between the handshake and the loop.
	events := s.auth.Subscribe()
	defer s.auth.Unsubscribe(events)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		logger.WarnContext(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	logger.DebugContext(r.Context(), "Auth event stream opened", applog.FieldUserID, sess.UserID)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.UserID != sess.UserID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.DebugContext(r.Context(), "Auth event write failed", "error", err)
				return
			}
			if ev.Type != auth.SignedOut {
				continue
			}
			if _, err := s.auth.GetSession(r.Context(), sess.Token); err != nil {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
					time.Now().Add(wsWriteWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
