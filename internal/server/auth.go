package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"courseplanner/internal"
	"courseplanner/internal/assistant"
)

const authPlatform = "google"

// oauthState is a fixed CSRF token; the app is single-user and the
// callback only ever lands on the configured redirect URL.
const oauthState = "courseplanner-oauth"

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	provider, err := s.providers.Get(authPlatform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": provider.AuthURL(oauthState)})
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code parameter")
		return
	}

	provider, err := s.providers.Get(authPlatform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	auth, err := provider.Exchange(r.Context(), code)
	if err != nil {
		s.log.WithError(err).Error("oauth code exchange failed")
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}

	email, err := provider.Email(r.Context(), auth)
	if err != nil {
		s.log.WithError(err).Warn("could not resolve account email")
	}

	acc := &internal.Account{Platform: authPlatform, Email: email, Auth: string(auth)}
	if err := s.storage.SaveAccount(r.Context(), acc); err != nil {
		s.log.WithError(err).Error("storing account failed")
		writeError(w, http.StatusInternalServerError, "failed to store account")
		return
	}

	s.log.WithField("email", email).Info("google calendar connected")
	http.Redirect(w, r, s.cfg.FrontendOrigin+"?connected=1", http.StatusFound)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	type statusResp struct {
		Connected bool   `json:"connected"`
		Email     string `json:"email,omitempty"`
	}

	acc, err := s.storage.Account(r.Context(), authPlatform)
	if err != nil {
		writeJSON(w, http.StatusOK, statusResp{Connected: false})
		return
	}
	writeJSON(w, http.StatusOK, statusResp{Connected: true, Email: acc.Email})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.DeleteAccount(r.Context(), authPlatform); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []assistant.Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	reply, err := s.chat.Chat(r.Context(), req.Messages)
	switch {
	case errors.Is(err, assistant.ErrNotConnected):
		writeError(w, http.StatusUnauthorized, "Google Calendar is not connected")
		return
	case err != nil:
		s.log.WithError(err).Error("calendar chat failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
