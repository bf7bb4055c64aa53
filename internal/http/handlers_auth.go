package http

import (
	"errors"
	"net/http"

	"chronoly/internal/auth"
	"chronoly/internal/log"
)

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", page{Title: "Sign in"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", page{Title: "Sign in", Error: "Invalid form data"})
		return
	}

	token, err := s.gate.Login(r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			s.loginFailed(r)
			s.render(w, r, http.StatusUnauthorized, "login.html", page{Title: "Sign in", Error: "Invalid password"})
			return
		}
		s.pageFailure(w, r, "login", err)
		return
	}

	http.SetCookie(w, s.gate.SessionCookie(token))
	redirect(w, r, "/")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.gate.Logout(w)
	redirect(w, r, auth.LoginPath)
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeAPIError(w, r, "login", err)
		return
	}

	token, err := s.gate.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			s.loginFailed(r)
		}
		s.writeAPIError(w, r, "login", err)
		return
	}

	auth.NoStore(w)
	NewResponse().
		Cookie(s.gate.SessionCookie(token)).
		JSON(map[string]bool{"success": true}).
		Write(w)
}

func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	s.gate.Logout(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) loginFailed(r *http.Request) {
	s.metrics.loginFailures.Add(1)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid password submitted",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
}
