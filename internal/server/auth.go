// ABOUTME: Web-auth session endpoints: signup, signin, signout, session lookup
// ABOUTME: bcrypt password hashes with constant-time signin behavior for unknown emails

package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/grimoire/internal/store"
)

// dummyHash keeps signin timing constant when the email is unknown
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// SignupRequest is the JSON request body for POST /api/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninRequest is the JSON request body for POST /api/auth/signin.
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is the JSON response for successful auth operations.
type SessionResponse struct {
	Token string      `json:"token,omitempty"`
	User  SessionUser `json:"user"`
}

// SessionUser is the account summary embedded in auth responses.
type SessionUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

func sessionUser(u *store.User) SessionUser {
	return SessionUser{ID: u.ID, Name: u.Name, Email: u.Email, Plan: u.Plan}
}

// handleSignup handles POST /api/auth/signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if len(req.Password) < 8 {
		s.sendJSONError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.Name == "" {
		req.Name = req.Email
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		Password:     string(hash),
		Plan:         store.PlanFree,
		TokenBalance: store.DefaultTokenBalance,
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			s.sendJSONError(w, http.StatusConflict, "email already registered")
			return
		}
		s.logger.Error("failed to create user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	token, err := s.sessions.Generate(user.ID)
	if err != nil {
		s.logger.Error("failed to generate session token", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("user signed up", "email", req.Email)
	s.sendJSON(w, http.StatusCreated, SessionResponse{Token: token, User: sessionUser(user)})
}

// handleSignin handles POST /api/auth/signin
func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		s.sendJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Dummy comparison so unknown emails take as long as bad passwords
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(req.Password))
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("failed to look up user", "error", err)
			s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		s.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := s.sessions.Generate(user.ID)
	if err != nil {
		s.logger.Error("failed to generate session token", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.logger.Info("user signed in", "email", req.Email)
	s.sendJSON(w, http.StatusOK, SessionResponse{Token: token, User: sessionUser(user)})
}

// handleSignout handles POST /api/auth/signout
func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.sendJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	if err := s.sessions.Revoke(token); err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleSession handles GET /api/auth/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.sendJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	userID, err := s.sessions.Verify(token)
	if err != nil {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid session")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	if err != nil {
		s.logger.Error("failed to look up session user", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.sendJSON(w, http.StatusOK, SessionResponse{User: sessionUser(user)})
}

// bearerToken extracts a bearer token from the Authorization header
func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}
