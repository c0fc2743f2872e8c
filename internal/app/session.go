package app

import (
	"strings"

	"funnel/api/internal/auth"
)

// Session is the resolved identity behind a request.
type Session struct {
	UserID string `json:"userId"`
	Name   string `json:"userName,omitempty"`
}

// LoginResult is what the login endpoint hands back.
type LoginResult struct {
	Token     string
	UserID    string
	Name      string
	ExpiresAt int64
}

// Login issues a bearer token for the given user id. There is no password
// step; identity comes from the mailbox the extraction worker is bound to.
func (s *Service) Login(userID, name string) (LoginResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return LoginResult{}, domainError(400, "VALIDATION_ERROR", "userId is required", nil)
	}

	exp := s.now().Add(s.cfg.AccessTTL).Unix()
	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:  userID,
		Name: name,
		Exp:  exp,
	})
	if err != nil {
		return LoginResult{}, domainError(500, "LOGIN_FAILED", "Login failed", nil)
	}
	return LoginResult{Token: token, UserID: userID, Name: name, ExpiresAt: exp}, nil
}

// SessionFromToken verifies a bearer token and returns the identity it carries.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: claims.Sub, Name: claims.Name}, nil
}
