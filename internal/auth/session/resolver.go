package session

import (
	"errors"
	"net/http"

	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
)

// Resolver turns a request's session token into an Identity.
type Resolver struct {
	sessions *Manager
	auth     authdomain.Service
}

func NewResolver(sessions *Manager, auth authdomain.Service) *Resolver {
	return &Resolver{sessions: sessions, auth: auth}
}

// Resolve returns ErrInvalidSession (or a more specific session error) when
// the request carries no usable session. Other errors are storage failures.
func (r *Resolver) Resolve(req *http.Request) (*authdomain.Identity, error) {
	token, ok := r.sessions.ReadToken(req)
	if !ok {
		return nil, authdomain.ErrInvalidSession
	}

	ctx := req.Context()
	session, err := r.auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := r.auth.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			return nil, authdomain.ErrInvalidSession
		}
		return nil, err
	}

	return &authdomain.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		SessionID: session.ID,
	}, nil
}
