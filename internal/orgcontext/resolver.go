package orgcontext

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"go.uber.org/zap"
)

//go:generate mockgen -source=resolver.go -destination=mocks/mock_resolver.go -package=mocks

// SessionResolver authenticates a request.
type SessionResolver interface {
	Resolve(r *http.Request) (*authdomain.Identity, error)
}

// MemberReader looks up a membership row. It returns
// orgdomain.ErrMemberNotFound when none exists.
type MemberReader interface {
	GetMember(ctx context.Context, orgID, userID snowflake.ID) (*orgdomain.OrganizationMember, error)
}

type Resolver struct {
	sessions SessionResolver
	members  MemberReader
	log      *zap.Logger
}

func NewResolver(sessions SessionResolver, members MemberReader, log *zap.Logger) *Resolver {
	return &Resolver{
		sessions: sessions,
		members:  members,
		log:      log.Named("orgcontext.resolver"),
	}
}

// Require builds the verified org context for r. It never writes.
func (r *Resolver) Require(req *http.Request) (Context, error) {
	identity, err := r.Identify(req)
	if err != nil {
		return Context{}, err
	}

	claim, ok := ReadClaim(req)
	if !ok {
		return Context{}, ErrOrgRequired
	}
	orgID, err := snowflake.ParseString(claim)
	if err != nil || orgID <= 0 {
		return Context{}, ErrForbidden
	}

	member, err := r.members.GetMember(req.Context(), orgID, identity.UserID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrMemberNotFound) {
			return Context{}, ErrForbidden
		}
		return Context{}, fmt.Errorf("load membership: %w", err)
	}
	if !member.IsActive() {
		return Context{}, ErrForbidden
	}

	return Context{
		UserID:      identity.UserID,
		ActiveOrgID: orgID,
		Role:        member.Role,
	}, nil
}

// Identify resolves only the session, mapping every session failure to
// ErrUnauthenticated.
func (r *Resolver) Identify(req *http.Request) (*authdomain.Identity, error) {
	identity, err := r.sessions.Resolve(req)
	if err != nil {
		if authdomain.IsSessionError(err) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if identity == nil || identity.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	return identity, nil
}
