package orgcontext

import (
	"github.com/smallbiznis/promptlab/internal/auth/session"
	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("orgcontext",
	fx.Provide(
		func(r *session.Resolver) SessionResolver { return r },
		func(repo orgdomain.Repository) MemberReader { return repo },
		NewResolver,
		NewCookieWriter,
	),
)
