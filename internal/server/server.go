package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/promptlab/internal/audit/domain"
	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	"github.com/smallbiznis/promptlab/internal/auth/session"
	"github.com/smallbiznis/promptlab/internal/authorization"
	"github.com/smallbiznis/promptlab/internal/config"
	invitationdomain "github.com/smallbiznis/promptlab/internal/invitation/domain"
	"github.com/smallbiznis/promptlab/internal/observability"
	obsmiddleware "github.com/smallbiznis/promptlab/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/promptlab/internal/observability/metrics"
	obstracing "github.com/smallbiznis/promptlab/internal/observability/tracing"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	organizationdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	"github.com/smallbiznis/promptlab/internal/ratelimit"
	scenariodomain "github.com/smallbiznis/promptlab/internal/scenario/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	authsvc         authdomain.Service
	sessions        *session.Manager
	orgResolver     *orgcontext.Resolver
	orgCookies      *orgcontext.CookieWriter
	checker         *authorization.Checker
	auditSvc        auditdomain.Service
	organizationSvc organizationdomain.Service
	invitationSvc   invitationdomain.Service
	scenarioSvc     scenariodomain.Service
	switchLimiter   *ratelimit.SwitchLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Authsvc         authdomain.Service
	Sessions        *session.Manager
	OrgResolver     *orgcontext.Resolver
	OrgCookies      *orgcontext.CookieWriter
	Checker         *authorization.Checker
	AuditSvc        auditdomain.Service
	OrganizationSvc organizationdomain.Service
	InvitationSvc   invitationdomain.Service
	ScenarioSvc     scenariodomain.Service
	SwitchLimiter   *ratelimit.SwitchLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		authsvc:         p.Authsvc,
		sessions:        p.Sessions,
		orgResolver:     p.OrgResolver,
		orgCookies:      p.OrgCookies,
		checker:         p.Checker,
		auditSvc:        p.AuditSvc,
		organizationSvc: p.OrganizationSvc,
		invitationSvc:   p.InvitationSvc,
		scenarioSvc:     p.ScenarioSvc,
		switchLimiter:   p.SwitchLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAuthRoutes()
	svc.registerOrgRoutes()
	svc.registerInvitationRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/signup", s.Signup)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.WebAuthRequired(), s.Me)
	auth.POST("/change-password", s.WebAuthRequired(), s.ChangePassword)

	user := auth.Group("/user", s.WebAuthRequired())
	{
		user.GET("/orgs", s.ListUserOrgs)
	}
}

func (s *Server) registerOrgRoutes() {
	orgs := s.engine.Group("/orgs", s.WebAuthRequired())
	{
		orgs.POST("", s.CreateOrganization)
		// switching is how a caller acquires an org context, so it only needs a session
		orgs.POST("/:id/switch", s.OrgSwitchRateLimit(), s.SwitchOrg)
	}

	org := s.engine.Group("/orgs/:id", s.OrgContextRequired(), s.RequireActiveOrgParam())
	{
		org.GET("", s.RequireCapability(authorization.ActionRead, authorization.ResourceOrganization), s.GetOrganization)

		org.GET("/members", s.RequireCapability(authorization.ActionRead, authorization.ResourceMembers), s.ListMembers)
		org.PATCH("/members/:userId", s.RequireCapability(authorization.ActionManage, authorization.ResourceMembers), s.UpdateMemberRole)
		org.DELETE("/members/:userId", s.RequireCapability(authorization.ActionManage, authorization.ResourceMembers), s.RemoveMember)

		org.GET("/invitations", s.RequireCapability(authorization.ActionManage, authorization.ResourceMembers), s.ListInvitations)
		org.POST("/invitations", s.RequireCapability(authorization.ActionManage, authorization.ResourceMembers), s.CreateInvitations)
		org.POST("/invitations/:inviteId/revoke", s.RequireCapability(authorization.ActionManage, authorization.ResourceMembers), s.RevokeInvitation)

		org.GET("/scenarios", s.RequireCapability(authorization.ActionRead, authorization.ResourceScenarios), s.ListScenarios)
		org.POST("/scenarios", s.RequireCapability(authorization.ActionWrite, authorization.ResourceScenarios), s.CreateScenario)
		org.GET("/scenarios/:scenarioId", s.RequireCapability(authorization.ActionRead, authorization.ResourceScenarios), s.GetScenario)
		org.PATCH("/scenarios/:scenarioId", s.RequireCapability(authorization.ActionWrite, authorization.ResourceScenarios), s.UpdateScenario)
		org.DELETE("/scenarios/:scenarioId", s.RequireCapability(authorization.ActionManage, authorization.ResourceScenarios), s.DeleteScenario)

		org.GET("/audit-logs", s.RequireCapability(authorization.ActionRead, authorization.ResourceAuditLogs), s.ListAuditLogs)
	}
}

func (s *Server) registerInvitationRoutes() {
	invitations := s.engine.Group("/invitations", s.WebAuthRequired())
	{
		invitations.POST("/:code/accept", s.AcceptInvitation)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
