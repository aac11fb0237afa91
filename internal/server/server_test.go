package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	auditrepository "github.com/smallbiznis/promptlab/internal/audit/repository"
	auditservice "github.com/smallbiznis/promptlab/internal/audit/service"
	authrepository "github.com/smallbiznis/promptlab/internal/auth/repository"
	authservice "github.com/smallbiznis/promptlab/internal/auth/service"
	"github.com/smallbiznis/promptlab/internal/auth/session"
	"github.com/smallbiznis/promptlab/internal/authorization"
	"github.com/smallbiznis/promptlab/internal/clock"
	"github.com/smallbiznis/promptlab/internal/config"
	invitationrepository "github.com/smallbiznis/promptlab/internal/invitation/repository"
	invitationservice "github.com/smallbiznis/promptlab/internal/invitation/service"
	"github.com/smallbiznis/promptlab/internal/migration"
	"github.com/smallbiznis/promptlab/internal/observability"
	"github.com/smallbiznis/promptlab/internal/orgcontext"
	orgdomain "github.com/smallbiznis/promptlab/internal/organization/domain"
	orgrepository "github.com/smallbiznis/promptlab/internal/organization/repository"
	orgservice "github.com/smallbiznis/promptlab/internal/organization/service"
	scenariorepository "github.com/smallbiznis/promptlab/internal/scenario/repository"
	scenarioservice "github.com/smallbiznis/promptlab/internal/scenario/service"
	"github.com/smallbiznis/promptlab/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testPassword = "correct-horse-battery"

type harness struct {
	db      *gorm.DB
	srv     *Server
	genID   *snowflake.Node
	clock   *clock.FakeClock
	orgRepo orgdomain.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(9)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Now().UTC().Truncate(time.Second))
	log := zaptest.NewLogger(t)
	cfg := config.Config{SessionTTL: 24 * time.Hour, InvitationTTL: 72 * time.Hour}

	authRepo, sessionRepo := authrepository.New(conn)
	authSvc := authservice.New(authservice.Params{
		Log:         log,
		Cfg:         cfg,
		Repo:        authRepo,
		SessionRepo: sessionRepo,
		GenID:       node,
		Clock:       clk,
	})
	manager := session.NewManager(cfg)

	orgRepo := orgrepository.NewRepository(conn)
	orgSvc := orgservice.NewService(orgservice.Params{DB: conn, Log: log, Repo: orgRepo, GenID: node, Clock: clk})
	invitationSvc := invitationservice.NewService(invitationservice.Params{
		DB:      conn,
		Log:     log,
		Cfg:     cfg,
		Repo:    invitationrepository.NewRepository(conn),
		OrgRepo: orgRepo,
		GenID:   node,
		Clock:   clk,
	})
	scenarioSvc := scenarioservice.NewService(scenarioservice.Params{
		Log:   log,
		Repo:  scenariorepository.NewRepository(conn),
		GenID: node,
		Clock: clk,
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
		Clock: clk,
	})

	checker, err := authorization.NewChecker(authorization.DefaultGrants())
	require.NoError(t, err)

	srv := NewServer(ServerParams{
		Gin:             NewEngine(observability.Config{}, nil),
		Cfg:             cfg,
		Log:             log,
		Authsvc:         authSvc,
		Sessions:        manager,
		OrgResolver:     orgcontext.NewResolver(session.NewResolver(manager, authSvc), orgRepo, log),
		OrgCookies:      orgcontext.NewCookieWriter(cfg),
		Checker:         checker,
		AuditSvc:        auditSvc,
		OrganizationSvc: orgSvc,
		InvitationSvc:   invitationSvc,
		ScenarioSvc:     scenarioSvc,
	})

	return &harness{db: conn, srv: srv, genID: node, clock: clk, orgRepo: orgRepo}
}

func (h *harness) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		if cookie != nil {
			req.AddCookie(cookie)
		}
	}

	w := httptest.NewRecorder()
	h.srv.Engine().ServeHTTP(w, req)
	return w
}

// signup registers a user and logs in, returning the user id and session cookie.
func (h *harness) signup(t *testing.T, email string) (snowflake.ID, *http.Cookie) {
	t.Helper()

	w := h.do(t, http.MethodPost, "/auth/signup", SignupRequest{Email: email, Password: testPassword, Name: email})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var user userResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &user))
	userID, err := snowflake.ParseString(user.ID)
	require.NoError(t, err)

	return userID, h.login(t, email)
}

func (h *harness) login(t *testing.T, email string) *http.Cookie {
	t.Helper()

	w := h.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sid := responseCookie(w, session.DefaultCookieName)
	require.NotNil(t, sid)
	return sid
}

func (h *harness) createOrg(t *testing.T, sid *http.Cookie, name string) snowflake.ID {
	t.Helper()

	w := h.do(t, http.MethodPost, "/orgs", createOrganizationRequest{Name: name}, sid)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var org orgdomain.OrganizationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &org))
	orgID, err := snowflake.ParseString(org.ID)
	require.NoError(t, err)
	return orgID
}

func (h *harness) addMember(t *testing.T, orgID, userID snowflake.ID, role, status string) {
	t.Helper()
	require.NoError(t, h.orgRepo.AddMember(context.Background(), orgdomain.OrganizationMember{
		ID:        h.genID.Generate(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		Status:    status,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	}))
}

func orgClaim(orgID snowflake.ID) *http.Cookie {
	return &http.Cookie{Name: orgcontext.CookieActiveOrgID, Value: orgID.String()}
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func errorType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp.Error.Type
}

func TestHealth(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorType(t, w))
}
