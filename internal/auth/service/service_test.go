package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/promptlab/internal/auth/domain"
	"github.com/smallbiznis/promptlab/internal/auth/repository"
	"github.com/smallbiznis/promptlab/internal/clock"
	"github.com/smallbiznis/promptlab/internal/config"
	"github.com/smallbiznis/promptlab/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (authdomain.Service, *clock.FakeClock) {
	t.Helper()
	svc, clk, _ := newTestServiceWithDB(t)
	return svc, clk
}

func newTestServiceWithDB(t *testing.T) (authdomain.Service, *clock.FakeClock, *gorm.DB) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}))

	repo, sessionRepo := repository.New(dbConn)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		Log:         zaptest.NewLogger(t),
		Cfg:         config.Config{SessionTTL: time.Hour},
		Repo:        repo,
		SessionRepo: sessionRepo,
		GenID:       node,
		Clock:       clk,
	})
	return svc, clk, dbConn
}

func TestCreateUserValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "not-an-email", Password: "long-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidEmail)

	_, err = svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)

	user, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "Alice@Example.com", Password: "long-password"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "alice", user.DisplayName)
	assert.Nil(t, user.ActiveOrgID)

	_, err = svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "alice@example.com", Password: "long-password"})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "alice@example.com", Password: "correct-password"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "nobody@example.com", Password: "correct-password"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
}

func TestSessionLifecycle(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "bob@example.com", Password: "strong-password"})
	require.NoError(t, err)

	result, err := svc.Login(ctx, authdomain.LoginRequest{Email: "bob@example.com", Password: "strong-password"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.RawToken)

	session, err := svc.Authenticate(ctx, result.RawToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, session.UserID)

	_, err = svc.Authenticate(ctx, "unknown-token")
	assert.ErrorIs(t, err, authdomain.ErrInvalidSession)

	require.NoError(t, svc.Logout(ctx, result.RawToken))
	_, err = svc.Authenticate(ctx, result.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionRevoked)
	assert.True(t, authdomain.IsSessionError(err))

	second, err := svc.Login(ctx, authdomain.LoginRequest{Email: "bob@example.com", Password: "strong-password"})
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)
	_, err = svc.Authenticate(ctx, second.RawToken)
	assert.ErrorIs(t, err, authdomain.ErrSessionExpired)
}

func TestAuthenticateLeavesSessionUntouched(t *testing.T) {
	svc, clk, conn := newTestServiceWithDB(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "carol@example.com", Password: "strong-password"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, authdomain.LoginRequest{Email: "carol@example.com", Password: "strong-password"})
	require.NoError(t, err)

	var before authdomain.Session
	require.NoError(t, conn.First(&before, "id = ?", result.SessionID).Error)

	clk.Advance(10 * time.Minute)
	for i := 0; i < 2; i++ {
		session, err := svc.Authenticate(ctx, result.RawToken)
		require.NoError(t, err)
		assert.Equal(t, result.SessionID, session.ID)
	}

	var after authdomain.Session
	require.NoError(t, conn.First(&after, "id = ?", result.SessionID).Error)
	assert.True(t, before.LastSeenAt.Equal(after.LastSeenAt))
}

func TestTouchSession(t *testing.T) {
	svc, clk, conn := newTestServiceWithDB(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "dave@example.com", Password: "strong-password"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, authdomain.LoginRequest{Email: "dave@example.com", Password: "strong-password"})
	require.NoError(t, err)

	clk.Advance(5 * time.Minute)
	require.NoError(t, svc.TouchSession(ctx, result.SessionID))
	// same instant twice must not be reported as a missing session
	require.NoError(t, svc.TouchSession(ctx, result.SessionID))

	var row authdomain.Session
	require.NoError(t, conn.First(&row, "id = ?", result.SessionID).Error)
	assert.True(t, clk.Now().Equal(row.LastSeenAt.UTC()))

	require.NoError(t, svc.Logout(ctx, result.RawToken))
	clk.Advance(time.Minute)
	require.NoError(t, svc.TouchSession(ctx, result.SessionID))
	require.NoError(t, conn.First(&row, "id = ?", result.SessionID).Error)
	assert.False(t, clk.Now().Equal(row.LastSeenAt.UTC()))
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, authdomain.CreateUserRequest{Email: "carol@example.com", Password: "first-password"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "wrong-password", "second-password"), authdomain.ErrInvalidCredentials)
	assert.ErrorIs(t, svc.ChangePassword(ctx, user.ID, "first-password", "first-password"), authdomain.ErrSamePassword)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "first-password", "second-password"))

	_, err = svc.Login(ctx, authdomain.LoginRequest{Email: "carol@example.com", Password: "second-password"})
	assert.NoError(t, err)
}
