package user

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurelia-commerce/pkg/config"
	"aurelia-commerce/pkg/db/pagination"
	"aurelia-commerce/services/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &User{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Session.Secret = "test-secret"
	cfg.Session.TTL = time.Hour
	return NewService(ServiceParams{DB: db, Node: node, Cfg: cfg})
}

func register(t *testing.T, s *Service, username, email string) *User {
	t.Helper()
	u, err := s.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    email,
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u := register(t, s, "mina", "Mina@Example.com")
	assert.Equal(t, RoleCustomer, u.Role)
	assert.Equal(t, StatusActive, u.Status)
	assert.Equal(t, "mina@example.com", u.Email)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := s.Register(ctx, RegisterInput{Username: "mina", Email: "other@example.com", Password: "correct-horse"})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.Register(ctx, RegisterInput{Username: "mina2", Email: "mina@example.com", Password: "correct-horse"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := s.Register(ctx, RegisterInput{Username: "shorty", Email: "shorty@example.com", Password: "pw"})
		assert.Error(t, err)
	})
}

func TestLoginAndVerifyToken(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u := register(t, s, "nadia", "nadia@example.com")

	token, logged, err := s.Login(ctx, "nadia", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, u.UserID, logged.UserID)
	assert.NotNil(t, logged.LastLogin)

	t.Run("login by email", func(t *testing.T) {
		_, _, err := s.Login(ctx, "nadia@example.com", "correct-horse")
		assert.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := s.Login(ctx, "nadia", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	id, err := s.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.UserID, id.UserID)
	assert.Equal(t, string(RoleCustomer), id.Role)

	t.Run("garbage token", func(t *testing.T) {
		_, err := s.VerifyToken(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("suspension invalidates live tokens", func(t *testing.T) {
		require.NoError(t, s.db.Model(&User{}).
			Where("user_id = ?", u.UserID).
			Update("status", StatusSuspended).Error)

		_, err := s.VerifyToken(ctx, token)
		assert.ErrorIs(t, err, ErrAccountDisabled)

		_, _, err = s.Login(ctx, "nadia", "correct-horse")
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})
}

func TestUpdateProfile(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u := register(t, s, "samira", "samira@example.com")

	first := "Samira"
	phone := "+20111111111"
	updated, err := s.UpdateProfile(ctx, u.UserID, UpdateProfileInput{FirstName: &first, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Samira", updated.FirstName)

	reloaded, err := s.Get(ctx, u.UserID)
	require.NoError(t, err)
	assert.Equal(t, "+20111111111", reloaded.Phone)
}

func TestAdminUserManagement(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u := register(t, s, "farid", "farid@example.com")
	register(t, s, "dina", "dina@example.com")

	t.Run("list is paginated", func(t *testing.T) {
		users, meta, err := s.List(ctx, pagination.Params{Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Len(t, users, 2)
		assert.Equal(t, int64(2), meta.Total)
	})

	t.Run("role elevation reaches live tokens", func(t *testing.T) {
		token, _, err := s.Login(ctx, "farid", "correct-horse")
		require.NoError(t, err)

		updated, err := s.UpdateRole(ctx, u.UserID, RoleAffiliate)
		require.NoError(t, err)
		assert.Equal(t, RoleAffiliate, updated.Role)

		// Identity comes from the row, not the token claims.
		id, err := s.VerifyToken(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, string(RoleAffiliate), id.Role)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, err := s.UpdateRole(ctx, u.UserID, "superuser")
		assert.ErrorIs(t, err, ErrInvalidRole)
	})

	t.Run("status change blocks login", func(t *testing.T) {
		_, err := s.UpdateStatus(ctx, u.UserID, StatusSuspended)
		require.NoError(t, err)

		_, _, err = s.Login(ctx, "farid", "correct-horse")
		assert.ErrorIs(t, err, ErrAccountDisabled)

		_, err = s.UpdateStatus(ctx, u.UserID, "banished")
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("delete removes the account", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, u.UserID))

		_, err := s.Get(ctx, u.UserID)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, s.Delete(ctx, u.UserID), ErrNotFound)
	})
}

func TestChangePassword(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	u := register(t, s, "karim", "karim@example.com")

	t.Run("wrong current password", func(t *testing.T) {
		err := s.ChangePassword(ctx, u.UserID, "wrong", "brand-new-pass")
		assert.Error(t, err)
	})

	require.NoError(t, s.ChangePassword(ctx, u.UserID, "correct-horse", "brand-new-pass"))

	_, _, err := s.Login(ctx, "karim", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = s.Login(ctx, "karim", "brand-new-pass")
	assert.NoError(t, err)
}
