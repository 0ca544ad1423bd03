package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aurelia-commerce/internal/middleware"
	"aurelia-commerce/pkg/config"
	"aurelia-commerce/pkg/db/pagination"
	"aurelia-commerce/pkg/errutil"
)

var (
	ErrInvalidRole        = errutil.ValidationFailed("role must be customer, affiliate or admin", nil)
	ErrInvalidStatus      = errutil.ValidationFailed("status must be active, inactive or suspended", nil)
	ErrNotFound           = errutil.NotFound("user not found", nil)
	ErrUsernameTaken      = errutil.Conflict("username is already taken", nil)
	ErrEmailTaken         = errutil.Conflict("email is already registered", nil)
	ErrInvalidCredentials = errutil.Unauthorized("invalid username or password", nil)
	ErrAccountDisabled    = errutil.Unauthorized("account is not active", nil)
	ErrInvalidToken       = errutil.Unauthorized("invalid or expired token", nil)
)

const minPasswordLength = 8

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	secret []byte
	ttl    time.Duration
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
	Cfg  *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		secret: []byte(p.Cfg.Session.Secret),
		ttl:    p.Cfg.Session.TTL,
	}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Register creates a customer account. Roles are only elevated by an
// operator, never at signup.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if len(in.Password) < minPasswordLength {
		return nil, errutil.ValidationFailed("password must be at least 8 characters", nil)
	}

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if taken, err := s.exists(ctx, "username", username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := s.exists(ctx, "email", email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}

	u := &User{
		UserID:    s.node.Generate().String(),
		Username:  username,
		Email:     email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      RoleCustomer,
		Status:    StatusActive,
	}
	if err := u.SetPassword(in.Password); err != nil {
		return nil, errutil.Internal("failed to hash password", err)
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, errutil.Internal("failed to create user", err)
	}

	zap.L().Info("user registered", zap.String("user_id", u.UserID))
	return u, nil
}

func (s *Service) exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Where(column+" = ?", value).
		Count(&count).Error
	if err != nil {
		return false, errutil.Internal("failed to check user uniqueness", err)
	}
	return count > 0, nil
}

// Login authenticates by username or email and returns a signed token.
func (s *Service) Login(ctx context.Context, login, password string) (string, *User, error) {
	var u User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, errutil.Internal("failed to load user", err)
	}
	if !u.CheckPassword(password) {
		return "", nil, ErrInvalidCredentials
	}
	if u.Status != StatusActive {
		return "", nil, ErrAccountDisabled
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, errutil.Internal("failed to sign token", err)
	}

	u.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("user_id = ?", u.UserID).
		Update("last_login", now).Error; err != nil {
		zap.L().Warn("failed to record last login", zap.Error(err))
	}

	return signed, &u, nil
}

// VerifyToken resolves a bearer token into an identity. The account is
// re-read on every call so a suspension takes effect immediately, not at
// token expiry.
func (s *Service) VerifyToken(ctx context.Context, token string) (middleware.Identity, error) {
	var cl claims
	parsed, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return middleware.Identity{}, ErrInvalidToken
	}

	u, err := s.Get(ctx, cl.Subject)
	if err != nil {
		return middleware.Identity{}, ErrInvalidToken
	}
	if u.Status != StatusActive {
		return middleware.Identity{}, ErrAccountDisabled
	}
	return middleware.Identity{UserID: u.UserID, Role: string(u.Role)}, nil
}

func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errutil.Internal("failed to load user", err)
	}
	return &u, nil
}

type UpdateProfileInput struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
	Address   *string `json:"address"`
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.FirstName != nil {
		updates["first_name"] = *in.FirstName
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		updates["last_name"] = *in.LastName
		u.LastName = *in.LastName
	}
	if in.Phone != nil {
		updates["phone"] = *in.Phone
		u.Phone = *in.Phone
	}
	if in.Address != nil {
		updates["address"] = *in.Address
		u.Address = *in.Address
	}
	if len(updates) == 0 {
		return u, nil
	}

	err = s.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", userID).
		Updates(updates).Error
	if err != nil {
		return nil, errutil.Internal("failed to update profile", err)
	}
	return u, nil
}

// List returns accounts, newest first. Admin only, enforced at the route.
func (s *Service) List(ctx context.Context, pg pagination.Params) ([]*User, *pagination.Meta, error) {
	pg.Normalize()

	var total int64
	if err := s.db.WithContext(ctx).Model(&User{}).Count(&total).Error; err != nil {
		return nil, nil, errutil.Internal("failed to count users", err)
	}

	var users []*User
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(pg.Offset()).
		Limit(pg.Limit).
		Find(&users).Error
	if err != nil {
		return nil, nil, errutil.Internal("failed to list users", err)
	}
	return users, pagination.NewMeta(total, pg), nil
}

// UpdateRole elevates or demotes an account. This is the only path that
// grants the affiliate or admin role; signup never does.
func (s *Service) UpdateRole(ctx context.Context, userID string, role Role) (*User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", userID).
		Update("role", role).Error
	if err != nil {
		return nil, errutil.Internal("failed to update role", err)
	}
	u.Role = role

	zap.L().Info("user role changed",
		zap.String("user_id", userID),
		zap.String("role", string(role)))
	return u, nil
}

// UpdateStatus enables or disables an account. A suspended account loses
// access immediately because VerifyToken re-reads the row.
func (s *Service) UpdateStatus(ctx context.Context, userID string, status AccountStatus) (*User, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", userID).
		Update("status", status).Error
	if err != nil {
		return nil, errutil.Internal("failed to update status", err)
	}
	u.Status = status

	zap.L().Info("user status changed",
		zap.String("user_id", userID),
		zap.String("status", string(status)))
	return u, nil
}

// Delete removes an account. Orders keep their customer snapshot and
// affiliate attribution; only the login goes away.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&User{}).Error; err != nil {
		return errutil.Internal("failed to delete user", err)
	}

	zap.L().Info("user deleted", zap.String("user_id", userID))
	return nil
}

// ChangePassword verifies the current password before setting the new one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !u.CheckPassword(current) {
		return errutil.Unauthorized("current password is incorrect", nil)
	}
	if len(next) < minPasswordLength {
		return errutil.ValidationFailed("password must be at least 8 characters", nil)
	}
	if err := u.SetPassword(next); err != nil {
		return errutil.Internal("failed to hash password", err)
	}
	err = s.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", userID).
		Update("password_hash", u.PasswordHash).Error
	if err != nil {
		return errutil.Internal("failed to change password", err)
	}
	return nil
}
