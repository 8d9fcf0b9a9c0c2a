package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"shop-svc/config"
	"shop-svc/database"
	"shop-svc/models"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type tokenClaims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	users  database.UserStore
	secret []byte
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewAuthService(users database.UserStore, cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		logger: logger,
		now:    time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	user, err := s.createUser(ctx, req.Name, req.Email, req.Password, models.RoleUser)
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.Hex()), zap.String("email", user.Email))
	return &models.AuthResponse{Token: token, User: user}, nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID.Hex()))
	return &models.AuthResponse{Token: token, User: user}, nil
}

func (s *AuthService) Me(ctx context.Context, caller Caller) (*models.User, error) {
	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates the admin account unless a user with that email already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	_, err := s.users.FindByEmail(ctx, normalizeEmail(admin.Email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	user, err := s.createUser(ctx, admin.Name, admin.Email, admin.Password, models.RoleAdmin)
	if err != nil && !errors.Is(err, ErrUserExists) {
		return err
	}
	if user != nil {
		s.logger.Info("Admin account created", zap.String("email", user.Email))
	}
	return nil
}

// ParseToken verifies an HS256 token and returns the caller it was issued to.
func (s *AuthService) ParseToken(tokenString string) (Caller, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return Caller{}, ErrInvalidToken
	}
	return Caller{UserID: userID, Role: claims.Role}, nil
}

// Authenticate verifies the token and then resolves the caller against the stored user, so
// a deleted account is rejected and a role change applies to tokens already issued.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (Caller, error) {
	caller, err := s.ParseToken(tokenString)
	if err != nil {
		return Caller{}, err
	}

	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Caller{}, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
		}
		return Caller{}, fmt.Errorf("failed to load token user: %w", err)
	}
	return Caller{UserID: user.ID, Role: user.Role}, nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role models.Role) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := models.NewValidationError("user", user.Validate()); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
