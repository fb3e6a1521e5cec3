package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/gitguide/gitguide-backend/internal/apperr"
	"github.com/gitguide/gitguide-backend/internal/logger"
	"github.com/gitguide/gitguide-backend/internal/repos"
	"github.com/gitguide/gitguide-backend/internal/requestdata"
	"github.com/gitguide/gitguide-backend/internal/types"
	"github.com/gitguide/gitguide-backend/internal/utils"
)

// AuthResult is what every credential exchange returns: the user plus a fresh
// token pair.
type AuthResult struct {
	User         *types.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

type AuthService interface {
	Register(ctx context.Context, user *types.User) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error

	// SetContextFromToken validates a bearer token and attaches the caller's
	// identity to the request context.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo

	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	userRepo repos.UserRepo,
	userTokenRepo repos.UserTokenRepo,
) AuthService {
	log := baseLog.With("service", "AuthService")
	secret := utils.GetEnv("JWT_SECRET", "", log)
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	accessMinutes := utils.GetEnvAsInt("JWT_ACCESS_TTL_MINUTES", 15, log)
	refreshHours := utils.GetEnvAsInt("JWT_REFRESH_TTL_HOURS", 720, log)
	return &authService{
		db:            db,
		log:           log,
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		jwtSecret:     []byte(secret),
		accessTTL:     time.Duration(accessMinutes) * time.Minute,
		refreshTTL:    time.Duration(refreshHours) * time.Hour,
	}
}

func (s *authService) Register(ctx context.Context, user *types.User) (*AuthResult, error) {
	if user == nil {
		return nil, apperr.New(apperr.CodeValidation, "user is required")
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.FirstName = strings.TrimSpace(user.FirstName)
	user.LastName = strings.TrimSpace(user.LastName)

	if user.Email == "" {
		return nil, apperr.New(apperr.CodeValidation, "email is required")
	}
	if user.Password == "" {
		return nil, apperr.New(apperr.CodeValidation, "password is required")
	}

	existing, err := s.userRepo.GetByEmail(ctx, nil, user.Email)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to check email", err)
	}
	if existing != nil {
		return nil, apperr.New(apperr.CodeConflict, "email is already in use")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to hash password", err)
	}
	user.Password = string(hashed)

	var result *AuthResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, cErr := s.userRepo.Create(ctx, tx, user)
		if cErr != nil {
			return apperr.Wrap(apperr.CodePersistence, "failed to create user", cErr)
		}
		var tErr error
		result, tErr = s.issueTokens(ctx, tx, created)
		return tErr
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", "user_id", result.User.ID)
	return result, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.New(apperr.CodeValidation, "email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load user", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	}

	return s.issueTokens(ctx, nil, user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, apperr.New(apperr.CodeUnauthorized, "refresh token is required")
	}
	stored, err := s.userTokenRepo.GetByRefreshToken(ctx, nil, refreshToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load refresh token", err)
	}
	if stored == nil || time.Now().After(stored.ExpiresAt) {
		return nil, apperr.New(apperr.CodeUnauthorized, "refresh token is invalid or expired")
	}

	user, err := s.userRepo.GetByID(ctx, nil, stored.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to load user", err)
	}
	if user == nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "user no longer exists")
	}

	var result *AuthResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := s.userTokenRepo.DeleteByRefreshToken(ctx, tx, refreshToken); dErr != nil {
			return apperr.Wrap(apperr.CodePersistence, "failed to rotate refresh token", dErr)
		}
		var tErr error
		result, tErr = s.issueTokens(ctx, tx, user)
		return tErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.userTokenRepo.DeleteByRefreshToken(ctx, nil, refreshToken); err != nil {
		return apperr.Wrap(apperr.CodePersistence, "failed to revoke refresh token", err)
	}
	return nil
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	userID, err := s.parseAccessToken(tokenString)
	if err != nil {
		return ctx, err
	}
	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
	}), nil
}

func (s *authService) issueTokens(ctx context.Context, tx *gorm.DB, user *types.User) (*AuthResult, error) {
	expiresAt := time.Now().Add(s.accessTTL)
	claims := jwt.MapClaims{
		"sub": user.ID.String(),
		"exp": expiresAt.Unix(),
		"iat": time.Now().Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "failed to sign access token", err)
	}

	refresh := uuid.NewString()
	if _, err := s.userTokenRepo.Create(ctx, tx, &types.UserToken{
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(s.refreshTTL),
	}); err != nil {
		return nil, apperr.Wrap(apperr.CodePersistence, "failed to store refresh token", err)
	}

	return &AuthResult{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *authService) parseAccessToken(tokenString string) (uuid.UUID, error) {
	if tokenString == "" {
		return uuid.Nil, apperr.New(apperr.CodeUnauthorized, "missing access token")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperr.Wrap(apperr.CodeUnauthorized, "invalid access token", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperr.New(apperr.CodeUnauthorized, "invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.CodeUnauthorized, "invalid token subject")
	}
	return userID, nil
}
