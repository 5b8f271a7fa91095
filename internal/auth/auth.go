// Package auth issues and verifies the bearer tokens that guard the API.
// Local accounts get HS256 JWTs; optionally, tokens from an OpenID Connect
// provider are accepted as well, auto-provisioning a local user on first
// sight.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/coreos/go-oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/config"
	"worktrail/backend/internal/repository"
	"worktrail/backend/pkg/models"
)

// userContextKey is where the middleware stashes the resolved user.
const userContextKey = "auth.user"

// Logger defines the logging interface compatible with the application
// logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// UserStore is the slice of the repository the auth layer needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Claims is the payload of locally issued tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// Auth holds the signing secret, the optional OIDC verifier and the user
// store.
type Auth struct {
	secret      []byte
	ttl         time.Duration
	apiVerifier *oidc.IDTokenVerifier
	store       UserStore
	logger      Logger
	now         func() time.Time
}

// New creates an Auth from the application configuration. When an OIDC
// issuer is configured it establishes a connection to the provider and
// prepares a token verifier.
func New(ctx context.Context, cfg *config.Config, store UserStore, logger Logger) (*Auth, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("auth configuration is incomplete: jwt_secret is required")
	}

	var apiVerifier *oidc.IDTokenVerifier
	if cfg.Auth.OIDCIssuer != "" {
		provider, err := oidc.NewProvider(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			return nil, err
		}
		// Access tokens often carry a different audience than the client id
		// (e.g. "api://default"), so skip the client id check unless one is
		// configured explicitly.
		oc := &oidc.Config{SkipClientIDCheck: true}
		if cfg.Auth.OIDCClientID != "" {
			oc = &oidc.Config{ClientID: cfg.Auth.OIDCClientID}
		}
		apiVerifier = provider.Verifier(oc)
	}

	ttl := cfg.Auth.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Auth{
		secret:      []byte(cfg.Auth.JWTSecret),
		ttl:         ttl,
		apiVerifier: apiVerifier,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// RegisterInput is the signup payload.
type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register creates a local account and returns the user with a fresh
// token.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", apperr.Validation("a valid email is required")
	}
	if len(in.Password) < 8 {
		return nil, "", apperr.Validation("password must be at least 8 characters")
	}

	if _, err := a.store.GetUserByEmail(ctx, email); err == nil {
		return nil, "", apperr.Conflict("email is already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", apperr.Internal(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return nil, "", apperr.Internal(err)
	}

	token, err := a.IssueToken(user)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token. The
// error is identical for unknown email and wrong password.
func (a *Auth) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", apperr.Authentication("invalid email or password")
		}
		return nil, "", apperr.Internal(err)
	}
	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", apperr.Authentication("invalid email or password")
	}

	token, err := a.IssueToken(user)
	if err != nil {
		return nil, "", apperr.Internal(err)
	}
	return user, token, nil
}

// IssueToken signs a bearer token for the user.
func (a *Auth) IssueToken(user *models.User) (string, error) {
	now := a.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    "worktrail",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		Email: user.Email,
		Role:  user.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware ensures a valid bearer token is present and resolves the
// calling user into the request context.
func (a *Auth) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return apperr.Authentication("missing bearer token")
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			user, err := a.resolveLocal(c.Request().Context(), raw)
			if err != nil && a.apiVerifier != nil {
				user, err = a.resolveOIDC(c.Request().Context(), raw)
			}
			if err != nil {
				return err
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

func (a *Auth) resolveLocal(ctx context.Context, raw string) (*models.User, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Authentication("invalid token")
	}

	user, err := a.store.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Authentication("unknown user")
		}
		return nil, apperr.Internal(err)
	}
	return user, nil
}

// resolveOIDC verifies a provider-issued token and looks up (or
// provisions) the user by the email claim.
func (a *Auth) resolveOIDC(ctx context.Context, raw string) (*models.User, error) {
	token, err := a.apiVerifier.Verify(ctx, raw)
	if err != nil {
		return nil, apperr.Authentication("invalid token")
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := token.Claims(&claims); err != nil || claims.Email == "" {
		return nil, apperr.Authentication("token has no email claim")
	}
	email := strings.ToLower(claims.Email)

	user, err := a.store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	// first sight of this identity: provision a local user without a
	// password, so only the provider can authenticate it
	name := claims.Name
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}
	user = &models.User{
		ID:    uuid.New().String(),
		Email: email,
		Name:  name,
		Role:  models.RoleUser,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if a.logger != nil {
			a.logger.Error("failed to provision user %s: %v", email, err)
		}
		return nil, apperr.Internal(err)
	}
	if a.logger != nil {
		a.logger.Info("provisioned user %s from OIDC token", email)
	}
	return user, nil
}

// CurrentUser returns the user the middleware resolved for this request.
func CurrentUser(c echo.Context) *models.User {
	user, _ := c.Get(userContextKey).(*models.User)
	return user
}
