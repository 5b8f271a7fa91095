package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"worktrail/backend/internal/apperr"
	"worktrail/backend/internal/repository"
	"worktrail/backend/pkg/models"

	"github.com/coreos/go-oidc"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// NoOpLogger for testing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, args ...any) {}
func (l *NoOpLogger) Info(msg string, args ...any)  {}
func (l *NoOpLogger) Error(msg string, args ...any) {}

// MockUserStore satisfies UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

// MockKeySet satisfies oidc.KeySet to bypass signature verification
type MockKeySet struct{}

func (m *MockKeySet) VerifySignature(ctx context.Context, jwtToken string) ([]byte, error) {
	parts := strings.Split(jwtToken, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed jwt")
	}
	return base64.RawURLEncoding.DecodeString(parts[1])
}

func newTestAuth(store UserStore) *Auth {
	return &Auth{
		secret: []byte("test-secret"),
		ttl:    time.Hour,
		store:  store,
		logger: &NoOpLogger{},
		now:    time.Now,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the user and issues a token", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("GetUserByEmail", mock.Anything, "new@example.com").Return(nil, repository.ErrNotFound)
		store.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
			return u.Email == "new@example.com" && u.Role == models.RoleUser && u.PasswordHash != ""
		})).Return(nil)

		a := newTestAuth(store)
		user, token, err := a.Register(ctx, RegisterInput{
			Email:    "New@Example.com",
			Password: "long-enough-password",
		})
		assert.NoError(t, err)
		assert.Equal(t, "new@example.com", user.Email)
		assert.Equal(t, "new", user.Name) // derived from the email local part
		assert.NotEmpty(t, token)
		store.AssertExpectations(t)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("GetUserByEmail", mock.Anything, "taken@example.com").
			Return(&models.User{ID: "u-1"}, nil)

		a := newTestAuth(store)
		_, _, err := a.Register(ctx, RegisterInput{Email: "taken@example.com", Password: "long-enough-password"})
		assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	})

	t.Run("short password is rejected", func(t *testing.T) {
		a := newTestAuth(new(MockUserStore))
		_, _, err := a.Register(ctx, RegisterInput{Email: "x@example.com", Password: "short"})
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	existing := &models.User{ID: "u-1", Email: "user@example.com", PasswordHash: string(hash)}

	t.Run("valid credentials return a token", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("GetUserByEmail", mock.Anything, "user@example.com").Return(existing, nil)

		a := newTestAuth(store)
		user, token, err := a.Login(ctx, "user@example.com", "correct-password")
		assert.NoError(t, err)
		assert.Equal(t, "u-1", user.ID)
		assert.NotEmpty(t, token)
	})

	t.Run("wrong password and unknown email read the same", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("GetUserByEmail", mock.Anything, "user@example.com").Return(existing, nil)
		store.On("GetUserByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)

		a := newTestAuth(store)
		_, _, err1 := a.Login(ctx, "user@example.com", "wrong-password")
		_, _, err2 := a.Login(ctx, "ghost@example.com", "whatever")
		assert.Equal(t, apperr.CodeAuthentication, apperr.CodeOf(err1))
		assert.Equal(t, apperr.MessageOf(err1), apperr.MessageOf(err2))
	})

	t.Run("passwordless provisioned accounts cannot log in locally", func(t *testing.T) {
		store := new(MockUserStore)
		store.On("GetUserByEmail", mock.Anything, "sso@example.com").
			Return(&models.User{ID: "u-2", Email: "sso@example.com"}, nil)

		a := newTestAuth(store)
		_, _, err := a.Login(ctx, "sso@example.com", "anything")
		assert.Equal(t, apperr.CodeAuthentication, apperr.CodeOf(err))
	})
}

func TestMiddleware_LocalToken(t *testing.T) {
	user := &models.User{ID: "u-1", Email: "user@example.com", Role: models.RoleUser}

	store := new(MockUserStore)
	store.On("GetUserByID", mock.Anything, "u-1").Return(user, nil)

	a := newTestAuth(store)
	token, err := a.IssueToken(user)
	assert.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := a.Middleware()(func(c echo.Context) error {
		resolved := CurrentUser(c)
		assert.Equal(t, "u-1", resolved.ID)
		return c.NoContent(http.StatusOK)
	})
	assert.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	a := newTestAuth(new(MockUserStore))
	e := echo.New()

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
		c := e.NewContext(req, httptest.NewRecorder())

		handler := a.Middleware()(func(c echo.Context) error { return nil })
		err := handler(c)
		assert.Equal(t, apperr.CodeAuthentication, apperr.CodeOf(err))
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		c := e.NewContext(req, httptest.NewRecorder())

		handler := a.Middleware()(func(c echo.Context) error { return nil })
		err := handler(c)
		assert.Equal(t, apperr.CodeAuthentication, apperr.CodeOf(err))
	})

	t.Run("expired token", func(t *testing.T) {
		past := newTestAuth(new(MockUserStore))
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, err := past.IssueToken(&models.User{ID: "u-1"})
		assert.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		c := e.NewContext(req, httptest.NewRecorder())

		handler := a.Middleware()(func(c echo.Context) error { return nil })
		err = handler(c)
		assert.Equal(t, apperr.CodeAuthentication, apperr.CodeOf(err))
	})
}

func TestMiddleware_OIDCAutoProvision(t *testing.T) {
	issuer := "https://test-issuer.com"
	clientID := "test-client"

	claims := map[string]interface{}{
		"iss":   issuer,
		"aud":   clientID,
		"sub":   "test-founder",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Add(-1 * time.Minute).Unix(),
		"email": "founder@startup.io",
		"name":  "Founder",
	}
	headerData := map[string]interface{}{
		"alg": "RS256",
		"typ": "JWT",
		"kid": "test-key",
	}
	headerBytes, _ := json.Marshal(headerData)
	payload, _ := json.Marshal(claims)
	fakeToken := base64.RawURLEncoding.EncodeToString(headerBytes) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString([]byte("fakesignature"))

	verifier := oidc.NewVerifier(issuer, &MockKeySet{}, &oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: true, // matches the apiVerifier setup in New
	})

	store := new(MockUserStore)
	store.On("GetUserByEmail", mock.Anything, "founder@startup.io").Return(nil, repository.ErrNotFound)
	store.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Email == "founder@startup.io" && u.Name == "Founder" && u.PasswordHash == ""
	})).Return(nil)

	a := newTestAuth(store)
	a.apiVerifier = verifier

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+fakeToken)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := a.Middleware()(func(c echo.Context) error {
		resolved := CurrentUser(c)
		assert.Equal(t, "founder@startup.io", resolved.Email)
		return c.NoContent(http.StatusOK)
	})
	assert.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}
