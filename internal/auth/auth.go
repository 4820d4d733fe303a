package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactiveRole   = errors.New("role not allowed to sign in")
)

// User is the authenticated caller attached to the request context.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

type claims struct {
	Role string `json:"role"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type Config struct {
	SigningKey string
	Issuer     string
	TokenTTL   time.Duration
}

type Service struct {
	db  *sql.DB
	cfg Config
}

func NewService(conn *sql.DB, cfg Config) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	return &Service{db: conn, cfg: cfg}
}

// Login verifies a lecturer or admin password and issues a bearer token.
// Students never log in; they check in through the QR flow.
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	var (
		user User
		hash string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, password_hash, role, full_name
		FROM users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &hash, &user.Role, &user.FullName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("load user: %w", err)
	}

	if user.Role != "lecturer" && user.Role != "admin" {
		return "", nil, ErrUserInactiveRole
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func (s *Service) issueToken(user User) (string, error) {
	now := time.Now()
	c := claims{
		Role: user.Role,
		Name: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(s.cfg.SigningKey))
}

func (s *Service) parseToken(tokenStr string) (*User, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.SigningKey), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if s.cfg.Issuer != "" && c.Issuer != s.cfg.Issuer {
		return nil, errors.New("issuer mismatch")
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, errors.New("invalid subject")
	}
	return &User{ID: id, Role: c.Role, FullName: c.Name}, nil
}

type contextKey struct{}

// CurrentUser returns the authenticated user stored by RequireAuth.
func CurrentUser(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(contextKey{}).(*User)
	return u, ok
}

// RequireAuth enforces a bearer token and attaches the user to the context.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz := r.Header.Get("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			writeUnauthorized(w, "missing bearer token")
			return
		}
		user, err := s.parseToken(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			writeUnauthorized(w, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
	})
}

// RequireRoles gates a route group to the listed roles. Must run after
// RequireAuth.
func (s *Service) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				writeUnauthorized(w, "unauthorized")
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"ok":false,"error":"forbidden"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"ok":false,"error":"` + msg + `"}`))
}

var (
	placeholderOnce sync.Once
	placeholderHash string
	placeholderErr  error
)

// PlaceholderPasswordHash returns a bcrypt hash used when a student row is
// created implicitly (first check-in, roster import). Students created this
// way cannot log in until an admin sets a real password.
func PlaceholderPasswordHash() (string, error) {
	placeholderOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("temp-password"), bcrypt.DefaultCost)
		if err != nil {
			placeholderErr = fmt.Errorf("hash placeholder password: %w", err)
			return
		}
		placeholderHash = string(h)
	})
	return placeholderHash, placeholderErr
}
