package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-social/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

type Store interface {
	Directory
	CreateUser(ctx context.Context, u *User) (*User, error)
	SearchUsers(ctx context.Context, q string) ([]User, error)
}

type Service struct {
	repo      Store
	jwtSecret []byte
	issuer    string
}

type Claims struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

func NewService(repo Store, secret, issuer string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: []byte(secret),
		issuer:    issuer,
	}
}

func (s *Service) Directory() Directory { return s.repo }

func (s *Service) IssueToken(u *User, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:       u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
	return token.SignedString(s.jwtSecret)
}

func (s *Service) ValidateToken(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == 0 || claims.Username == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.ID, Username: claims.Username}, nil
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]User, error) {
	return s.repo.SearchUsers(ctx, query)
}

// Seed makes sure the named users exist. Used for local development against
// the in-memory directory.
func (s *Service) Seed(ctx context.Context, usernames ...string) ([]*User, error) {
	users := make([]*User, 0, len(usernames))
	for _, name := range usernames {
		u, err := s.repo.GetUserByUsername(ctx, name)
		if errors.Is(err, domain.ErrUserNotFound) {
			u, err = s.repo.CreateUser(ctx, &User{Username: name, FirstName: name})
		}
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", name, err)
		}
		users = append(users, u)
	}
	return users, nil
}
