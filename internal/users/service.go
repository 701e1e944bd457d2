package users

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/docuchain/docuchain-backend/internal/models"
)

// ErrInvalidCredentials is returned on login with a wrong email or password.
// The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid email or password")

const searchLimit = 20

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
	}
	return s.repo.Create(ctx, u)
}

// Login verifies the credentials and returns the matching active user.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if u == nil || !u.Active {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetByID loads a user; returns (nil, nil) when absent.
func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.repo.FindByID(ctx, id)
}

// Search returns public profiles matching the query, excluding the caller.
func (s *Service) Search(ctx context.Context, query string, callerID primitive.ObjectID) ([]models.PublicProfile, error) {
	found, err := s.repo.Search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}
	out := []models.PublicProfile{}
	for _, u := range found {
		if u.ID == callerID {
			continue
		}
		out = append(out, u.Public())
	}
	return out, nil
}
