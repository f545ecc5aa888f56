package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"safarank-api/internal/model"
	"safarank-api/internal/repository"
	"safarank-api/pkg/apierror"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// errBadCredentials is returned for every authentication failure so callers
// cannot tell which part was wrong.
var errBadCredentials = apierror.Unauthorized("invalid email or password")

// RegisterInput is the registration form.
type RegisterInput struct {
	Email    string
	Name     string
	Role     model.Role
	Password string
}

// AuthService registers and authenticates users.
type AuthService struct {
	users repository.UserRepository
	cost  int
}

// NewAuthService creates an auth service. cost is the bcrypt cost; zero
// means bcrypt.DefaultCost.
func NewAuthService(users repository.UserRepository, cost int) *AuthService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, cost: cost}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(in *RegisterInput) error {
	var details []apierror.FieldError

	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		details = append(details, apierror.FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if in.Name == "" {
		details = append(details, apierror.FieldError{Field: "nombre", Message: "is required"})
	} else if len(in.Name) > 100 {
		details = append(details, apierror.FieldError{Field: "nombre", Message: "must be at most 100 characters"})
	}
	if !in.Role.Valid() {
		details = append(details, apierror.FieldError{Field: "rol", Message: "must be admin or cliente"})
	}
	if len(in.Password) < MinPasswordLength {
		details = append(details, apierror.FieldError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength),
		})
	}

	if len(details) > 0 {
		return apierror.ValidationError("invalid registration", details...)
	}
	return nil
}

// Register validates the input and creates an active account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = model.RoleClient
	}
	if err := validateRegistration(&in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.Conflict("an account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:        in.Email,
		Name:         in.Name,
		Role:         in.Role,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apierror.Conflict("an account with this email already exists")
		}
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// CreateAdmin registers an administrator account.
func (s *AuthService) CreateAdmin(ctx context.Context, email, name, password string) (*model.User, error) {
	return s.Register(ctx, RegisterInput{Email: email, Name: name, Role: model.RoleAdmin, Password: password})
}

// Authenticate checks credentials. Unknown email, inactive account and wrong
// password all yield the same Unauthorized error.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errBadCredentials
	}
	return user, nil
}

// CountUsers returns the number of accounts.
func (s *AuthService) CountUsers(ctx context.Context) (int64, error) {
	return s.users.CountUsers(ctx)
}
