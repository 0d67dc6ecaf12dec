package user

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
)

const minPasswordLen = 8

type Service struct {
	repo   Repository
	tokens *auth.Tokens
	gate   *access.Gate
	log    *zap.Logger
}

func NewService(repo Repository, tokens *auth.Tokens, gate *access.Gate, log *zap.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, gate: gate, log: log}
}

// Register creates an account. Admins are provisioned out of band.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if username == "" || email == "" || in.Password == "" {
		return nil, apperr.Validation("username, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation("email is not valid")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperr.Validation("password must have at least %d characters", minPasswordLen)
	}
	role := in.Role
	if role == "" {
		role = auth.RoleBuyer
	}
	if !role.SelfAssignable() {
		return nil, apperr.Validation("role must be buyer, seller or client")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(errors.Wrap(err, "hash password"))
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrAlreadyExist) {
			return nil, apperr.Conflict("username or email already registered")
		}
		return nil, apperr.Internal(err)
	}
	s.log.Info("user registered", zap.String("id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Login checks credentials and issues a bearer token. Unknown email and
// wrong password fail the same way.
func (s *Service) Login(ctx context.Context, in LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, apperr.Validation("email and password are required")
	}
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, apperr.Internal(err)
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, apperr.New(apperr.KindAuthRequired, "invalid email or password")
	}
	tok, exp, err := s.tokens.Issue(auth.Principal{ID: u.ID, Role: u.Role})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &LoginResponse{Token: tok, ExpiresAt: exp, User: u}, nil
}

func (s *Service) Me(ctx context.Context, p *auth.Principal) (*User, error) {
	if err := s.gate.Authorize(p, access.UserSelf, nil); err != nil {
		return nil, err
	}
	u, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Internal(err)
	}
	return u, nil
}

// UpdateMe changes the caller's username, email or password. The role is
// never changed here.
func (s *Service) UpdateMe(ctx context.Context, p *auth.Principal, in UpdateRequest) (*User, error) {
	if err := s.gate.Authorize(p, access.UserSelf, nil); err != nil {
		return nil, err
	}
	u := &User{
		ID:       p.ID,
		Username: strings.TrimSpace(in.Username),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return nil, apperr.Validation("email is not valid")
		}
	}
	updatePassword := in.Password != ""
	if updatePassword {
		if len(in.Password) < minPasswordLen {
			return nil, apperr.Validation("password must have at least %d characters", minPasswordLen)
		}
		h, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, apperr.Internal(errors.Wrap(err, "hash password"))
		}
		u.PasswordHash = h
	}
	if err := s.repo.Update(ctx, u, updatePassword); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyExist):
			return nil, apperr.Conflict("username or email already registered")
		case errors.Is(err, ErrNotFound):
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Internal(err)
	}
	return s.Me(ctx, p)
}
