package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MikeMC777/buildmart/internal/access"
	"github.com/MikeMC777/buildmart/internal/apperr"
	"github.com/MikeMC777/buildmart/internal/auth"
)

type memRepo struct {
	users map[string]*User
}

func (m *memRepo) Create(_ context.Context, u *User) error {
	for _, x := range m.users {
		if x.Email == u.Email || x.Username == u.Username {
			return ErrAlreadyExist
		}
	}
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) Update(_ context.Context, u *User, updatePassword bool) error {
	cur, ok := m.users[u.ID]
	if !ok {
		return ErrNotFound
	}
	for id, x := range m.users {
		if id != u.ID && ((u.Email != "" && x.Email == u.Email) || (u.Username != "" && x.Username == u.Username)) {
			return ErrAlreadyExist
		}
	}
	if u.Username != "" {
		cur.Username = u.Username
	}
	if u.Email != "" {
		cur.Email = u.Email
	}
	if updatePassword {
		cur.PasswordHash = u.PasswordHash
	}
	return nil
}

func newService() (*Service, *auth.Tokens) {
	tokens := auth.NewTokens("test-secret", time.Hour)
	repo := &memRepo{users: map[string]*User{}}
	return NewService(repo, tokens, access.NewGate(access.DefaultPolicy()), zap.NewNop()), tokens
}

func TestRegister(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "Ana@Example.com", Password: "s3cretpass", Role: auth.RoleSeller})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, auth.RoleSeller, u.Role)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "s3cretpass"))

	def, err := svc.Register(ctx, RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleBuyer, def.Role)

	_, err = svc.Register(ctx, RegisterRequest{Username: "ana2", Email: "ana@example.com", Password: "s3cretpass"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	bad := []RegisterRequest{
		{Username: "c", Email: "c@example.com", Password: "short"},
		{Username: "c", Email: "not-an-email", Password: "s3cretpass"},
		{Username: "c", Email: "c@example.com", Password: "s3cretpass", Role: auth.RoleAdmin},
		{Username: "c", Email: "c@example.com", Password: "s3cretpass", Role: "owner"},
		{Email: "c@example.com", Password: "s3cretpass"},
	}
	for _, in := range bad {
		_, err := svc.Register(ctx, in)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "%+v", in)
	}
}

func TestLogin(t *testing.T) {
	svc, tokens := newService()
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "s3cretpass", Role: auth.RoleClient})
	require.NoError(t, err)

	res, err := svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	p, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, p.ID)
	assert.Equal(t, auth.RoleClient, p.Role)

	_, err = svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "wrongpass"})
	assert.Equal(t, apperr.KindAuthRequired, apperr.KindOf(err))
	_, err = svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "s3cretpass"})
	assert.Equal(t, apperr.KindAuthRequired, apperr.KindOf(err))
	_, err = svc.Login(ctx, LoginRequest{Email: "ana@example.com"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestMeAndUpdate(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterRequest{Username: "ana", Email: "ana@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	p := &auth.Principal{ID: u.ID, Role: u.Role}

	_, err = svc.Me(ctx, nil)
	assert.Equal(t, apperr.KindAuthRequired, apperr.KindOf(err))

	me, err := svc.Me(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, "ana", me.Username)

	me, err = svc.UpdateMe(ctx, p, UpdateRequest{Username: "ana.m", Password: "n3wpassword"})
	require.NoError(t, err)
	assert.Equal(t, "ana.m", me.Username)
	assert.Equal(t, "ana@example.com", me.Email)
	_, err = svc.Login(ctx, LoginRequest{Email: "ana@example.com", Password: "n3wpassword"})
	assert.NoError(t, err)

	_, err = svc.UpdateMe(ctx, p, UpdateRequest{Email: "bob@example.com"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	_, err = svc.UpdateMe(ctx, p, UpdateRequest{Password: "short"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
