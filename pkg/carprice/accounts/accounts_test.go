package accounts

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/dal"
	"github.com/nekruzvatanshoev/carprice/pkg/carprice/errors"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]dal.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]dal.User)}
}

func (m *memStore) CreateUser(_ context.Context, u dal.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return errors.NewAlreadyExistsError("user", u.Username)
	}
	m.users[u.Username] = u
	return nil
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (dal.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return dal.User{}, errors.ErrNotFound
	}
	return u, nil
}

func newService(t *testing.T, opts ...Option) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	s, err := New(store, "test-secret", opts...)
	require.NoError(t, err)
	return s, store
}

func TestNew(t *testing.T) {
	_, err := New(newMemStore(), "")
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	_, err = New(nil, "secret")
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestRegisterAndLogin(t *testing.T) {
	s, store := newService(t)
	ctx := context.Background()

	pair, err := s.Register(ctx, " amina ", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Access)
	assert.NotEmpty(t, pair.Refresh)

	u := store.users["amina"]
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.Len(t, u.ID, 36)

	claims, err := s.ValidateAccess(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "amina", claims.Username)
	assert.Equal(t, u.ID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(DefaultAccessTTL), claims.ExpiresAt.Time, time.Minute)

	_, err = s.ValidateAccess(pair.Refresh)
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials), "refresh tokens are not access tokens")

	pair, err = s.Login(ctx, "amina", "s3cret")
	require.NoError(t, err)
	_, err = s.ValidateAccess(pair.Access)
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "", "pw")
	var invalid *errors.ValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "username", invalid.Field)

	_, err = s.Register(ctx, "amina", "")
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "password", invalid.Field)

	_, err = s.Register(ctx, "amina", strings.Repeat("x", MaxPasswordLength+1))
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "password", invalid.Field)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = s.Register(ctx, "amina", strings.Repeat("x", MaxPasswordLength))
	require.NoError(t, err)
	_, err = s.Register(ctx, "amina", "pw2")
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))
}

func TestLoginInvalidCredentials(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	_, err := s.Register(ctx, "amina", "right")
	require.NoError(t, err)

	_, err = s.Login(ctx, "amina", "wrong")
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))

	_, err = s.Login(ctx, "ghost", "right")
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
}

func TestValidateAccessRejects(t *testing.T) {
	s, _ := newService(t, WithTTL(time.Millisecond, 0))
	ctx := context.Background()

	pair, err := s.Register(ctx, "amina", "pw")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = s.ValidateAccess(pair.Access)
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials), "expired")

	other, err := New(newMemStore(), "another-secret")
	require.NoError(t, err)
	_, err = other.ValidateAccess(pair.Refresh)
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials), "foreign signature")

	_, err = s.ValidateAccess("not-a-token")
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
}
