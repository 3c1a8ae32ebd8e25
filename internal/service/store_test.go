package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/domain"
	"marketplace/internal/readiness"
	"marketplace/internal/repository"
	"marketplace/internal/repository/memory"
)

type failingKV struct {
	getErr error
	setErr error
}

func (f failingKV) Init(ctx context.Context) error { return nil }
func (f failingKV) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return "", repository.ErrNotFound
}
func (f failingKV) Set(ctx context.Context, key, value string) error { return f.setErr }
func (f failingKV) Delete(ctx context.Context, key string) error     { return f.setErr }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestStore(t *testing.T, kv repository.KeyValue) *Store {
	t.Helper()
	return NewStore(context.Background(), StoreConfig{Storage: kv, Logger: quietLogger()})
}

func consumer(email, password string) RegisterInput {
	return RegisterInput{Type: domain.UserTypeConsumer, Name: "Test", Email: email, Password: password}
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVRepository())

	first, err := store.Register(ctx, consumer("A@x.com", "p"))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", first.Email)

	_, err = store.Register(ctx, consumer("a@x.com", "q"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = store.Register(ctx, RegisterInput{Type: domain.UserTypeProvider, Email: "  A@X.COM ", Password: "z"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	assert.Len(t, store.Users(), 1)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVRepository())

	_, err := store.Register(ctx, consumer("   ", "p"))
	assert.ErrorIs(t, err, ErrEmailMissing)

	_, err = store.Register(ctx, consumer("a@x.com", ""))
	assert.ErrorIs(t, err, ErrPasswordMissing)

	_, err = store.Register(ctx, RegisterInput{Type: "admin", Email: "a@x.com", Password: "p"})
	assert.ErrorIs(t, err, ErrInvalidUserType)

	assert.Empty(t, store.Users())
}

func TestRegister_NormalizesFields(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	store := NewStore(ctx, StoreConfig{
		Storage: memory.NewKVRepository(),
		Logger:  quietLogger(),
		Now:     func() time.Time { return now },
	})

	provider, err := store.Register(ctx, RegisterInput{
		Type:        domain.UserTypeProvider,
		Name:        "  Bob Builder ",
		Email:       " Bob@Example.COM ",
		Phone:       " +7 900 ",
		Password:    "secret",
		Category:    " services ",
		Description: " fixes things ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bob Builder", provider.Name)
	assert.Equal(t, "bob@example.com", provider.Email)
	assert.Equal(t, "+7 900", provider.Phone)
	assert.Equal(t, "services", provider.Category)
	assert.Equal(t, "fixes things", provider.Description)
	assert.Equal(t, now, provider.RegistrationDate)
	assert.True(t, strings.HasPrefix(provider.ID, "m"), "id starts with base36 millis: %s", provider.ID)

	buyer, err := store.Register(ctx, RegisterInput{
		Type:     domain.UserTypeConsumer,
		Email:    "c@example.com",
		Password: "p",
		Category: "ignored",
	})
	require.NoError(t, err)
	assert.Empty(t, buyer.Category)
	assert.NotEqual(t, provider.ID, buyer.ID)
}

func TestLogin_AnyCasingSetsSession(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVRepository()
	store := newTestStore(t, kv)

	registered, err := store.Register(ctx, consumer("A@x.com", "p"))
	require.NoError(t, err)
	_, err = store.Register(ctx, consumer("a@x.com", "q"))
	require.ErrorIs(t, err, ErrEmailTaken)

	sess := store.OpenSession(ctx, "")
	assert.Nil(t, sess.CurrentUser())

	user, err := sess.Login(ctx, "a@X.com", "p")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	require.NotNil(t, sess.CurrentUser())
	assert.Equal(t, registered.ID, sess.CurrentUser().ID)

	raw, err := kv.Get(ctx, repository.SessionKey)
	require.NoError(t, err)
	assert.Contains(t, raw, registered.ID)
}

func TestLogin_WrongPasswordKeepsSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVRepository())

	_, err := store.Register(ctx, consumer("a@x.com", "p"))
	require.NoError(t, err)
	other, err := store.Register(ctx, consumer("b@x.com", "q"))
	require.NoError(t, err)

	sess := store.OpenSession(ctx, "browser-1")
	_, err = sess.Login(ctx, "b@x.com", "q")
	require.NoError(t, err)

	_, err = sess.Login(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	require.NotNil(t, sess.CurrentUser())
	assert.Equal(t, other.ID, sess.CurrentUser().ID)

	_, err = sess.Login(ctx, "nobody@x.com", "p")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = sess.Login(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	reopened := store.OpenSession(ctx, "browser-1")
	require.NotNil(t, reopened.CurrentUser())
	assert.Equal(t, other.ID, reopened.CurrentUser().ID)
}

func TestLogout_ClearsPersistedRecord(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVRepository()
	store := newTestStore(t, kv)

	_, err := store.Register(ctx, consumer("a@x.com", "p"))
	require.NoError(t, err)

	sess := store.OpenSession(ctx, "b1")
	_, err = sess.Login(ctx, "a@x.com", "p")
	require.NoError(t, err)

	sess.Logout(ctx)
	assert.Nil(t, sess.CurrentUser())
	_, err = kv.Get(ctx, repository.SessionKeyFor("b1"))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Nil(t, store.OpenSession(ctx, "b1").CurrentUser())

	// logging out twice is fine
	sess.Logout(ctx)
	assert.Nil(t, sess.CurrentUser())
}

func TestSessionsAreScoped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVRepository())
	_, err := store.Register(ctx, consumer("a@x.com", "p"))
	require.NoError(t, err)

	first := store.OpenSession(ctx, "b1")
	_, err = first.Login(ctx, "a@x.com", "p")
	require.NoError(t, err)

	assert.Nil(t, store.OpenSession(ctx, "b2").CurrentUser())
	assert.NotNil(t, store.OpenSession(ctx, "b1").CurrentUser())
}

func TestReload_RoundTripsRegistryAndSession(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVRepository()

	before := newTestStore(t, kv)
	u, err := before.Register(ctx, RegisterInput{
		Type: domain.UserTypeProvider, Name: "U", Email: "u@x.com", Password: "pw", Category: "jobs",
	})
	require.NoError(t, err)
	_, err = before.OpenSession(ctx, "").Login(ctx, "u@x.com", "pw")
	require.NoError(t, err)

	after := newTestStore(t, kv)
	found, ok := after.FindByEmail("U@X.com")
	require.True(t, ok)
	assert.Equal(t, *u, *found)

	current := after.OpenSession(ctx, "").CurrentUser()
	require.NotNil(t, current)
	assert.Equal(t, u.ID, current.ID)

	_, err = after.Register(ctx, consumer("u@x.com", "other"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestStorageFailuresDegrade(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()

	kv := failingKV{getErr: errors.New("corrupted"), setErr: errors.New("quota")}
	store := NewStore(ctx, StoreConfig{Storage: kv, Logger: logger})
	assert.Empty(t, store.Users())
	assert.NotEmpty(t, hook.Entries)

	hook.Reset()
	u, err := store.Register(ctx, consumer("a@x.com", "p"))
	require.NoError(t, err)
	assert.Len(t, store.Users(), 1)
	require.NotNil(t, hook.LastEntry())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "persist registry") {
			warned = true
		}
	}
	assert.True(t, warned)

	sess := store.OpenSession(ctx, "")
	assert.Nil(t, sess.CurrentUser())
	logged, err := sess.Login(ctx, "a@x.com", "p")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
	assert.Equal(t, u.ID, sess.CurrentUser().ID)

	sess.Logout(ctx)
	assert.Nil(t, sess.CurrentUser())
}

func TestCorruptedRecordsFallBack(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVRepository()
	require.NoError(t, kv.Set(ctx, repository.UsersKey, "not json"))
	require.NoError(t, kv.Set(ctx, repository.SessionKey, "{"))

	store := newTestStore(t, kv)
	assert.Empty(t, store.Users())
	assert.Nil(t, store.OpenSession(ctx, "").CurrentUser())

	_, err := store.Register(ctx, consumer("a@x.com", "p"))
	require.NoError(t, err)
	assert.Len(t, newTestStore(t, kv).Users(), 1)
}

func TestReadiness_SubscribersBeforeAndAfter(t *testing.T) {
	ctx := context.Background()
	ready := readiness.New[*Store]()

	var early []*Store
	ready.Then(func(s *Store) { early = append(early, s) })

	store := NewStore(ctx, StoreConfig{Storage: memory.NewKVRepository(), Logger: quietLogger(), Ready: ready})
	require.Len(t, early, 1)
	assert.Same(t, store, early[0])

	var late *Store
	store.Ready().Then(func(s *Store) { late = s })
	assert.Same(t, store, late)

	got, ok := store.Ready().Get()
	assert.True(t, ok)
	assert.Same(t, store, got)
	assert.Len(t, early, 1)
}

func TestBcryptPolicy(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVRepository()
	store := NewStore(ctx, StoreConfig{
		Storage:   kv,
		Logger:    quietLogger(),
		Passwords: BcryptPasswords{Cost: 4},
	})

	u, err := store.Register(ctx, consumer("a@x.com", "secret"))
	require.NoError(t, err)
	assert.NotEqual(t, "secret", u.Password)

	_, err = store.OpenSession(ctx, "").Login(ctx, "a@x.com", "secret")
	assert.NoError(t, err)
	_, err = store.OpenSession(ctx, "").Login(ctx, "a@x.com", "Secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordPolicyByName(t *testing.T) {
	p, err := PasswordPolicyByName("")
	require.NoError(t, err)
	assert.IsType(t, PlaintextPasswords{}, p)

	p, err = PasswordPolicyByName("BCRYPT")
	require.NoError(t, err)
	assert.IsType(t, BcryptPasswords{}, p)

	_, err = PasswordPolicyByName("md5")
	assert.Error(t, err)
}

func TestProviders_FiltersByCategoryAndQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, memory.NewKVRepository())

	register := func(in RegisterInput) {
		t.Helper()
		_, err := store.Register(ctx, in)
		require.NoError(t, err)
	}
	register(RegisterInput{Type: domain.UserTypeProvider, Name: "Plumb Co", Email: "p1@x.com", Password: "p", Category: "services", Description: "Pipes and taps"})
	register(RegisterInput{Type: domain.UserTypeProvider, Name: "Flat Finder", Email: "p2@x.com", Password: "p", Category: "realestate"})
	register(RegisterInput{Type: domain.UserTypeConsumer, Name: "Plumb Lover", Email: "c1@x.com", Password: "p"})

	assert.Len(t, store.Providers("", ""), 2)

	services := store.Providers("Services", "")
	require.Len(t, services, 1)
	assert.Equal(t, "p1@x.com", services[0].Email)

	byQuery := store.Providers("", "TAPS")
	require.Len(t, byQuery, 1)
	assert.Equal(t, "Plumb Co", byQuery[0].Name)

	assert.Empty(t, store.Providers("jobs", ""))
	assert.Empty(t, store.Providers("realestate", "pipes"))
}

func TestReadiness_SharedFutureAlreadyResolved(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()
	shared := readiness.New[*Store]()

	first := NewStore(ctx, StoreConfig{Storage: memory.NewKVRepository(), Logger: logger, Ready: shared})
	second := NewStore(ctx, StoreConfig{Storage: memory.NewKVRepository(), Logger: logger, Ready: shared})

	got, ok := shared.Get()
	require.True(t, ok)
	assert.Same(t, first, got)

	got, ok = second.Ready().Get()
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotSame(t, shared, second.Ready())

	var late *Store
	second.Ready().Then(func(s *Store) { late = s })
	assert.Same(t, second, late)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "already resolved") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestPasswordsComparedExactly(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKVRepository()
	store := newTestStore(t, kv)

	u, err := store.Register(ctx, consumer("a@x.com", " pw "))
	require.NoError(t, err)
	assert.Equal(t, " pw ", u.Password)

	sess := store.OpenSession(ctx, "")
	_, err = sess.Login(ctx, "a@x.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, sess.CurrentUser())

	_, err = sess.Login(ctx, " A@x.com", " pw ")
	require.NoError(t, err)

	// whitespace is a password like any other
	_, err = store.Register(ctx, consumer("b@x.com", "  "))
	require.NoError(t, err)
	_, err = store.OpenSession(ctx, "b").Login(ctx, "b@x.com", "  ")
	assert.NoError(t, err)
}

func TestRegister_AfterUnreadableRegistryLogsOverwrite(t *testing.T) {
	ctx := context.Background()
	logger, hook := test.NewNullLogger()

	store := NewStore(ctx, StoreConfig{Storage: failingKV{getErr: errors.New("timeout")}, Logger: logger})
	hook.Reset()

	_, err := store.Register(ctx, consumer("a@x.com", "p"))
	require.NoError(t, err)

	var overwrites int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && strings.Contains(e.Message, "overwrites the stored registry") {
			overwrites++
		}
	}
	assert.Equal(t, 1, overwrites)

	// the first successful persist makes the stored registry authoritative again
	hook.Reset()
	_, err = store.Register(ctx, consumer("b@x.com", "p"))
	require.NoError(t, err)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.ErrorLevel, e.Level)
	}
}
