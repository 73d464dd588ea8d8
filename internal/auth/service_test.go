package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/notify"
)

type fakeStore struct {
	creds map[uuid.UUID]*models.Credential
	users map[uuid.UUID]*models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{creds: map[uuid.UUID]*models.Credential{}, users: map[uuid.UUID]*models.User{}}
}

func (f *fakeStore) CreateAccount(_ context.Context, email, hash string, role models.Role, verified bool) (*models.User, error) {
	for _, c := range f.creds {
		if c.Email == email {
			return nil, ErrEmailTaken
		}
	}
	id := uuid.New()
	f.creds[id] = &models.Credential{ID: id, Email: email, PasswordHash: hash, EmailVerified: verified}
	u := &models.User{UID: id, Email: email, Role: role, CreatedAt: time.Now()}
	f.users[id] = u
	return u, nil
}

func (f *fakeStore) GetCredentialByEmail(_ context.Context, email string) (*models.Credential, error) {
	for _, c := range f.creds {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) GetCredential(_ context.Context, id uuid.UUID) (*models.Credential, error) {
	if c, ok := f.creds[id]; ok {
		return c, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeStore) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	c, ok := f.creds[id]
	if !ok {
		return models.ErrNotFound
	}
	c.EmailVerified = true
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	c, ok := f.creds[id]
	if !ok {
		return models.ErrNotFound
	}
	c.PasswordHash = hash
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, uid uuid.UUID) (*models.User, error) {
	if u, ok := f.users[uid]; ok {
		return u, nil
	}
	return nil, models.ErrNotFound
}

type memTokens struct {
	mu sync.Mutex
	m  map[string]uuid.UUID
}

func (t *memTokens) Issue(_ context.Context, p Purpose, uid uuid.UUID) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tok := string(p) + "-" + uuid.NewString()
	t.m[tok] = uid
	return tok, nil
}

func (t *memTokens) Consume(_ context.Context, _ Purpose, token string) (uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	uid, ok := t.m[token]
	if !ok {
		return uuid.Nil, ErrInvalidLink
	}
	delete(t.m, token)
	return uid, nil
}

type fakeMail struct {
	mu          sync.Mutex
	verifyLinks []string
	resetLinks  []string
	// resetGate, when set, holds reset sends until it is closed.
	resetGate chan struct{}
}

func (f *fakeMail) SendVerificationEmail(_ context.Context, _, link string) (notify.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyLinks = append(f.verifyLinks, link)
	return notify.Outcome{Success: true}, nil
}

func (f *fakeMail) SendPasswordResetEmail(_ context.Context, _, link string) (notify.Outcome, error) {
	if f.resetGate != nil {
		<-f.resetGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLinks = append(f.resetLinks, link)
	return notify.Outcome{Success: true}, nil
}

type fixture struct {
	svc    *Service
	store  *fakeStore
	tokens *memTokens
	mail   *fakeMail
}

func newFixture(entrySecret string) *fixture {
	store := newFakeStore()
	tokens := &memTokens{m: map[string]uuid.UUID{}}
	mail := &fakeMail{}
	svc := NewService(store, store, tokens, mail, NewJWTService("0123456789abcdef", 1),
		Options{PublicBaseURL: "http://localhost:3000", AdminEntrySecret: entrySecret}, zap.NewNop())
	return &fixture{svc: svc, store: store, tokens: tokens, mail: mail}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	_, tok, ok := strings.Cut(link, "token=")
	require.True(t, ok, link)
	return tok
}

func TestRegister_CreatesUnverifiedAccountAndSendsLink(t *testing.T) {
	f := newFixture("")

	res, err := f.svc.Register(context.Background(), " Vera@Example.com ", "secret1", models.RoleVolunteer)
	require.NoError(t, err)

	assert.Equal(t, "vera@example.com", res.User.Email)
	assert.False(t, res.EmailVerified)
	assert.NotEmpty(t, res.Token)
	require.Len(t, f.mail.verifyLinks, 1)
	assert.Contains(t, f.mail.verifyLinks[0], "http://localhost:3000/verify-email?token=")

	require.NoError(t, f.svc.VerifyEmail(context.Background(), tokenFromLink(t, f.mail.verifyLinks[0])))
	assert.True(t, f.store.creds[res.User.UID].EmailVerified)

	// single use
	assert.ErrorIs(t, f.svc.VerifyEmail(context.Background(), tokenFromLink(t, f.mail.verifyLinks[0])), ErrInvalidLink)
}

func TestRegister_Rejections(t *testing.T) {
	f := newFixture("")

	_, err := f.svc.Register(context.Background(), "a@example.com", "secret1", models.RoleAdmin)
	assert.ErrorIs(t, err, ErrRoleNotAllowed)

	_, err = f.svc.Register(context.Background(), "a@example.com", "123", models.RoleVolunteer)
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = f.svc.Register(context.Background(), "a@example.com", "secret1", models.RoleVolunteer)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), "A@example.com", "secret1", models.RoleCoordinator)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	f := newFixture("")
	_, err := f.svc.Register(context.Background(), "c@example.com", "secret1", models.RoleCoordinator)
	require.NoError(t, err)

	res, err := f.svc.Login(context.Background(), "c@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCoordinator, res.User.Role)

	_, err = f.svc.Login(context.Background(), "c@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// identity without a profile is refused
	delete(f.store.users, res.User.UID)
	_, err = f.svc.Login(context.Background(), "c@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLogin(t *testing.T) {
	f := newFixture("open-sesame")
	_, err := f.svc.Provision(context.Background(), "root@example.com", "secret1", models.RoleAdmin, true)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), "v@example.com", "secret1", models.RoleVolunteer)
	require.NoError(t, err)

	_, err = f.svc.AdminLogin(context.Background(), "root@example.com", "secret1", "wrong")
	assert.ErrorIs(t, err, ErrEntryDenied)

	res, err := f.svc.AdminLogin(context.Background(), "root@example.com", "secret1", "open-sesame")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)

	_, err = f.svc.AdminLogin(context.Background(), "v@example.com", "secret1", "open-sesame")
	assert.ErrorIs(t, err, ErrInvalidAdminLogin)
}

func TestAdminPasswordReset_OnlyAdminsGetLinks(t *testing.T) {
	f := newFixture("")
	admin, err := f.svc.Provision(context.Background(), "root@example.com", "secret1", models.RoleAdmin, true)
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), "v@example.com", "secret1", models.RoleVolunteer)
	require.NoError(t, err)

	f.svc.RequestAdminPasswordReset(context.Background(), "v@example.com")
	f.svc.RequestAdminPasswordReset(context.Background(), "nobody@example.com")
	f.svc.Wait()
	assert.Empty(t, f.mail.resetLinks)

	f.svc.RequestAdminPasswordReset(context.Background(), "root@example.com")
	f.svc.Wait()
	require.Len(t, f.mail.resetLinks, 1)

	tok := tokenFromLink(t, f.mail.resetLinks[0])
	require.NoError(t, f.svc.ResetPassword(context.Background(), tok, "newsecret"))
	_, err = f.svc.AdminLogin(context.Background(), "root@example.com", "newsecret", "")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.ResetPassword(context.Background(), tok, "another1"), ErrInvalidLink)
	assert.NotNil(t, f.store.creds[admin.UID])
}

func TestAdminPasswordReset_ReturnsBeforeEmailIsSent(t *testing.T) {
	f := newFixture("")
	_, err := f.svc.Provision(context.Background(), "root@example.com", "secret1", models.RoleAdmin, true)
	require.NoError(t, err)
	f.mail.resetGate = make(chan struct{})

	returned := make(chan struct{})
	go func() {
		f.svc.RequestAdminPasswordReset(context.Background(), "root@example.com")
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("admin recovery waited on the email send")
	}

	// a cancelled request context does not abort the detached send
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.svc.RequestAdminPasswordReset(ctx, "root@example.com")

	close(f.mail.resetGate)
	f.svc.Wait()
	f.mail.mu.Lock()
	defer f.mail.mu.Unlock()
	assert.Len(t, f.mail.resetLinks, 2)
}

func TestResendVerification(t *testing.T) {
	f := newFixture("")
	res, err := f.svc.Register(context.Background(), "v@example.com", "secret1", models.RoleVolunteer)
	require.NoError(t, err)

	require.NoError(t, f.svc.ResendVerification(context.Background(), res.User.UID))
	assert.Len(t, f.mail.verifyLinks, 2)

	f.store.creds[res.User.UID].EmailVerified = true
	assert.ErrorIs(t, f.svc.ResendVerification(context.Background(), res.User.UID), ErrAlreadyVerified)
}
