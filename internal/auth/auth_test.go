package auth

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"portfolio/internal/database"
	"portfolio/internal/logging"
	"portfolio/internal/mailer"
	"portfolio/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Secr3t!pass"

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

type fixture struct {
	store   *database.Store
	mail    *fakeMailer
	manager *Manager
	user    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := database.Open(filepath.Join(t.TempDir(), "auth.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hash, err := HashPassword(strongPassword)
	require.NoError(t, err)
	user := &models.User{Name: "Ann", Email: "ann@example.com", PasswordHash: hash}
	require.NoError(t, store.CreateUser(context.Background(), user))

	mail := &fakeMailer{}
	manager := NewManager(store, store, mail, NewTokenIssuer("test-secret", time.Hour), Options{
		ResetTTL: time.Hour,
		ResetURL: "https://photo.example.com/reset?lang=ru",
	}, logging.Discard())
	return &fixture{store: store, mail: mail, manager: manager, user: user}
}

// requestToken запрашивает сброс и достает токен из ссылки в письме.
func (f *fixture) requestToken(t *testing.T) string {
	t.Helper()
	before := len(f.mail.messages())
	f.manager.RequestPasswordReset(context.Background(), f.user.Email)
	f.manager.Wait()

	msgs := f.mail.messages()
	require.Len(t, msgs, before+1)
	for _, line := range strings.Split(msgs[len(msgs)-1].Body, "\n") {
		if strings.HasPrefix(line, "https://") {
			u, err := url.Parse(line)
			require.NoError(t, err)
			assert.Equal(t, "ru", u.Query().Get("lang"))
			return u.Query().Get("token")
		}
	}
	t.Fatal("ссылка не найдена в письме")
	return ""
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword(strongPassword)
	require.NoError(t, err)
	assert.NotEqual(t, strongPassword, hash)
	assert.True(t, CheckPasswordHash(strongPassword, hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash(strongPassword, "not-a-hash"))
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	token, expiresAt, err := issuer.Issue(42, models.RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, userID, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	other, _, err := NewTokenIssuer("other", time.Hour).Issue(1, models.RoleUser)
	require.NoError(t, err)
	_, _, err = issuer.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := issuer.Issue(1, models.RoleUser)
	require.NoError(t, err)
	issuer.now = time.Now
	_, _, err = issuer.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, _, err = issuer.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = issuer.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.manager.Login(ctx, " ANN@example.com ", strongPassword)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, session.User.ID)
	_, userID, err := f.manager.Tokens().Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, userID)

	_, errWrong := f.manager.Login(ctx, f.user.Email, "Wrong1!pass")
	_, errUnknown := f.manager.Login(ctx, "nobody@example.com", strongPassword)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestPasswordReset_FullCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token := f.requestToken(t)
	require.NotEmpty(t, token)

	const newPassword = "N3w!password"
	require.NoError(t, f.manager.RedeemPasswordReset(ctx, token, newPassword))

	_, err := f.manager.Login(ctx, f.user.Email, strongPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.manager.Login(ctx, f.user.Email, newPassword)
	assert.NoError(t, err)

	// Токен одноразовый
	err = f.manager.RedeemPasswordReset(ctx, token, "An0ther!pass")
	assert.ErrorIs(t, err, models.ErrTokenAlreadyUsed)
}

func TestPasswordReset_UnknownEmailSendsNothing(t *testing.T) {
	f := newFixture(t)
	f.manager.RequestPasswordReset(context.Background(), "nobody@example.com")
	f.manager.Wait()
	assert.Empty(t, f.mail.messages())
}

func TestPasswordReset_MailFailureIsSilent(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errors.New("smtp down")
	f.manager.RequestPasswordReset(context.Background(), f.user.Email)
	f.manager.Wait()
	assert.Empty(t, f.mail.messages())
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newFixture(t)
	token := f.requestToken(t)

	f.manager.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	err := f.manager.RedeemPasswordReset(context.Background(), token, "N3w!password")
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestPasswordReset_InvalidAndWeak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.manager.RedeemPasswordReset(ctx, "no-such-token", "N3w!password"), models.ErrTokenInvalid)
	assert.ErrorIs(t, f.manager.RedeemPasswordReset(ctx, "", "N3w!password"), models.ErrTokenInvalid)

	token := f.requestToken(t)
	assert.ErrorIs(t, f.manager.RedeemPasswordReset(ctx, token, "weak"), ErrWeakPassword)
	// Слабый пароль не гасит токен
	assert.NoError(t, f.manager.RedeemPasswordReset(ctx, token, "N3w!password"))
}

type failingUsers struct {
	UserStore
}

func (failingUsers) UpdateUserPassword(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestPasswordReset_ReleasedWhenUpdateFails(t *testing.T) {
	f := newFixture(t)
	token := f.requestToken(t)

	broken := NewManager(failingUsers{f.store}, f.store, f.mail, f.manager.tokens, f.manager.opts, logging.Discard())
	err := broken.RedeemPasswordReset(context.Background(), token, "N3w!password")
	require.Error(t, err)

	// Погашение снято: ссылка снова работает
	assert.NoError(t, f.manager.RedeemPasswordReset(context.Background(), token, "N3w!password"))
}

func TestPasswordReset_DeletedUser(t *testing.T) {
	f := newFixture(t)
	token := f.requestToken(t)
	require.NoError(t, f.store.DeleteUser(context.Background(), f.user.ID))

	err := f.manager.RedeemPasswordReset(context.Background(), token, "N3w!password")
	assert.ErrorIs(t, err, models.ErrTokenInvalid)
}

func TestHashResetToken(t *testing.T) {
	h := hashResetToken("abc")
	assert.Len(t, h, 64)
	assert.NotContains(t, h, "abc")
	assert.Equal(t, h, hashResetToken("abc"))
}
