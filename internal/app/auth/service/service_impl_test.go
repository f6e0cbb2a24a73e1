package service_test

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Morphiu/Squad-Yangu/internal/adapters/transport/http/dto"
	appjwt "github.com/Morphiu/Squad-Yangu/internal/app/auth/jwt"
	"github.com/Morphiu/Squad-Yangu/internal/app/auth/password"
	"github.com/Morphiu/Squad-Yangu/internal/app/auth/reset"
	appsvc "github.com/Morphiu/Squad-Yangu/internal/app/auth/service"
	authErrors "github.com/Morphiu/Squad-Yangu/internal/domain/auth/errors"
	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/model"
	"github.com/Morphiu/Squad-Yangu/internal/infra/config"
	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

type userRepoStub struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[uuid.UUID]model.User)}
}

func (u *userRepoStub) CreateUser(_ context.Context, m model.User) (uuid.UUID, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, v := range u.users {
		if v.Email == m.Email || v.Username == m.Username {
			return uuid.Nil, authErrors.ErrAlreadyExists
		}
	}
	m.CreatedAt = time.Now().UTC()
	u.users[m.ID] = m
	return m.ID, nil
}

func (u *userRepoStub) find(match func(model.User) bool) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, v := range u.users {
		if match(v) {
			return v, nil
		}
	}
	return model.User{}, authErrors.ErrNotFound
}

func (u *userRepoStub) GetUserByID(_ context.Context, id uuid.UUID) (model.User, error) {
	return u.find(func(v model.User) bool { return v.ID == id })
}

func (u *userRepoStub) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	return u.find(func(v model.User) bool { return v.Email == email })
}

func (u *userRepoStub) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	return u.find(func(v model.User) bool { return v.Username == username })
}

func (u *userRepoStub) GetUserByResetTokenHash(_ context.Context, hash string, now time.Time) (model.User, error) {
	return u.find(func(v model.User) bool {
		return v.ResetTokenHash != nil && *v.ResetTokenHash == hash && v.ResetTokenExpiry.After(now)
	})
}

func (u *userRepoStub) UpdateProfile(_ context.Context, m model.User, passwordHash string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cur, ok := u.users[m.ID]
	if !ok {
		return authErrors.ErrNotFound
	}
	cur.Username, cur.Email, cur.Bio, cur.ProfilePicture =
		m.Username, m.Email, m.Bio, m.ProfilePicture
	if passwordHash != "" {
		cur.PasswordHash = passwordHash
	}
	u.users[m.ID] = cur
	return nil
}

func (u *userRepoStub) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cur, ok := u.users[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	cur.PasswordHash = hash
	u.users[id] = cur
	return nil
}

func (u *userRepoStub) SetResetToken(_ context.Context, id uuid.UUID, hash string, exp time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cur, ok := u.users[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	cur.ResetTokenHash, cur.ResetTokenExpiry = &hash, &exp
	u.users[id] = cur
	return nil
}

func (u *userRepoStub) ClearResetToken(_ context.Context, id uuid.UUID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cur, ok := u.users[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	cur.ResetTokenHash, cur.ResetTokenExpiry = nil, nil
	u.users[id] = cur
	return nil
}

func (u *userRepoStub) ConsumeResetToken(_ context.Context, id uuid.UUID, tokenHash, passwordHash string, now time.Time) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	cur, ok := u.users[id]
	if !ok || cur.ResetTokenHash == nil || *cur.ResetTokenHash != tokenHash || !cur.ResetTokenExpiry.After(now) {
		return authErrors.ErrNotFound
	}
	cur.PasswordHash = passwordHash
	cur.ResetTokenHash, cur.ResetTokenExpiry = nil, nil
	u.users[id] = cur
	return nil
}

// hookedUserRepo runs onUsername before each username lookup, which lets a
// test slip a write in between UpdateProfile's read and its write.
type hookedUserRepo struct {
	*userRepoStub
	onUsername func()
}

func (h *hookedUserRepo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	if h.onUsername != nil {
		h.onUsername()
	}
	return h.userRepoStub.GetUserByUsername(ctx, username)
}

// countingHasher counts Verify calls and can fail the first failHash
// calls to Hash.
type countingHasher struct {
	*password.Hasher

	mu        sync.Mutex
	verifies  int
	failHash  int
	hashCtxOK []bool
}

func (c *countingHasher) Hash(ctx context.Context, plain string) (string, error) {
	c.mu.Lock()
	c.hashCtxOK = append(c.hashCtxOK, ctx.Err() == nil)
	fail := c.failHash > 0
	if fail {
		c.failHash--
	}
	c.mu.Unlock()
	if fail {
		return "", errors.New("hash unavailable")
	}
	return c.Hasher.Hash(ctx, plain)
}

func (c *countingHasher) Verify(ctx context.Context, plain, hash string) (bool, error) {
	c.mu.Lock()
	c.verifies++
	c.mu.Unlock()
	return c.Hasher.Verify(ctx, plain, hash)
}

func (c *countingHasher) verifyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verifies
}

type throttleStub struct {
	mu   sync.Mutex
	held map[string]bool
}

func (t *throttleStub) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.held[key] {
		return false, nil
	}
	t.held[key] = true
	return true, nil
}

func (t *throttleStub) Release(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.held, key)
	return nil
}

type sentMail struct{ to, subject, html string }

type senderStub struct {
	mu    sync.Mutex
	sent  []sentMail
	fail  error
	block bool
}

func (s *senderStub) Send(ctx context.Context, to, subject, html string) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.fail != nil {
		return s.fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMail{to, subject, html})
	return nil
}

func (s *senderStub) last() sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

/* ───────────────────────────── helpers ───────────────────────────── */

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	svc      appsvc.Service
	users    *userRepoStub
	sender   *senderStub
	throttle *throttleStub
	hasher   *password.Hasher
	logs     *observer.ObservedLogs
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith lets a test swap collaborators before the service is built.
func newFixtureWith(t *testing.T, customize func(f *fixture, d *appsvc.Deps)) *fixture {
	t.Helper()

	now := time.Now().UTC()
	f := &fixture{
		users:    newUserRepoStub(),
		sender:   &senderStub{},
		throttle: &throttleStub{held: map[string]bool{}},
		hasher: password.NewHasher("pepper", &argon2id.Params{
			Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
		}, 0),
		clock: &now,
	}
	clock := func() time.Time { return *f.clock }

	cfg := &config.Config{
		JWTSecret:        testSecret,
		TokenTTL:         30 * 24 * time.Hour,
		ResetTokenTTL:    time.Hour,
		ResetCooldown:    time.Minute,
		EmailSendTimeout: time.Second,
		ClientURL:        "https://app.example.com",
	}
	tokens, err := appjwt.NewJWTUtil(cfg, appjwt.WithClock(clock))
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	f.logs = logs

	deps := appsvc.Deps{
		Users:    f.users,
		Throttle: f.throttle,
		Tokens:   tokens,
		Hasher:   f.hasher,
		Resets:   reset.NewManager(f.users, cfg.ResetTokenTTL, clock),
		Sender:   f.sender,
		Now:      clock,
	}
	if customize != nil {
		customize(f, &deps)
	}
	f.svc = appsvc.New(deps, cfg, dto.NewValidator(), zap.New(core))
	return f
}

func (f *fixture) register(t *testing.T, username, email, pwd string) model.Session {
	t.Helper()
	s, err := f.svc.Register(context.Background(), dto.RegisterDTO{Username: username, Email: email, Password: pwd})
	require.NoError(t, err)
	return s
}

func (f *fixture) mustID(t *testing.T, email string) uuid.UUID {
	t.Helper()
	u, err := f.users.GetUserByEmail(context.Background(), email)
	require.NoError(t, err)
	return u.ID
}

var tokenInLink = regexp.MustCompile(`reset-password\?token=([0-9a-f]{64})`)

func tokenFromMail(t *testing.T, m sentMail) string {
	t.Helper()
	match := tokenInLink.FindStringSubmatch(m.html)
	require.Len(t, match, 2, "reset link not found in email")
	return match[1]
}

/* ───────────────────────────── tests ───────────────────────────── */

func TestAuthService_RegisterLoginProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.register(t, "ann", " Ann@Example.com ", "secret1")
	require.NotEmpty(t, sess.Token)
	require.Equal(t, "ann@example.com", sess.User.Email)
	require.WithinDuration(t, *f.clock, sess.ExpiresAt.Add(-30*24*time.Hour), time.Second)

	stored, err := f.users.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	require.NotEqual(t, "secret1", stored.PasswordHash)
	require.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))

	login, err := f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: "secret1"})
	require.NoError(t, err)

	uid, err := f.svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	require.Equal(t, sess.User.ID, uid)

	p, err := f.svc.Profile(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, "ann", p.Username)
}

func TestAuthService_RegisterInvalid(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), dto.RegisterDTO{})
	require.True(t, authErrors.IsInvalidArgument(err))

	_, err = f.svc.Register(context.Background(), dto.RegisterDTO{
		Username: "ann", Email: "ann@example.com", Password: "abcdef",
	})
	require.True(t, authErrors.IsInvalidArgument(err))
	require.Contains(t, err.Error(), "Password must be at least 6 characters")
	require.Empty(t, f.users.users)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ann", "ann@example.com", "secret1")

	_, err := f.svc.Register(context.Background(), dto.RegisterDTO{
		Username: "other", Email: "ann@example.com", Password: "secret2",
	})
	require.True(t, authErrors.IsAlreadyExists(err))

	_, err = f.svc.Register(context.Background(), dto.RegisterDTO{
		Username: "ann", Email: "other@example.com", Password: "secret2",
	})
	require.True(t, authErrors.IsAlreadyExists(err))
	require.Len(t, f.users.users, 1)
}

func TestAuthService_LoginUniformFailure(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ann", "ann@example.com", "secret1")
	ctx := context.Background()

	_, wrongPwd := f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: "wrong1"})
	_, unknown := f.svc.Login(ctx, dto.LoginDTO{Email: "nobody@example.com", Password: "secret1"})

	require.True(t, authErrors.IsInvalidCredentials(wrongPwd))
	require.True(t, authErrors.IsInvalidCredentials(unknown))
	require.Equal(t, wrongPwd.Error(), unknown.Error())
}

func TestAuthService_UnknownEmailAfterCancelledLogin(t *testing.T) {
	var counter *countingHasher
	f := newFixtureWith(t, func(f *fixture, d *appsvc.Deps) {
		counter = &countingHasher{Hasher: f.hasher}
		d.Hasher = counter
	})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Login(cancelled, dto.LoginDTO{Email: "nobody@example.com", Password: "secret1"})
	require.True(t, authErrors.IsInvalidCredentials(err))
	require.Equal(t, []bool{true}, counter.hashCtxOK, "throwaway hash must not inherit cancellation")

	before := counter.verifyCount()
	for range 3 {
		_, err = f.svc.Login(context.Background(), dto.LoginDTO{Email: "nobody@example.com", Password: "secret1"})
		require.True(t, authErrors.IsInvalidCredentials(err))
	}
	require.Equal(t, 3, counter.verifyCount()-before)
	require.Len(t, counter.hashCtxOK, 1, "throwaway hash is built once")
}

func TestAuthService_UnknownEmailRetriesThrowawayHash(t *testing.T) {
	var counter *countingHasher
	f := newFixtureWith(t, func(f *fixture, d *appsvc.Deps) {
		counter = &countingHasher{Hasher: f.hasher, failHash: 1}
		d.Hasher = counter
	})
	ctx := context.Background()

	_, err := f.svc.Login(ctx, dto.LoginDTO{Email: "nobody@example.com", Password: "secret1"})
	require.True(t, authErrors.IsInvalidCredentials(err))
	require.Zero(t, counter.verifyCount())

	for range 3 {
		_, err = f.svc.Login(ctx, dto.LoginDTO{Email: "nobody@example.com", Password: "secret1"})
		require.True(t, authErrors.IsInvalidCredentials(err))
	}
	require.Equal(t, 3, counter.verifyCount())
	require.Len(t, counter.hashCtxOK, 2)
}

func TestAuthService_LoginUpgradesLegacyHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	legacy, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	id := uuid.New()
	_, err = f.users.CreateUser(ctx, model.User{
		ID: id, Username: "old", Email: "old@example.com", PasswordHash: string(legacy),
	})
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, dto.LoginDTO{Email: "old@example.com", Password: "secret1"})
	require.NoError(t, err)

	u, _ := f.users.GetUserByID(ctx, id)
	require.True(t, strings.HasPrefix(u.PasswordHash, "$argon2id$"))

	_, err = f.svc.Login(ctx, dto.LoginDTO{Email: "old@example.com", Password: "secret1"})
	require.NoError(t, err)
}

func TestAuthService_AuthenticateInvalid(t *testing.T) {
	f := newFixture(t)
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := f.svc.Authenticate(context.Background(), tok)
		require.True(t, authErrors.IsInvalidToken(err))
	}
}

func TestAuthService_ProfileNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Profile(context.Background(), uuid.New())
	require.True(t, authErrors.IsNotFound(err))
}

func TestAuthService_ForgotUnknownEmail(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ForgotPassword(context.Background(), dto.ForgotPasswordDTO{Email: "ghost@example.com"})
	require.True(t, authErrors.IsNotFound(err))
	require.Empty(t, f.sender.sent)
}

func TestAuthService_ResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.register(t, "ann", "ann@example.com", "secret1")

	require.NoError(t, f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"}))

	mail := f.sender.last()
	require.Equal(t, "ann@example.com", mail.to)
	require.Equal(t, "Password Reset Request", mail.subject)
	require.Contains(t, mail.html, "https://app.example.com/reset-password?token=")
	token := tokenFromMail(t, mail)

	u, _ := f.users.GetUserByID(ctx, sess.User.ID)
	require.NotNil(t, u.ResetTokenHash)
	require.Equal(t, reset.Hash(token), *u.ResetTokenHash)
	require.NotEqual(t, token, *u.ResetTokenHash)
	require.WithinDuration(t, f.clock.Add(time.Hour), *u.ResetTokenExpiry, time.Second)

	require.NoError(t, f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{Token: token, Password: "newpass2"}))

	u, _ = f.users.GetUserByID(ctx, sess.User.ID)
	require.Nil(t, u.ResetTokenHash)
	require.Nil(t, u.ResetTokenExpiry)

	err := f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{Token: token, Password: "another3"})
	require.True(t, authErrors.IsInvalidResetToken(err), "token must be single use")

	_, err = f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: "secret1"})
	require.True(t, authErrors.IsInvalidCredentials(err))
	_, err = f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: "newpass2"})
	require.NoError(t, err)
}

func TestAuthService_ResetExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ann", "ann@example.com", "secret1")

	require.NoError(t, f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"}))
	token := tokenFromMail(t, f.sender.last())

	*f.clock = f.clock.Add(time.Hour + time.Second)

	err := f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{Token: token, Password: "newpass2"})
	require.True(t, authErrors.IsInvalidResetToken(err))
}

func TestAuthService_ResetInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{Token: "", Password: "newpass2"})
	require.True(t, authErrors.IsInvalidArgument(err))

	err = f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{Token: strings.Repeat("a", 64), Password: "newpass2"})
	require.True(t, authErrors.IsInvalidResetToken(err))

	err = f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{Token: strings.Repeat("a", 64), Password: "weak"})
	require.True(t, authErrors.IsInvalidArgument(err))
}

func TestAuthService_ForgotSendFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.register(t, "ann", "ann@example.com", "secret1")

	f.sender.fail = errors.New("smtp: 535 authentication failed")
	err := f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"})
	require.True(t, authErrors.IsEmailDelivery(err))

	u, _ := f.users.GetUserByID(ctx, sess.User.ID)
	require.Nil(t, u.ResetTokenHash)
	require.Nil(t, u.ResetTokenExpiry)

	// the throttle slot is returned, so a retry is not rejected
	f.sender.fail = nil
	require.NoError(t, f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"}))
}

func TestAuthService_ForgotSendTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.register(t, "ann", "ann@example.com", "secret1")

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	f.sender.block = true

	err := f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"})
	require.True(t, authErrors.IsEmailDelivery(err))

	u, _ := f.users.GetUserByID(context.Background(), sess.User.ID)
	require.Nil(t, u.ResetTokenHash)
}

func TestAuthService_ForgotThrottled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ann", "ann@example.com", "secret1")

	require.NoError(t, f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"}))
	err := f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"})
	require.True(t, authErrors.IsTooManyRequests(err))
	require.Len(t, f.sender.sent, 1)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.register(t, "ann", "ann@example.com", "secret1")
	f.register(t, "bob", "bob@example.com", "secret1")

	name, bio, pic := "annie", "hello there", "https://cdn.example.com/ann.png"
	p, err := f.svc.UpdateProfile(ctx, ann.User.ID, dto.UpdateProfileDTO{
		Username: &name, Bio: &bio, ProfilePicture: &pic,
	})
	require.NoError(t, err)
	require.Equal(t, "annie", p.Username)
	require.Equal(t, "hello there", p.Bio)
	require.Equal(t, pic, p.ProfilePicture)
	require.Equal(t, "ann@example.com", p.Email)

	taken := "bob"
	_, err = f.svc.UpdateProfile(ctx, ann.User.ID, dto.UpdateProfileDTO{Username: &taken})
	require.True(t, authErrors.IsAlreadyExists(err))

	takenEmail := "BOB@example.com"
	_, err = f.svc.UpdateProfile(ctx, ann.User.ID, dto.UpdateProfileDTO{Email: &takenEmail})
	require.True(t, authErrors.IsAlreadyExists(err))

	// unchanged username is not a conflict with itself
	same := "annie"
	_, err = f.svc.UpdateProfile(ctx, ann.User.ID, dto.UpdateProfileDTO{Username: &same})
	require.NoError(t, err)

	pwd := "changed9"
	_, err = f.svc.UpdateProfile(ctx, ann.User.ID, dto.UpdateProfileDTO{Password: &pwd})
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: "changed9"})
	require.NoError(t, err)

	long := strings.Repeat("x", 501)
	_, err = f.svc.UpdateProfile(ctx, ann.User.ID, dto.UpdateProfileDTO{Bio: &long})
	require.True(t, authErrors.IsInvalidArgument(err))

	_, err = f.svc.UpdateProfile(ctx, uuid.New(), dto.UpdateProfileDTO{Bio: &bio})
	require.True(t, authErrors.IsNotFound(err))
}

func TestAuthService_UpdateProfileKeepsConcurrentReset(t *testing.T) {
	var hooked *hookedUserRepo
	f := newFixtureWith(t, func(f *fixture, d *appsvc.Deps) {
		hooked = &hookedUserRepo{userRepoStub: f.users}
		d.Users = hooked
	})
	ctx := context.Background()
	f.register(t, "ann", "ann@example.com", "secret1")

	require.NoError(t, f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"}))
	token := tokenFromMail(t, f.sender.last())

	var once sync.Once
	hooked.onUsername = func() {
		once.Do(func() {
			require.NoError(t, f.svc.ResetPassword(ctx, dto.ResetPasswordDTO{Token: token, Password: "newpass2"}))
		})
	}

	name := "annie"
	p, err := f.svc.UpdateProfile(ctx, f.mustID(t, "ann@example.com"), dto.UpdateProfileDTO{Username: &name})
	require.NoError(t, err)
	require.Equal(t, "annie", p.Username)

	_, err = f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: "newpass2"})
	require.NoError(t, err, "reset password must survive the profile update")
	_, err = f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: "secret1"})
	require.True(t, authErrors.IsInvalidCredentials(err))
}

func TestAuthService_NoPasswordInLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const pwd = "Sup3rSecretPwd"

	f.register(t, "ann", "ann@example.com", pwd)
	_, _ = f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: pwd})
	_, _ = f.svc.Login(ctx, dto.LoginDTO{Email: "ann@example.com", Password: pwd + "x"})
	f.sender.fail = errors.New("boom")
	_ = f.svc.ForgotPassword(ctx, dto.ForgotPasswordDTO{Email: "ann@example.com"})

	require.NotZero(t, f.logs.Len())
	for _, e := range f.logs.All() {
		require.NotContains(t, e.Message, pwd)
		for k, v := range e.ContextMap() {
			require.NotContains(t, k, pwd)
			if s, ok := v.(string); ok {
				require.NotContains(t, s, pwd)
				require.NotContains(t, s, "ann@example.com")
			}
		}
	}
}
