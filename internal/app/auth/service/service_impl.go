package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/Morphiu/Squad-Yangu/internal/adapters/transport/http/dto"
	"github.com/Morphiu/Squad-Yangu/internal/app/auth/reset"
	customErrors "github.com/Morphiu/Squad-Yangu/internal/domain/auth/errors"
	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/jwt"
	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/model"
	repo "github.com/Morphiu/Squad-Yangu/internal/domain/auth/repo"
	"github.com/Morphiu/Squad-Yangu/internal/infra/config"
	applog "github.com/Morphiu/Squad-Yangu/internal/infra/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Hasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, hash string) (bool, error)
	NeedsRehash(hash string) bool
}

type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

type Service interface {
	Register(context.Context, dto.RegisterDTO) (model.Session, error)
	Login(context.Context, dto.LoginDTO) (model.Session, error)
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
	Profile(ctx context.Context, id uuid.UUID) (model.PublicUser, error)
	ForgotPassword(context.Context, dto.ForgotPasswordDTO) error
	ResetPassword(context.Context, dto.ResetPasswordDTO) error
	UpdateProfile(ctx context.Context, id uuid.UUID, in dto.UpdateProfileDTO) (model.PublicUser, error)
}

// Deps are the collaborators of the auth service. Throttle may be nil.
type Deps struct {
	Users    repo.UserRepo
	Throttle repo.ResetThrottle
	Tokens   jwt.TokenIssuer
	Hasher   Hasher
	Resets   *reset.Manager
	Sender   Sender
	Now      func() time.Time
}

type authService struct {
	users    repo.UserRepo
	throttle repo.ResetThrottle
	tokens   jwt.TokenIssuer
	hasher   Hasher
	resets   *reset.Manager
	sender   Sender
	now      func() time.Time

	cfg *config.Config
	v   *validator.Validate
	log *zap.Logger

	dummyMu   sync.Mutex
	dummyHash string
}

func New(d Deps, cfg *config.Config, v *validator.Validate, log *zap.Logger) Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &authService{
		users: d.Users, throttle: d.Throttle, tokens: d.Tokens, hasher: d.Hasher,
		resets: d.Resets, sender: d.Sender, now: d.Now,
		cfg: cfg, v: v, log: log,
	}
}

func (a *authService) Register(ctx context.Context, in dto.RegisterDTO) (model.Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)

	if err := a.v.Struct(in); err != nil {
		return model.Session{}, customErrors.NewInvalidArgument(describe(err))
	}

	if err := a.ensureFree(ctx, in.Email, in.Username); err != nil {
		return model.Session{}, err
	}

	passwordHash, err := a.hasher.Hash(ctx, in.Password)
	if err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "Register")
	}

	user := model.User{
		ID:           uuid.New(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: passwordHash,
	}
	if _, err = a.users.CreateUser(ctx, user); err != nil {
		if customErrors.IsAlreadyExists(err) {
			return model.Session{}, customErrors.ErrAlreadyExists
		}
		return model.Session{}, customErrors.WrapInternal(err, "Register")
	}

	// CreatedAt is assigned by the store; reload so the view carries it.
	if stored, err := a.users.GetUserByID(ctx, user.ID); err == nil {
		user = stored
	}

	a.log.Info("user registered", zap.String("user_id", user.ID.String()))
	return a.issueSession(user)
}

func (a *authService) Login(ctx context.Context, in dto.LoginDTO) (model.Session, error) {
	in.Email = normalizeEmail(in.Email)

	if err := a.v.Struct(in); err != nil {
		return model.Session{}, customErrors.NewInvalidArgument(describe(err))
	}

	user, err := a.users.GetUserByEmail(ctx, in.Email)
	switch {
	case customErrors.IsNotFound(err):
		a.burnVerify(ctx, in.Password)
		return model.Session{}, customErrors.ErrInvalidCredentials
	case err != nil:
		return model.Session{}, customErrors.WrapInternal(err, "Login")
	}

	ok, err := a.hasher.Verify(ctx, in.Password, user.PasswordHash)
	if err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "Login")
	}
	if !ok {
		return model.Session{}, customErrors.ErrInvalidCredentials
	}

	if a.hasher.NeedsRehash(user.PasswordHash) {
		a.upgradeHash(ctx, user.ID, in.Password)
	}

	return a.issueSession(user)
}

func (a *authService) Authenticate(_ context.Context, token string) (uuid.UUID, error) {
	if strings.TrimSpace(token) == "" {
		return uuid.Nil, customErrors.ErrInvalidToken
	}
	uid, err := a.tokens.Verify(token)
	if err != nil {
		return uuid.Nil, customErrors.ErrInvalidToken
	}
	return uid, nil
}

func (a *authService) Profile(ctx context.Context, id uuid.UUID) (model.PublicUser, error) {
	user, err := a.users.GetUserByID(ctx, id)
	switch {
	case customErrors.IsNotFound(err):
		return model.PublicUser{}, customErrors.ErrNotFound
	case err != nil:
		return model.PublicUser{}, customErrors.WrapInternal(err, "Profile")
	}
	return user.Public(), nil
}

func (a *authService) ForgotPassword(ctx context.Context, in dto.ForgotPasswordDTO) error {
	in.Email = normalizeEmail(in.Email)

	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument(describe(err))
	}

	user, err := a.users.GetUserByEmail(ctx, in.Email)
	switch {
	case customErrors.IsNotFound(err):
		return customErrors.ErrNotFound
	case err != nil:
		return customErrors.WrapInternal(err, "ForgotPassword")
	}

	throttleKey := "reset:" + user.ID.String()
	if a.throttle != nil {
		acquired, err := a.throttle.Acquire(ctx, throttleKey, a.cfg.ResetCooldown)
		switch {
		case err != nil:
			// a broken throttle must not block password recovery
			a.log.Warn("reset throttle unavailable", zap.Error(err))
		case !acquired:
			return customErrors.ErrTooManyRequests
		}
	}

	tok, err := a.resets.Generate()
	if err != nil {
		a.releaseThrottle(ctx, throttleKey)
		return err
	}

	if err := a.users.SetResetToken(ctx, user.ID, tok.Hash, tok.ExpiresAt); err != nil {
		a.releaseThrottle(ctx, throttleKey)
		return customErrors.WrapInternal(err, "SetResetToken")
	}

	html, err := renderResetEmail(a.cfg.ClientURL, user.Email, tok.Plain, a.cfg.ResetTokenTTL)
	if err == nil {
		err = a.send(ctx, user.Email, resetSubject, html)
	}
	if err != nil {
		a.rollbackReset(ctx, user.ID, throttleKey)
		a.log.Error("password reset email failed",
			applog.Email("user", user.Email),
			zap.Error(err),
		)
		return customErrors.WrapEmailDelivery(err)
	}

	a.log.Info("password reset email sent", applog.Email("user", user.Email))
	return nil
}

func (a *authService) ResetPassword(ctx context.Context, in dto.ResetPasswordDTO) error {
	in.Token = strings.TrimSpace(in.Token)

	if err := a.v.Struct(in); err != nil {
		return customErrors.NewInvalidArgument(describe(err))
	}

	user, err := a.resets.Validate(ctx, in.Token)
	if err != nil {
		return err
	}

	passwordHash, err := a.hasher.Hash(ctx, in.Password)
	if err != nil {
		return customErrors.WrapInternal(err, "ResetPassword")
	}

	err = a.users.ConsumeResetToken(ctx, user.ID, reset.Hash(in.Token), passwordHash, a.now().UTC())
	switch {
	case customErrors.IsNotFound(err):
		return customErrors.ErrInvalidResetToken
	case err != nil:
		return customErrors.WrapInternal(err, "ConsumeResetToken")
	}

	a.log.Info("password reset", zap.String("user_id", user.ID.String()))
	return nil
}

func (a *authService) UpdateProfile(ctx context.Context, id uuid.UUID, in dto.UpdateProfileDTO) (model.PublicUser, error) {
	if in.Username != nil {
		trimmed := strings.TrimSpace(*in.Username)
		in.Username = &trimmed
	}
	if in.Email != nil {
		normalized := normalizeEmail(*in.Email)
		in.Email = &normalized
	}

	if err := a.v.Struct(in); err != nil {
		return model.PublicUser{}, customErrors.NewInvalidArgument(describe(err))
	}

	user, err := a.users.GetUserByID(ctx, id)
	switch {
	case customErrors.IsNotFound(err):
		return model.PublicUser{}, customErrors.ErrNotFound
	case err != nil:
		return model.PublicUser{}, customErrors.WrapInternal(err, "UpdateProfile")
	}

	var newEmail, newUsername string
	if in.Email != nil && *in.Email != "" && *in.Email != user.Email {
		newEmail = *in.Email
	}
	if in.Username != nil && *in.Username != "" && *in.Username != user.Username {
		newUsername = *in.Username
	}
	if err := a.ensureFree(ctx, newEmail, newUsername); err != nil {
		return model.PublicUser{}, err
	}
	if newEmail != "" {
		user.Email = newEmail
	}
	if newUsername != "" {
		user.Username = newUsername
	}
	if in.Bio != nil {
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.ProfilePicture != nil {
		user.ProfilePicture = strings.TrimSpace(*in.ProfilePicture)
	}
	var newPasswordHash string
	if in.Password != nil && *in.Password != "" {
		if newPasswordHash, err = a.hasher.Hash(ctx, *in.Password); err != nil {
			return model.PublicUser{}, customErrors.WrapInternal(err, "UpdateProfile")
		}
	}

	err = a.users.UpdateProfile(ctx, user, newPasswordHash)
	switch {
	case customErrors.IsAlreadyExists(err):
		return model.PublicUser{}, customErrors.ErrAlreadyExists
	case customErrors.IsNotFound(err):
		return model.PublicUser{}, customErrors.ErrNotFound
	case err != nil:
		return model.PublicUser{}, customErrors.WrapInternal(err, "UpdateProfile")
	}

	return user.Public(), nil
}

// ensureFree fails with ErrAlreadyExists when email or username is taken.
// Empty arguments are skipped.
func (a *authService) ensureFree(ctx context.Context, email, username string) error {
	if email != "" {
		_, err := a.users.GetUserByEmail(ctx, email)
		switch {
		case err == nil:
			return customErrors.ErrAlreadyExists
		case !customErrors.IsNotFound(err):
			return customErrors.WrapInternal(err, "GetUserByEmail")
		}
	}
	if username != "" {
		_, err := a.users.GetUserByUsername(ctx, username)
		switch {
		case err == nil:
			return customErrors.ErrAlreadyExists
		case !customErrors.IsNotFound(err):
			return customErrors.WrapInternal(err, "GetUserByUsername")
		}
	}
	return nil
}

func (a *authService) issueSession(user model.User) (model.Session, error) {
	token, exp, err := a.tokens.Issue(user.ID)
	if err != nil {
		return model.Session{}, customErrors.WrapInternal(err, "Issue")
	}
	return model.Session{User: user.Public(), Token: token, ExpiresAt: exp}, nil
}

// burnVerify runs one hash verification against a throwaway hash so an
// unknown email costs about as much as a wrong password.
func (a *authService) burnVerify(ctx context.Context, plain string) {
	if h := a.throwawayHash(ctx); h != "" {
		_, _ = a.hasher.Verify(ctx, plain, h)
	}
}

// throwawayHash builds the hash on first use and retries on later calls
// if that failed. It does not inherit the caller's cancellation.
func (a *authService) throwawayHash(ctx context.Context) string {
	a.dummyMu.Lock()
	defer a.dummyMu.Unlock()
	if a.dummyHash != "" {
		return a.dummyHash
	}

	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	h, err := a.hasher.Hash(context.WithoutCancel(ctx), hex.EncodeToString(buf))
	if err != nil {
		a.log.Warn("dummy hash", zap.Error(err))
		return ""
	}
	a.dummyHash = h
	return h
}

func (a *authService) upgradeHash(ctx context.Context, id uuid.UUID, plain string) {
	h, err := a.hasher.Hash(ctx, plain)
	if err == nil {
		err = a.users.UpdatePasswordHash(ctx, id, h)
	}
	if err != nil {
		a.log.Warn("password rehash failed", zap.String("user_id", id.String()), zap.Error(err))
		return
	}
	a.log.Info("password hash upgraded", zap.String("user_id", id.String()))
}

func (a *authService) send(ctx context.Context, to, subject, html string) error {
	timeout := a.cfg.EmailSendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.sender.Send(sendCtx, to, subject, html)
}

// rollbackReset undoes a reset request whose email never left. It runs
// even when the request context is already gone.
func (a *authService) rollbackReset(ctx context.Context, id uuid.UUID, throttleKey string) {
	ctx = context.WithoutCancel(ctx)
	if err := a.users.ClearResetToken(ctx, id); err != nil {
		a.log.Error("clear reset token", zap.String("user_id", id.String()), zap.Error(err))
	}
	a.releaseThrottle(ctx, throttleKey)
}

func (a *authService) releaseThrottle(ctx context.Context, key string) {
	if a.throttle == nil {
		return
	}
	if err := a.throttle.Release(context.WithoutCancel(ctx), key); err != nil {
		a.log.Warn("release reset throttle", zap.Error(err))
	}
}
