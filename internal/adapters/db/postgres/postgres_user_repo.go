package postgres

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/Morphiu/Squad-Yangu/internal/domain/auth/errors"
	"github.com/Morphiu/Squad-Yangu/internal/domain/auth/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type PostgresUserRepo struct {
	db *gorm.DB
}

func NewPostgresUserRepo(db *gorm.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (p *PostgresUserRepo) CreateUser(ctx context.Context, user model.User) (uuid.UUID, error) {
	res := p.db.WithContext(ctx).Create(&user)
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, customErrors.ErrAlreadyExists
		}
		return uuid.Nil, customErrors.WrapInternal(err, "CreateUser")
	}
	return user.ID, nil
}

func (p *PostgresUserRepo) first(ctx context.Context, op string, query string, args ...any) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where(query, args...).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, op)
	}

	return u, nil
}

func (p *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return p.first(ctx, "GetUserByEmail", "email = ?", email)
}

func (p *PostgresUserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return p.first(ctx, "GetUserByID", "id = ?", id)
}

func (p *PostgresUserRepo) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	return p.first(ctx, "GetUserByUsername", "username = ?", username)
}

func (p *PostgresUserRepo) GetUserByResetTokenHash(ctx context.Context, hash string, now time.Time) (model.User, error) {
	return p.first(ctx, "GetUserByResetTokenHash",
		"reset_token_hash = ? AND reset_token_expiry > ?", hash, now.UTC())
}

func (p *PostgresUserRepo) UpdateProfile(ctx context.Context, user model.User, passwordHash string) error {
	cols := map[string]any{
		"username":        user.Username,
		"email":           user.Email,
		"bio":             user.Bio,
		"profile_picture": user.ProfilePicture,
		"updated_at":      time.Now().UTC(),
	}
	if passwordHash != "" {
		cols["password_hash"] = passwordHash
	}

	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(cols)
	return p.checkUpdate(res, "UpdateProfile")
}

func (p *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash": passwordHash,
			"updated_at":    time.Now().UTC(),
		})
	return p.checkUpdate(res, "UpdatePasswordHash")
}

func (p *PostgresUserRepo) SetResetToken(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_token_hash":   hash,
			"reset_token_expiry": expiresAt.UTC(),
		})
	return p.checkUpdate(res, "SetResetToken")
}

func (p *PostgresUserRepo) ClearResetToken(ctx context.Context, id uuid.UUID) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"reset_token_hash":   nil,
			"reset_token_expiry": nil,
		})
	return p.checkUpdate(res, "ClearResetToken")
}

// ConsumeResetToken only touches the row while the token is still the
// current, unexpired one, so of two concurrent resets exactly one wins.
func (p *PostgresUserRepo) ConsumeResetToken(
	ctx context.Context,
	id uuid.UUID,
	tokenHash, passwordHash string,
	now time.Time,
) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND reset_token_hash = ? AND reset_token_expiry > ?", id, tokenHash, now.UTC()).
		Updates(map[string]any{
			"password_hash":      passwordHash,
			"reset_token_hash":   nil,
			"reset_token_expiry": nil,
			"updated_at":         now.UTC(),
		})
	return p.checkUpdate(res, "ConsumeResetToken")
}

func (p *PostgresUserRepo) checkUpdate(res *gorm.DB, op string) error {
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return customErrors.ErrAlreadyExists
		}
		return customErrors.WrapInternal(err, op)
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}
	return nil
}

// Ping reports whether the database answers.
func (p *PostgresUserRepo) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
