package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/db"
	"github.com/sengunthar/matrimony/internal/utils/pagination"
)

// UserRepository provides data access for member accounts and their
// uploaded documents.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// WithTx returns a copy of the repository that runs on tx.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Create inserts a user. A taken email surfaces as gorm.ErrDuplicatedKey.
func (r *UserRepository) Create(ctx context.Context, u *db.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) CreateDocs(ctx context.Context, docs []db.UserDoc) error {
	if len(docs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&docs).Error
}

// GetByID returns gorm.ErrRecordNotFound when the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetActiveByID is GetByID restricted to active users.
func (r *UserRepository) GetActiveByID(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, db.UserActive).
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// Activate flips pending -> active. It returns the number of rows changed,
// zero when the user is missing or already active.
func (r *UserRepository) Activate(ctx context.Context, id uint64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ? AND status = ?", id, db.UserPending).
		Update("status", db.UserActive)
	return res.RowsAffected, res.Error
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

// ListPending returns users awaiting approval, oldest first.
func (r *UserRepository) ListPending(ctx context.Context) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("status = ?", db.UserPending).
		Order("created_at ASC, id ASC").
		Find(&users).Error
	return users, err
}

// ListActive returns active users other than excludeID.
//
// Behavior:
//   - Ordered by created_at DESC, id DESC (newest profiles first).
//   - Supports cursor-based pagination via paginationToken.
//   - Returns pagination.ErrInvalidToken for a malformed token.
func (r *UserRepository) ListActive(
	ctx context.Context,
	excludeID uint64,
	paginationToken string,
	limit int,
) ([]db.User, *string, error) {
	cursor, err := pagination.Decode(paginationToken)
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("status = ? AND id <> ?", db.UserActive, excludeID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var users []db.User
	if err := query.Find(&users).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(users) > limit {
		last := users[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		users = users[:limit]
	}

	return users, nextToken, nil
}

// WarnCandidates returns active users whose last login falls in
// [deleteBefore, notifyBefore). Users older than deleteBefore belong to
// the delete set instead.
func (r *UserRepository) WarnCandidates(ctx context.Context, deleteBefore, notifyBefore time.Time) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_login_at >= ? AND last_login_at < ?", db.UserActive, deleteBefore, notifyBefore).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// DeleteCandidates returns every user, pending or active, whose last login
// is older than deleteBefore.
func (r *UserRepository) DeleteCandidates(ctx context.Context, deleteBefore time.Time) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("last_login_at < ?", deleteBefore).
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// DeleteInactive removes the user only if still past deleteBefore, so a
// login that lands between selection and delete saves the account.
func (r *UserRepository) DeleteInactive(ctx context.Context, id uint64, deleteBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND last_login_at < ?", id, deleteBefore).
		Delete(&db.User{})
	return res.RowsAffected, res.Error
}

func (r *UserRepository) DocsFor(ctx context.Context, userID uint64) ([]db.UserDoc, error) {
	var docs []db.UserDoc
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&docs).Error
	return docs, err
}

func (r *UserRepository) DeleteDocs(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&db.UserDoc{}).Error
}

// IsNotFound reports whether err is a lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique-index violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
