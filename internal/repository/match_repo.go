package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sengunthar/matrimony/internal/db"
)

// MatchRepository provides data access for match requests and matches.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// WithTx returns a copy of the repository that runs on tx.
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// CreateRequest inserts a pending request. A second request for the same
// ordered pair surfaces as gorm.ErrDuplicatedKey.
func (r *MatchRepository) CreateRequest(ctx context.Context, req *db.MatchRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// RequestExists checks the ordered pair only; the reverse direction is a
// different pair.
func (r *MatchRepository) RequestExists(ctx context.Context, senderID, receiverID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.MatchRequest{}).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Count(&count).Error
	return count > 0, err
}

func (r *MatchRepository) GetRequest(ctx context.Context, id uint64) (*db.MatchRequest, error) {
	var req db.MatchRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// Respond moves a pending request addressed to receiverID into status.
//
// Behavior:
//   - Conditional on id, receiver and status = pending in one statement.
//   - Returns rows affected; zero means not found, not the receiver's, or
//     already answered. Concurrent responders cannot both see 1.
func (r *MatchRepository) Respond(
	ctx context.Context,
	id, receiverID uint64,
	status db.RequestStatus,
	at time.Time,
) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.MatchRequest{}).
		Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, db.RequestPending).
		Updates(map[string]any{"status": status, "responded_at": at})
	return res.RowsAffected, res.Error
}

// LatestBetween returns the most recent request in either direction, or
// nil when the pair never exchanged one.
func (r *MatchRepository) LatestBetween(ctx context.Context, a, b uint64) (*db.MatchRequest, error) {
	var req db.MatchRequest
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at DESC, id DESC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateMatch inserts the unordered pair if absent and reports whether a
// row was created.
func (r *MatchRepository) CreateMatch(ctx context.Context, a, b uint64) (bool, error) {
	lo, hi := db.OrderedPair(a, b)
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
			DoNothing: true,
		}).
		Create(&db.Match{UserA: lo, UserB: hi})
	return res.RowsAffected > 0, res.Error
}

func (r *MatchRepository) MatchExists(ctx context.Context, a, b uint64) (bool, error) {
	lo, hi := db.OrderedPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_a = ? AND user_b = ?", lo, hi).
		Count(&count).Error
	return count > 0, err
}

// IncomingRequest is a pending request joined with its sender's card.
type IncomingRequest struct {
	ID           uint64
	SenderID     uint64
	Status       db.RequestStatus
	CreatedAt    time.Time
	SenderName   string
	ProfilePhoto string
}

// IncomingPending lists pending requests addressed to receiverID, newest first.
func (r *MatchRepository) IncomingPending(ctx context.Context, receiverID uint64) ([]IncomingRequest, error) {
	var rows []IncomingRequest
	err := r.db.WithContext(ctx).
		Table("match_requests mr").
		Select("mr.id, mr.sender_id, mr.status, mr.created_at, u.name AS sender_name, u.profile_photo").
		Joins("JOIN users u ON u.id = mr.sender_id").
		Where("mr.receiver_id = ? AND mr.status = ?", receiverID, db.RequestPending).
		Order("mr.created_at DESC, mr.id DESC").
		Scan(&rows).Error
	return rows, err
}

// DeleteForUser drops every request and match the user takes part in.
func (r *MatchRepository) DeleteForUser(ctx context.Context, userID uint64) error {
	err := r.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&db.MatchRequest{}).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("user_a = ? OR user_b = ?", userID, userID).
		Delete(&db.Match{}).Error
}
