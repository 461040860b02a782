package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/app"
	"github.com/sengunthar/matrimony/internal/db"
	svcErr "github.com/sengunthar/matrimony/internal/errors"
	"github.com/sengunthar/matrimony/internal/repository"
)

// View is the client-facing shape of a notification.
type View struct {
	ID        uint64              `json:"id"`
	Type      db.NotificationType `json:"type"`
	Message   string              `json:"message"`
	Payload   json.RawMessage     `json:"payload,omitempty"`
	IsRead    bool                `json:"is_read"`
	CreatedAt time.Time           `json:"created_at"`
}

func ToView(n db.Notification) View {
	v := View{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
	if len(n.Payload) > 0 && string(n.Payload) != "{}" {
		v.Payload = json.RawMessage(n.Payload)
	}
	return v
}

// Publisher pushes committed notifications to connected clients.
type Publisher interface {
	Publish(userID uint64, v View)
}

// Sink is the per-user append-only inbox.
//
// Writes happen inside the caller's transaction through Post so that a
// notification exists iff the triggering change committed. Publish is
// called by the caller after commit.
type Sink struct {
	appCtx *app.AppContext
	repo   *repository.NotificationRepository
	pub    Publisher
}

// NewSink wires the sink. pub may be nil.
func NewSink(appCtx *app.AppContext, pub Publisher) *Sink {
	return &Sink{
		appCtx: appCtx,
		repo:   repository.NewNotificationRepository(appCtx.DB),
		pub:    pub,
	}
}

// Post appends a notification on tx. payload is marshalled to a JSON
// object; nil becomes "{}".
func (s *Sink) Post(
	ctx context.Context,
	tx *gorm.DB,
	userID uint64,
	typ db.NotificationType,
	message string,
	payload any,
) (db.Notification, error) {
	raw := []byte("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return db.Notification{}, svcErr.Internal(err)
		}
		raw = b
	}

	n := db.Notification{
		UserID:  userID,
		Type:    typ,
		Message: message,
		Payload: datatypes.JSON(raw),
	}
	if err := s.repo.WithTx(tx).Create(ctx, &n); err != nil {
		return db.Notification{}, err
	}
	return n, nil
}

// Publish fans committed notifications out to live connections. Delivery
// is best-effort; the stored row is the source of truth.
func (s *Sink) Publish(notes ...db.Notification) {
	if s.pub == nil {
		return
	}
	for _, n := range notes {
		s.pub.Publish(n.UserID, ToView(n))
	}
}

// ListFor returns every notification of userID, newest first.
func (s *Sink) ListFor(ctx context.Context, userID uint64) ([]View, error) {
	notes, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.log().Error("ListByUser failed", "user_id", userID, "err", err)
		return nil, svcErr.Internal(err)
	}

	views := make([]View, 0, len(notes))
	for _, n := range notes {
		views = append(views, ToView(n))
	}
	return views, nil
}

// MarkRead flips is_read. An id that does not belong to userID is a
// silent no-op.
func (s *Sink) MarkRead(ctx context.Context, id, userID uint64) error {
	n, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		s.log().Error("MarkRead failed", "id", id, "user_id", userID, "err", err)
		return svcErr.Internal(err)
	}
	s.log().Debug("MarkRead", "id", id, "user_id", userID, "changed", n)
	return nil
}

func (s *Sink) UnreadCount(ctx context.Context, userID uint64) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, svcErr.Internal(err)
	}
	return count, nil
}

func (s *Sink) log() *slog.Logger {
	return s.appCtx.Logger.With("service", "notify")
}
