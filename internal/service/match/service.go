package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/app"
	"github.com/sengunthar/matrimony/internal/db"
	svcErr "github.com/sengunthar/matrimony/internal/errors"
	"github.com/sengunthar/matrimony/internal/repository"
	"github.com/sengunthar/matrimony/internal/service/notify"
	"github.com/sengunthar/matrimony/internal/storage"
	"github.com/sengunthar/matrimony/internal/utils/pagination"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Decision is the receiver's answer to a request.
type Decision string

const (
	Accept Decision = "accept"
	Reject Decision = "reject"
)

// Service implements the match-request workflow on top of the repository
// layer. Per ordered pair:
//
//	none --SendRequest--> pending --Accept--> accepted (creates the Match)
//	                      pending --Reject--> rejected
//
// Both answers are terminal.
type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	matches *repository.MatchRepository
	sink    *notify.Sink
	store   storage.Store
	now     func() time.Time
}

// NewService creates the match service. store is only used to render photo
// URLs and may be nil.
func NewService(appCtx *app.AppContext, sink *notify.Sink, store storage.Store) *Service {
	return &Service{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		matches: repository.NewMatchRepository(appCtx.DB),
		sink:    sink,
		store:   store,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// SendRequest proposes a match from sender to receiver.
//
// Behavior:
//   - ErrSelfRequest when both ids are equal.
//   - ErrProfileNotFound unless the receiver exists and is active.
//   - ErrAccountNotActive unless the sender is active.
//   - ErrDuplicateRequest when this ordered pair already has a request in
//     any status. The reverse direction is not checked.
//   - The request and the receiver's match_request notification commit
//     together.
func (s *Service) SendRequest(ctx context.Context, senderID, receiverID uint64) (*db.MatchRequest, error) {
	s.log().Debug("SendRequest called", "sender", senderID, "receiver", receiverID)

	if senderID == receiverID {
		return nil, svcErr.ErrSelfRequest
	}

	if _, err := s.users.GetActiveByID(ctx, receiverID); err != nil {
		if repository.IsNotFound(err) {
			return nil, svcErr.ErrProfileNotFound
		}
		return nil, svcErr.Internal(err)
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if repository.IsNotFound(err) {
		return nil, svcErr.ErrUserNotFound
	}
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	if sender.Status != db.UserActive {
		return nil, svcErr.ErrAccountNotActive
	}

	exists, err := s.matches.RequestExists(ctx, senderID, receiverID)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	if exists {
		return nil, svcErr.ErrDuplicateRequest
	}

	req := &db.MatchRequest{SenderID: senderID, ReceiverID: receiverID, Status: db.RequestPending}
	var note db.Notification
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.matches.WithTx(tx).CreateRequest(ctx, req); err != nil {
			return err
		}
		var err error
		note, err = s.sink.Post(ctx, tx, receiverID, db.NotifyMatchRequest,
			fmt.Sprintf("%s sent you a match request!", sender.Name),
			map[string]any{"request_id": req.ID, "sender_id": senderID},
		)
		return err
	})
	if err != nil {
		// the unique index settles concurrent duplicates
		if repository.IsDuplicate(err) {
			return nil, svcErr.ErrDuplicateRequest
		}
		s.log().Error("SendRequest failed", "sender", senderID, "receiver", receiverID, "err", err)
		return nil, svcErr.Internal(err)
	}

	s.sink.Publish(note)
	return req, nil
}

// RespondResult reports the outcome of Respond.
type RespondResult struct {
	Status db.RequestStatus
	// MatchCreated is false on accept when the pair was already matched
	// through the opposite request.
	MatchCreated bool
}

// Respond lets the receiver accept or reject a pending request.
//
// Behavior:
//   - A single conditional update on (id, receiver, pending) decides the
//     winner; everyone else gets ErrRequestNotFound. This covers unknown
//     ids, other users' requests and already answered ones.
//   - Accept also creates the Match (if absent) and notifies both members
//     with each other's contact details, all in the same transaction.
//   - Reject only stamps the request.
func (s *Service) Respond(ctx context.Context, requestID, responderID uint64, decision Decision) (*RespondResult, error) {
	s.log().Debug("Respond called", "request", requestID, "responder", responderID, "decision", decision)

	status := db.RequestRejected
	switch decision {
	case Accept:
		status = db.RequestAccepted
	case Reject:
	default:
		return nil, svcErr.Validation("decision must be accept or reject")
	}

	result := &RespondResult{Status: status}
	var notes []db.Notification

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := s.matches.WithTx(tx)

		n, err := matches.Respond(ctx, requestID, responderID, status, s.now())
		if err != nil {
			return err
		}
		if n == 0 {
			return svcErr.ErrRequestNotFound
		}
		if status != db.RequestAccepted {
			return nil
		}

		req, err := matches.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if result.MatchCreated, err = matches.CreateMatch(ctx, req.SenderID, req.ReceiverID); err != nil {
			return err
		}

		users := s.users.WithTx(tx)
		sender, err := users.GetByID(ctx, req.SenderID)
		if err != nil {
			return err
		}
		receiver, err := users.GetByID(ctx, req.ReceiverID)
		if err != nil {
			return err
		}

		toSender, err := s.sink.Post(ctx, tx, sender.ID, db.NotifyMatchAccepted,
			fmt.Sprintf("Great news! %s accepted your match request. Contact: %s", receiver.Name, contactOf(receiver)),
			contactPayload(receiver),
		)
		if err != nil {
			return err
		}
		toReceiver, err := s.sink.Post(ctx, tx, receiver.ID, db.NotifyMatchMade,
			fmt.Sprintf("You accepted %s's request. Contact: %s", sender.Name, contactOf(sender)),
			contactPayload(sender),
		)
		if err != nil {
			return err
		}
		notes = append(notes, toSender, toReceiver)
		return nil
	})
	if err != nil {
		if errors.Is(err, svcErr.ErrRequestNotFound) {
			return nil, svcErr.ErrRequestNotFound
		}
		s.log().Error("Respond failed", "request", requestID, "err", err)
		return nil, svcErr.Internal(err)
	}

	s.sink.Publish(notes...)
	s.log().Info("match request answered", "request", requestID, "status", status, "match_created", result.MatchCreated)
	return result, nil
}

func contactPayload(u *db.User) map[string]any {
	return map[string]any{
		"user_id": u.ID,
		"name":    u.Name,
		"contact": contactOf(u),
	}
}

// ProfileView returns target's profile as seen by viewer.
//
// Precedence for the relationship fields:
//  1. a Match exists: "matched", contact disclosed, no new request;
//  2. any request in either direction: the latest one's status, no new request;
//  3. otherwise: nil status, a request may be sent.
//
// Looking at one's own profile discloses nothing and never offers a request.
func (s *Service) ProfileView(ctx context.Context, viewerID, targetID uint64) (*ProfileDetail, error) {
	target, err := s.users.GetActiveByID(ctx, targetID)
	if repository.IsNotFound(err) {
		return nil, svcErr.ErrProfileNotFound
	}
	if err != nil {
		return nil, svcErr.Internal(err)
	}

	view := s.toDetail(target)
	if viewerID == targetID {
		return view, nil
	}

	matched, err := s.matches.MatchExists(ctx, viewerID, targetID)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	if matched {
		st := StatusMatched
		c := contactOf(target)
		view.MatchStatus = &st
		view.ContactDetails = &c
		return view, nil
	}

	latest, err := s.matches.LatestBetween(ctx, viewerID, targetID)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	if latest != nil {
		st := string(latest.Status)
		view.MatchStatus = &st
		return view, nil
	}

	view.CanSendRequest = true
	return view, nil
}

// BrowseProfiles lists active members other than the viewer, newest first.
func (s *Service) BrowseProfiles(ctx context.Context, viewerID uint64, pageToken string, limit int) (*ProfilePage, error) {
	limit = pagination.ClampLimit(limit, defaultPageSize, maxPageSize)

	users, next, err := s.users.ListActive(ctx, viewerID, pageToken, limit)
	if errors.Is(err, pagination.ErrInvalidToken) {
		return nil, svcErr.Validation(err.Error())
	}
	if err != nil {
		s.log().Error("ListActive failed", "err", err)
		return nil, svcErr.Internal(err)
	}

	page := &ProfilePage{Profiles: make([]ProfileCard, 0, len(users)), NextPageToken: next}
	for _, u := range users {
		page.Profiles = append(page.Profiles, s.toCard(u))
	}
	return page, nil
}

// IncomingRequests lists pending requests addressed to userID, newest first.
func (s *Service) IncomingRequests(ctx context.Context, userID uint64) ([]IncomingRequest, error) {
	rows, err := s.matches.IncomingPending(ctx, userID)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	out := make([]IncomingRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.toIncoming(r))
	}
	return out, nil
}

func (s *Service) log() *slog.Logger {
	return s.appCtx.Logger.With("service", "match")
}
