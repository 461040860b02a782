package account

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/app"
	"github.com/sengunthar/matrimony/internal/config"
	"github.com/sengunthar/matrimony/internal/db"
	"github.com/sengunthar/matrimony/internal/logger"
	"github.com/sengunthar/matrimony/internal/mail"
	"github.com/sengunthar/matrimony/internal/repository"
	"github.com/sengunthar/matrimony/internal/service/notify"
	"github.com/sengunthar/matrimony/internal/storage"
)

const leaseKey = "reaper:lock"

// Action is what a sweep did with one user.
type Action string

const (
	ActionWarned  Action = "warned"
	ActionDeleted Action = "deleted"
	// ActionSkipped covers an already-warned period and a user who logged
	// in between selection and delete.
	ActionSkipped Action = "skipped"
)

// RowResult reports one user of a sweep. Err is set when the row failed;
// other rows are unaffected.
type RowResult struct {
	UserID uint64
	Action Action
	Err    error
}

// Report summarises one RunOnce.
type Report struct {
	StartedAt time.Time
	// LeaseBusy is set when another replica held the lease and nothing ran.
	LeaseBusy bool
	Rows      []RowResult
}

func (r Report) Count(a Action) int {
	n := 0
	for _, row := range r.Rows {
		if row.Err == nil && row.Action == a {
			n++
		}
	}
	return n
}

func (r Report) Failed() int {
	n := 0
	for _, row := range r.Rows {
		if row.Err != nil {
			n++
		}
	}
	return n
}

// Reaper warns and then deletes accounts whose last login is too old.
//
// Thresholds are measured against last_login:
//   - active users in [now-DeleteAfter, now-NotifyAfter) are warned;
//   - every user, pending included, older than now-DeleteAfter is deleted
//     together with their requests, matches, notifications and documents.
type Reaper struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	matches *repository.MatchRepository
	notes   *repository.NotificationRepository
	sink    *notify.Sink
	store   storage.Store
	mailer  mail.Mailer
	cfg     config.ReaperConfig
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ReaperOption func(*Reaper)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ReaperOption {
	return func(r *Reaper) { r.now = now }
}

// WithInterval overrides the configured sweep interval.
func WithInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) { r.cfg.Interval = d }
}

// NewReaper builds a Reaper. A nil mailer falls back to mail.LogMailer.
func NewReaper(
	appCtx *app.AppContext,
	sink *notify.Sink,
	store storage.Store,
	mailer mail.Mailer,
	opts ...ReaperOption,
) *Reaper {
	r := &Reaper{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		matches: repository.NewMatchRepository(appCtx.DB),
		notes:   repository.NewNotificationRepository(appCtx.DB),
		sink:    sink,
		store:   store,
		mailer:  mailer,
		cfg:     appCtx.Config.Reaper,
		now:     time.Now,
	}
	if r.mailer == nil {
		r.mailer = &mail.LogMailer{Logger: appCtx.Logger}
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cfg.Interval <= 0 {
		r.cfg.Interval = time.Hour
	}
	return r
}

// RunOnce performs a single sweep. It only returns an error when the
// candidate sets could not be read; per-row failures are in the Report.
func (r *Reaper) RunOnce(ctx context.Context) (Report, error) {
	begin := time.Now()
	now := r.now().UTC()
	report := Report{StartedAt: now}

	if rc := r.appCtx.RedisCache; rc != nil {
		lease, err := rc.AcquireLease(ctx, leaseKey, r.cfg.LeaseTTL)
		switch {
		case err != nil:
			r.log().Warn("lease unavailable, sweeping anyway", "err", err)
		case lease == nil:
			report.LeaseBusy = true
			r.log().Debug("reaper lease held elsewhere")
			return report, nil
		default:
			defer func() {
				if err := lease.Release(context.Background()); err != nil {
					r.log().Warn("failed to release lease", "err", err)
				}
			}()
		}
	}

	notifyBefore := now.Add(-r.cfg.NotifyAfter)
	deleteBefore := now.Add(-r.cfg.DeleteAfter)

	var warn, doomed []db.User
	err := r.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := r.users.WithTx(tx)
		var err error
		if warn, err = users.WarnCandidates(ctx, deleteBefore, notifyBefore); err != nil {
			return err
		}
		doomed, err = users.DeleteCandidates(ctx, deleteBefore)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("failed to load reaper candidates: %w", err)
	}

	for _, u := range warn {
		report.Rows = append(report.Rows, r.warn(ctx, u, now))
	}
	for _, u := range doomed {
		report.Rows = append(report.Rows, r.remove(ctx, u, deleteBefore))
	}

	for _, row := range report.Rows {
		if row.Err != nil {
			r.log().Error("reaper row failed", "user_id", row.UserID, "action", row.Action, "err", row.Err)
		}
	}
	r.log().Info("reaper sweep finished",
		"warned", report.Count(ActionWarned),
		"deleted", report.Count(ActionDeleted),
		"skipped", report.Count(ActionSkipped),
		"failed", report.Failed(),
		logger.Since(begin),
	)
	return report, nil
}

func (r *Reaper) warn(ctx context.Context, u db.User, now time.Time) RowResult {
	res := RowResult{UserID: u.ID, Action: ActionWarned}
	rc := r.appCtx.RedisCache

	if rc != nil {
		first, err := rc.MarkWarned(ctx, u.ID, u.LastLoginAt, r.cfg.DeleteAfter)
		if err != nil {
			r.log().Warn("warning de-dup unavailable", "user_id", u.ID, "err", err)
		} else if !first {
			res.Action = ActionSkipped
			return res
		}
	}

	daysInactive := int(now.Sub(u.LastLoginAt).Hours() / 24)
	remaining := u.LastLoginAt.Add(r.cfg.DeleteAfter).Sub(now)
	daysLeft := int(math.Ceil(remaining.Hours() / 24))
	msg := fmt.Sprintf(
		"You have not logged in for %d days. Log in within %d days or your account will be deleted.",
		daysInactive, daysLeft,
	)
	payload := map[string]any{
		"days_inactive": daysInactive,
		"days_left":     daysLeft,
	}

	var note db.Notification
	err := r.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		note, err = r.sink.Post(ctx, tx, u.ID, db.NotifyInactivityWarning, msg, payload)
		return err
	})
	if err != nil {
		if rc != nil {
			_ = rc.ForgetWarning(ctx, u.ID, u.LastLoginAt)
		}
		res.Err = err
		return res
	}
	r.sink.Publish(note)

	if err := r.mailer.Send(ctx, u.Email, "Account inactivity notice", "Hello "+u.Name+",\n\n"+msg); err != nil {
		r.log().Warn("inactivity email failed", "user_id", u.ID, "err", err)
	}
	return res
}

func (r *Reaper) remove(ctx context.Context, u db.User, deleteBefore time.Time) RowResult {
	res := RowResult{UserID: u.ID, Action: ActionDeleted}

	var refs []string
	err := r.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := r.users.WithTx(tx)

		docs, err := users.DocsFor(ctx, u.ID)
		if err != nil {
			return err
		}

		n, err := users.DeleteInactive(ctx, u.ID, deleteBefore)
		if err != nil {
			return err
		}
		if n == 0 {
			res.Action = ActionSkipped
			return nil
		}

		if err := users.DeleteDocs(ctx, u.ID); err != nil {
			return err
		}
		if err := r.matches.WithTx(tx).DeleteForUser(ctx, u.ID); err != nil {
			return err
		}
		if err := r.notes.WithTx(tx).DeleteForUser(ctx, u.ID); err != nil {
			return err
		}

		for _, d := range docs {
			refs = append(refs, d.Reference)
		}
		if u.Profile.ProfilePhoto != "" {
			refs = append(refs, u.Profile.ProfilePhoto)
		}
		return nil
	})
	if err != nil {
		res.Err = err
		return res
	}

	if r.store != nil {
		for _, ref := range refs {
			if err := r.store.Delete(ctx, ref); err != nil {
				r.log().Warn("failed to delete stored file", "user_id", u.ID, "ref", ref, "err", err)
			}
		}
	}
	if res.Action == ActionDeleted {
		r.log().Info("inactive user deleted", "user_id", u.ID, "status", u.Status)
	}
	return res
}

// Start runs a sweep immediately and then every interval until Stop or
// ctx is cancelled. Calling Start twice is a no-op.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.Interval)
		defer ticker.Stop()

		r.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep(ctx)
			}
		}
	}()
	r.log().Info("reaper started", "interval", r.cfg.Interval)
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	r.wg.Wait()
	r.log().Info("reaper stopped")
}

func (r *Reaper) sweep(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.log().Error("reaper sweep failed", "err", err)
	}
}

func (r *Reaper) log() *slog.Logger {
	return r.appCtx.Logger.With("service", "reaper")
}
