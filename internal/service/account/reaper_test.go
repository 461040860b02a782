package account_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/db"
	"github.com/sengunthar/matrimony/internal/db/dbtest"
	"github.com/sengunthar/matrimony/internal/mail"
	"github.com/sengunthar/matrimony/internal/service/account"
	"github.com/sengunthar/matrimony/internal/storage"
)

const day = 24 * time.Hour

var sweepNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newReaper(env *testEnv, mailer mail.Mailer, opts ...account.ReaperOption) *account.Reaper {
	opts = append([]account.ReaperOption{account.WithClock(func() time.Time { return sweepNow })}, opts...)
	return account.NewReaper(env.appCtx, env.sink, env.store, mailer, opts...)
}

func actionFor(r account.Report, userID uint64) account.Action {
	for _, row := range r.Rows {
		if row.UserID == userID {
			return row.Action
		}
	}
	return ""
}

func exists(t *testing.T, env *testEnv, id uint64) bool {
	t.Helper()
	var n int64
	require.NoError(t, env.gdb.Model(&db.User{}).Where("id = ?", id).Count(&n).Error)
	return n == 1
}

func TestReaper_WarnsAndDeletesByThreshold(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, false)
	mailer := &sentMail{}

	fresh := dbtest.User(t, env.gdb, db.User{Email: "fresh@test.com", LastLoginAt: sweepNow.Add(-2 * day)})
	idle := dbtest.User(t, env.gdb, db.User{Email: "idle@test.com", LastLoginAt: sweepNow.Add(-25 * day)})
	idlePending := dbtest.User(t, env.gdb, db.User{Email: "idlep@test.com", Status: db.UserPending, LastLoginAt: sweepNow.Add(-25 * day)})
	gone := dbtest.User(t, env.gdb, db.User{Email: "gone@test.com", LastLoginAt: sweepNow.Add(-31 * day)})
	gonePending := dbtest.User(t, env.gdb, db.User{Email: "gonep@test.com", Status: db.UserPending, LastLoginAt: sweepNow.Add(-31 * day)})

	report, err := newReaper(env, mailer).RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, account.ActionWarned, actionFor(report, idle.ID))
	assert.Equal(t, account.ActionDeleted, actionFor(report, gone.ID))
	assert.Equal(t, account.ActionDeleted, actionFor(report, gonePending.ID))
	assert.Empty(t, actionFor(report, fresh.ID))
	assert.Empty(t, actionFor(report, idlePending.ID), "pending users are not warned")
	assert.Zero(t, report.Failed())

	// 25 days: warned, still there
	assert.True(t, exists(t, env, idle.ID))
	views, err := env.sink.ListFor(ctx, idle.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, db.NotifyInactivityWarning, views[0].Type)
	assert.Contains(t, views[0].Message, "for 25 days")
	assert.Contains(t, views[0].Message, "within 5 days")
	var payload struct {
		DaysInactive int `json:"days_inactive"`
		DaysLeft     int `json:"days_left"`
	}
	require.NoError(t, json.Unmarshal(views[0].Payload, &payload))
	assert.Equal(t, 25, payload.DaysInactive)
	assert.Equal(t, 5, payload.DaysLeft)
	assert.Equal(t, []string{"idle@test.com"}, mailer.sent())
	assert.Equal(t, 1, env.pub.count(idle.ID))

	// 31 days: deleted regardless of status
	assert.False(t, exists(t, env, gone.ID))
	assert.False(t, exists(t, env, gonePending.ID))
	assert.True(t, exists(t, env, fresh.ID))
	assert.True(t, exists(t, env, idlePending.ID))
}

func TestReaper_CascadesDeletedUser(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, false)

	photo, err := env.store.Save(ctx, storage.FieldProfilePhoto, "p.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	doc, err := env.store.Save(ctx, storage.FieldJathagam, "j.pdf", strings.NewReader("y"))
	require.NoError(t, err)

	gone := dbtest.User(t, env.gdb, db.User{Email: "gone@test.com", LastLoginAt: sweepNow.Add(-40 * day),
		Profile: db.Profile{ProfilePhoto: photo}})
	other := dbtest.User(t, env.gdb, db.User{Email: "other@test.com", LastLoginAt: sweepNow})

	require.NoError(t, env.gdb.Create(&db.UserDoc{UserID: gone.ID, DocType: db.DocJathagam, Reference: doc}).Error)
	require.NoError(t, env.gdb.Create(&db.MatchRequest{SenderID: gone.ID, ReceiverID: other.ID, Status: db.RequestAccepted}).Error)
	lo, hi := db.OrderedPair(gone.ID, other.ID)
	require.NoError(t, env.gdb.Create(&db.Match{UserA: lo, UserB: hi}).Error)
	require.NoError(t, env.gdb.Create(&db.Notification{UserID: gone.ID, Type: db.NotifyMatchMade, Message: "m", Payload: []byte("{}")}).Error)
	require.NoError(t, env.gdb.Create(&db.Notification{UserID: other.ID, Type: db.NotifyMatchAccepted, Message: "kept", Payload: []byte("{}")}).Error)

	report, err := newReaper(env, nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Count(account.ActionDeleted))

	var reqs, matches, docs, notes int64
	env.gdb.Model(&db.MatchRequest{}).Count(&reqs)
	env.gdb.Model(&db.Match{}).Count(&matches)
	env.gdb.Model(&db.UserDoc{}).Count(&docs)
	env.gdb.Model(&db.Notification{}).Count(&notes)
	assert.Zero(t, reqs)
	assert.Zero(t, matches)
	assert.Zero(t, docs)
	assert.Equal(t, int64(1), notes, "only the deleted user's notifications go")

	for _, ref := range []string{photo, doc} {
		_, err := os.Stat(filepath.Join(env.store.Dir, ref))
		assert.True(t, os.IsNotExist(err), ref)
	}
}

func TestReaper_WarnsOncePerPeriodWithRedis(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, true)
	mailer := &sentMail{}
	idle := dbtest.User(t, env.gdb, db.User{Email: "idle@test.com", LastLoginAt: sweepNow.Add(-24 * day)})

	r := newReaper(env, mailer)
	first, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, account.ActionWarned, actionFor(first, idle.ID))

	second, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, account.ActionSkipped, actionFor(second, idle.ID))

	views, err := env.sink.ListFor(ctx, idle.ID)
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Len(t, mailer.sent(), 1)

	// the lease is released after each run
	assert.False(t, env.mr.Exists("reaper:lock"))
}

func TestReaper_DaysLeftRoundsUp(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, false)
	idle := dbtest.User(t, env.gdb, db.User{Email: "idle@test.com", LastLoginAt: sweepNow.Add(-24*day - 12*time.Hour)})

	_, err := newReaper(env, &sentMail{}).RunOnce(ctx)
	require.NoError(t, err)

	views, err := env.sink.ListFor(ctx, idle.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Contains(t, views[0].Message, "for 24 days")
	assert.Contains(t, views[0].Message, "within 6 days")
}

func TestReaper_NilMailerFallsBackToLog(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, false)
	idle := dbtest.User(t, env.gdb, db.User{Email: "idle@test.com", LastLoginAt: sweepNow.Add(-24 * day)})

	r := account.NewReaper(env.appCtx, env.sink, env.store, nil, account.WithClock(func() time.Time { return sweepNow }))
	var report account.Report
	require.NotPanics(t, func() {
		var err error
		report, err = r.RunOnce(ctx)
		require.NoError(t, err)
	})
	assert.Equal(t, account.ActionWarned, actionFor(report, idle.ID))
	assert.Zero(t, report.Failed())
}

func TestReaper_RowFailureDoesNotStopSweep(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, false)
	first := dbtest.User(t, env.gdb, db.User{Email: "first@test.com", LastLoginAt: sweepNow.Add(-40 * day)})
	second := dbtest.User(t, env.gdb, db.User{Email: "second@test.com", LastLoginAt: sweepNow.Add(-40 * day)})
	for _, id := range []uint64{first.ID, second.ID} {
		require.NoError(t, env.gdb.Create(&db.Notification{UserID: id, Type: db.NotifyMatchMade, Message: "m", Payload: []byte("{}")}).Error)
	}

	failed := false
	require.NoError(t, env.gdb.Callback().Delete().Before("gorm:delete").Register("test:fail_first_user_delete", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" && !failed {
			failed = true
			tx.AddError(errors.New("boom"))
		}
	}))

	report, err := newReaper(env, nil).RunOnce(ctx)
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, 1, report.Failed())

	var bad, good account.RowResult
	for _, row := range report.Rows {
		if row.Err != nil {
			bad = row
		} else {
			good = row
		}
	}
	assert.ErrorContains(t, bad.Err, "boom")
	assert.Equal(t, account.ActionDeleted, good.Action)
	assert.NotEqual(t, bad.UserID, good.UserID)

	assert.True(t, exists(t, env, bad.UserID), "failed row is rolled back")
	assert.False(t, exists(t, env, good.UserID))

	var notes int64
	require.NoError(t, env.gdb.Model(&db.Notification{}).Where("user_id = ?", bad.UserID).Count(&notes).Error)
	assert.Equal(t, int64(1), notes)
}

func TestReaper_WithoutRedisWarnsEveryRun(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, false)
	idle := dbtest.User(t, env.gdb, db.User{Email: "idle@test.com", LastLoginAt: sweepNow.Add(-24 * day)})

	r := newReaper(env, nil)
	_, err := r.RunOnce(ctx)
	require.NoError(t, err)
	_, err = r.RunOnce(ctx)
	require.NoError(t, err)

	views, err := env.sink.ListFor(ctx, idle.ID)
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestReaper_LeaseHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	env := setupEnv(t, true)
	gone := dbtest.User(t, env.gdb, db.User{Email: "gone@test.com", LastLoginAt: sweepNow.Add(-31 * day)})

	require.NoError(t, env.mr.Set("reaper:lock", "other-replica"))

	report, err := newReaper(env, nil).RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, report.LeaseBusy)
	assert.Empty(t, report.Rows)
	assert.True(t, exists(t, env, gone.ID))
}

func TestReaper_StartStop(t *testing.T) {
	env := setupEnv(t, false)
	gone := dbtest.User(t, env.gdb, db.User{Email: "gone@test.com", LastLoginAt: sweepNow.Add(-31 * day)})

	r := newReaper(env, nil, account.WithInterval(10*time.Millisecond))
	r.Start(context.Background())
	r.Start(context.Background()) // no-op

	assert.Eventually(t, func() bool {
		var n int64
		env.gdb.Model(&db.User{}).Where("id = ?", gone.ID).Count(&n)
		return n == 0
	}, 2*time.Second, 20*time.Millisecond)

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	r.Stop() // idempotent
}
