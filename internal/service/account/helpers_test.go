package account_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/app"
	"github.com/sengunthar/matrimony/internal/auth"
	"github.com/sengunthar/matrimony/internal/cache"
	"github.com/sengunthar/matrimony/internal/config"
	"github.com/sengunthar/matrimony/internal/db/dbtest"
	"github.com/sengunthar/matrimony/internal/logger"
	"github.com/sengunthar/matrimony/internal/service/account"
	"github.com/sengunthar/matrimony/internal/service/notify"
	"github.com/sengunthar/matrimony/internal/storage"
)

type published struct {
	mu    sync.Mutex
	views map[uint64][]notify.View
}

func (p *published) Publish(userID uint64, v notify.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.views == nil {
		p.views = map[uint64][]notify.View{}
	}
	p.views[userID] = append(p.views[userID], v)
}

func (p *published) count(userID uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.views[userID])
}

type sentMail struct {
	mu sync.Mutex
	to []string
}

func (m *sentMail) Send(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	return nil
}

func (m *sentMail) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.to...)
}

type testEnv struct {
	appCtx *app.AppContext
	gdb    *gorm.DB
	svc    *account.Service
	sink   *notify.Sink
	pub    *published
	store  *storage.Local
	hasher *auth.Hasher
	issuer *auth.Issuer
	mr     *miniredis.Miniredis
}

// setupEnv wires the account service on an isolated in-memory DB. With
// withRedis a miniredis backs the reaper lease and warning markers.
func setupEnv(t *testing.T, withRedis bool) *testEnv {
	t.Helper()

	gdb := dbtest.Open(t)
	cfg := config.Load("")
	cfg.JWT.Secret = "test-secret"

	var rc *cache.RedisCache
	var mr *miniredis.Miniredis
	if withRedis {
		var err error
		mr, err = miniredis.Run()
		require.NoError(t, err)
		t.Cleanup(mr.Close)
		cfg.Redis.Addr = mr.Addr()
		rc = cache.NewRedisCache(cfg)
	}

	store, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	appCtx := app.New(gdb, rc, logger.Discard(), cfg)
	pub := &published{}
	sink := notify.NewSink(appCtx, pub)
	hasher := auth.NewHasher(bcrypt.MinCost)
	issuer := auth.NewIssuer(cfg.JWT.Secret)

	return &testEnv{
		appCtx: appCtx,
		gdb:    gdb,
		svc:    account.NewService(appCtx, sink, store, hasher, issuer),
		sink:   sink,
		pub:    pub,
		store:  store,
		hasher: hasher,
		issuer: issuer,
		mr:     mr,
	}
}
