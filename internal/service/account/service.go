package account

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/app"
	"github.com/sengunthar/matrimony/internal/auth"
	"github.com/sengunthar/matrimony/internal/db"
	svcErr "github.com/sengunthar/matrimony/internal/errors"
	"github.com/sengunthar/matrimony/internal/repository"
	"github.com/sengunthar/matrimony/internal/service/notify"
	"github.com/sengunthar/matrimony/internal/storage"
)

const approvedMessage = "Your account has been approved! You can now browse profiles and send match requests."

// Service owns the account lifecycle: pending on signup, active once an
// admin approves, removed by the Reaper after long inactivity.
type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
	admins *repository.AdminRepository
	sink   *notify.Sink
	store  storage.Store
	hasher *auth.Hasher
	issuer *auth.Issuer
	now    func() time.Time
}

// NewService creates the account service with dependencies from AppContext.
func NewService(
	appCtx *app.AppContext,
	sink *notify.Sink,
	store storage.Store,
	hasher *auth.Hasher,
	issuer *auth.Issuer,
) *Service {
	return &Service{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
		admins: repository.NewAdminRepository(appCtx.DB),
		sink:   sink,
		store:  store,
		hasher: hasher,
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Upload is one file attached to a signup.
type Upload struct {
	Field    storage.Field
	Filename string
	Body     io.Reader
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	WhatsApp string
	Profile  db.Profile
	Uploads  []Upload
}

// Register creates a pending account.
//
// Behavior:
//   - Name, email and password are required; email is trimmed and lower-cased.
//   - ErrDuplicateEmail when the email is taken, including a concurrent
//     signup caught by the unique index.
//   - Uploads are stored first; only their references reach the database.
//     If the insert fails the stored files are removed again.
//   - No notification is posted.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*db.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, svcErr.Validation("name, email and password required")
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		s.log().Error("EmailExists failed", "err", err)
		return nil, svcErr.Internal(err)
	}
	if exists {
		return nil, svcErr.ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, svcErr.Internal(err)
	}

	profile := in.Profile
	var docs []db.UserDoc
	var stored []string
	for _, up := range in.Uploads {
		if s.store == nil {
			break
		}
		ref, err := s.store.Save(ctx, up.Field, up.Filename, up.Body)
		if err != nil {
			s.discard(stored)
			if svcErr.Is(err, storage.ErrTooLarge) {
				return nil, svcErr.Validation(err.Error())
			}
			s.log().Error("failed to store upload", "field", up.Field, "err", err)
			return nil, svcErr.Internal(err)
		}
		stored = append(stored, ref)

		switch up.Field {
		case storage.FieldProfilePhoto:
			profile.ProfilePhoto = ref
		case storage.FieldCommunityCert:
			docs = append(docs, db.UserDoc{DocType: db.DocCommunity, Reference: ref})
		case storage.FieldJathagam:
			docs = append(docs, db.UserDoc{DocType: db.DocJathagam, Reference: ref})
		}
	}

	user := &db.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		WhatsApp:     strings.TrimSpace(in.WhatsApp),
		Status:       db.UserPending,
		Profile:      profile,
		LastLoginAt:  s.now(),
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		if err := users.Create(ctx, user); err != nil {
			return err
		}
		for i := range docs {
			docs[i].UserID = user.ID
		}
		return users.CreateDocs(ctx, docs)
	})
	if err != nil {
		s.discard(stored)
		if repository.IsDuplicate(err) {
			return nil, svcErr.ErrDuplicateEmail
		}
		s.log().Error("failed to create user", "err", err)
		return nil, svcErr.Internal(err)
	}

	s.log().Info("user registered", "user_id", user.ID, "uploads", len(stored))
	return user, nil
}

// Activate approves a pending account and tells the member.
//
// Behavior:
//   - ErrUserNotFound for an unknown id.
//   - ErrAlreadyActive without any write when the account is active.
//   - The status change and the account_approved notification commit
//     together; the notification is pushed live after commit.
func (s *Service) Activate(ctx context.Context, userID uint64) (*db.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if repository.IsNotFound(err) {
		return nil, svcErr.ErrUserNotFound
	}
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	if user.Status == db.UserActive {
		return nil, svcErr.ErrAlreadyActive
	}

	var note db.Notification
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.users.WithTx(tx).Activate(ctx, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			// lost a race with another approval
			return svcErr.ErrAlreadyActive
		}
		note, err = s.sink.Post(ctx, tx, userID, db.NotifyAccountApproved, approvedMessage, nil)
		return err
	})
	if err != nil {
		if svcErr.KindOf(err) == svcErr.KindInternal {
			s.log().Error("activate failed", "user_id", userID, "err", err)
		}
		return nil, svcErr.Internal(err)
	}

	s.sink.Publish(note)
	user.Status = db.UserActive
	s.log().Info("user activated", "user_id", userID)
	return user, nil
}

// Session is the result of a successful login.
type Session struct {
	Token string
	User  *db.User
}

// Authenticate logs a member in.
//
// Unknown email and wrong password are indistinguishable to the caller;
// a pending account gets ErrAccountNotActive. Success refreshes last_login,
// which is what keeps the Reaper away.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, svcErr.Validation("email and password required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if repository.IsNotFound(err) {
		s.hasher.Burn(password)
		return nil, svcErr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return nil, svcErr.ErrInvalidCredentials
	}
	if user.Status != db.UserActive {
		return nil, svcErr.ErrAccountNotActive
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log().Error("TouchLastLogin failed", "user_id", user.ID, "err", err)
		return nil, svcErr.Internal(err)
	}
	user.LastLoginAt = now

	token, err := s.issuer.Issue(auth.User{UserID: user.ID, Email: user.Email}, s.appCtx.Config.JWT.TTL)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	return &Session{Token: token, User: user}, nil
}

// AdminSession is the result of a successful operator login.
type AdminSession struct {
	Token string
	Admin *db.Admin
}

// AuthenticateAdmin logs an operator in against the admin table.
func (s *Service) AuthenticateAdmin(ctx context.Context, email, password string) (*AdminSession, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, svcErr.Validation("email and password required")
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if repository.IsNotFound(err) {
		s.hasher.Burn(password)
		return nil, svcErr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	if !s.hasher.Verify(admin.PasswordHash, password) {
		return nil, svcErr.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(auth.Admin{AdminID: admin.ID, Email: admin.Email}, s.appCtx.Config.JWT.TTL)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	return &AdminSession{Token: token, Admin: admin}, nil
}

// ListPending returns accounts awaiting approval, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]db.User, error) {
	users, err := s.users.ListPending(ctx)
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	return users, nil
}

// RequireActive loads the member behind a token. A deleted account is an
// invalid token; a pending one is ErrAccountNotActive.
func (s *Service) RequireActive(ctx context.Context, userID uint64) (*db.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Status != db.UserActive {
		return nil, svcErr.ErrAccountNotActive
	}
	return user, nil
}

// GetUser loads the member behind a token regardless of status.
func (s *Service) GetUser(ctx context.Context, userID uint64) (*db.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if repository.IsNotFound(err) {
		return nil, svcErr.ErrInvalidToken
	}
	if err != nil {
		return nil, svcErr.Internal(err)
	}
	return user, nil
}

func (s *Service) discard(refs []string) {
	for _, ref := range refs {
		if err := s.store.Delete(context.Background(), ref); err != nil {
			s.log().Warn("failed to remove orphaned upload", "ref", ref, "err", err)
		}
	}
}

func (s *Service) log() *slog.Logger {
	return s.appCtx.Logger.With("service", "account")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
