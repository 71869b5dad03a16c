package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/auth"
	"github.com/charlesng35/gatekeep/internal/cache"
	"github.com/charlesng35/gatekeep/internal/database/testutil"
	"github.com/charlesng35/gatekeep/internal/drive"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/permissions"
	"github.com/charlesng35/gatekeep/internal/views"
)

const testPassword = "Str0ng!Pass"

type fakeStorage struct {
	mu        sync.Mutex
	uploads   []drive.File
	deleted   []string
	uploadErr error
	deleteErr error
}

func (s *fakeStorage) Upload(_ context.Context, file drive.File) (*models.Picture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	s.uploads = append(s.uploads, file)
	id := fmt.Sprintf("file-%d", len(s.uploads))
	return &models.Picture{
		FileID:        id,
		ShareableLink: "https://drive.test/view/" + id,
		DownloadLink:  "https://drive.test/download/" + id,
	}, nil
}

func (s *fakeStorage) Delete(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, fileID)
	return s.deleteErr
}

type sentNotification struct {
	kind   string
	userID string
	token  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (n *recordingNotifier) record(kind string, user *models.User, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{kind: kind, userID: user.ID, token: token})
	return n.err
}

func (n *recordingNotifier) UserRegistered(_ context.Context, user *models.User, token string) error {
	return n.record("registered", user, token)
}

func (n *recordingNotifier) PasswordResetRequested(_ context.Context, user *models.User, token string, _ time.Duration) error {
	return n.record("reset", user, token)
}

func (n *recordingNotifier) VerificationRequested(_ context.Context, user *models.User, token string, _ time.Duration) error {
	return n.record("verify", user, token)
}

func (n *recordingNotifier) last(kind string) (sentNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentNotification{}, false
}

type fixture struct {
	db       *gorm.DB
	now      time.Time
	storage  *fakeStorage
	notifier *recordingNotifier
	audit    *AuditService
	resolver *permissions.Resolver
	tokens   *auth.TokenService
	roles    *RoleService
	perms    *PermissionService
	users    *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		db:       testutil.MustOpenTestDB(t, testutil.WithSeedData()),
		now:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		storage:  &fakeStorage{},
		notifier: &recordingNotifier{},
	}

	var err error
	f.audit, err = NewAuditService(f.db)
	require.NoError(t, err)

	assembler, err := views.NewAssembler(f.db)
	require.NoError(t, err)

	f.resolver, err = permissions.NewResolver(f.db, cache.NewDatabaseStore(f.db), time.Minute)
	require.NoError(t, err)

	store, err := auth.NewDatabaseTokenStore(f.db)
	require.NoError(t, err)
	f.tokens, err = auth.NewTokenService(f.db, store, auth.TokenConfig{
		Secret: "service-test-secret",
		Clock:  func() time.Time { return f.now },
	})
	require.NoError(t, err)

	f.roles, err = NewRoleService(f.db, assembler, f.resolver, f.audit)
	require.NoError(t, err)
	f.perms, err = NewPermissionService(f.db, f.resolver, f.audit)
	require.NoError(t, err)
	f.users, err = NewUserService(f.db, UserServiceDeps{
		Roles:    f.roles,
		Tokens:   f.tokens,
		Storage:  f.storage,
		Notifier: f.notifier,
		Views:    assembler,
		Audit:    f.audit,
		Limits:   AttemptLimits{Login: 3},
	})
	require.NoError(t, err)

	return f
}

// tick moves the token clock forward so consecutive tokens differ.
func (f *fixture) tick() {
	f.now = f.now.Add(time.Second)
}

func phone(i int) string {
	return fmt.Sprintf("+1201555%04d", 100+i)
}

func (f *fixture) createUser(t *testing.T, i int, name string) *AuthResult {
	t.Helper()
	f.tick()
	result, err := f.users.Create(context.Background(), "", CreateUserInput{
		Name:     name,
		Email:    fmt.Sprintf("user%d@example.com", i),
		Phone:    phone(i),
		Password: testPassword,
	}, nil)
	require.NoError(t, err)
	return result
}

func (f *fixture) createPermissions(t *testing.T, names ...string) []models.Permission {
	t.Helper()
	perms := make([]models.Permission, 0, len(names))
	for _, name := range names {
		perm, err := f.perms.Create(context.Background(), "", CreatePermissionInput{Name: name})
		require.NoError(t, err)
		perms = append(perms, *perm)
	}
	return perms
}
