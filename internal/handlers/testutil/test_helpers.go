package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/api"
	"github.com/charlesng35/gatekeep/internal/app"
	iauth "github.com/charlesng35/gatekeep/internal/auth"
	sharedtestutil "github.com/charlesng35/gatekeep/internal/database/testutil"
	"github.com/charlesng35/gatekeep/internal/drive"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/permissions"
	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/pkg/response"
)

// Password satisfies the password policy and is used for every seeded account.
const Password = "Str0ng!Pass"

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Services *api.Services
	Storage  *FakeStorage
	Notifier *RecordingNotifier

	seq atomic.Int64
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())
	require.NoError(t, permissions.Sync(context.Background(), db))

	env := &Env{
		T:        t,
		DB:       db,
		Storage:  &FakeStorage{},
		Notifier: &RecordingNotifier{},
	}

	// Tokens are signed with second precision, so every issuance gets its own second.
	start := time.Now().UTC().Truncate(time.Second)
	var ticks atomic.Int64
	clock := func() time.Time {
		return start.Add(time.Duration(ticks.Add(1)) * time.Second)
	}

	store, err := iauth.NewDatabaseTokenStore(db)
	require.NoError(t, err)
	tokens, err := iauth.NewTokenService(db, store, iauth.TokenConfig{
		Secret: "handler-suite-secret",
		Clock:  clock,
	})
	require.NoError(t, err)

	resolver, err := permissions.NewResolver(db, nil, 0)
	require.NoError(t, err)

	svc, err := api.NewServices(db, api.ServiceDeps{
		Tokens:   tokens,
		Resolver: resolver,
		Storage:  env.Storage,
		Notifier: env.Notifier,
	})
	require.NoError(t, err)

	router, err := api.NewRouter(db, &app.Config{}, svc)
	require.NoError(t, err)

	env.Services = svc
	env.Router = router
	return env
}

// RoleID returns the id of the named role.
func (e *Env) RoleID(name string) string {
	e.T.Helper()
	var role models.Role
	require.NoError(e.T, e.DB.Take(&role, "name = ?", name).Error)
	return role.ID
}

// CreateUser provisions an account in the named role and returns it.
func (e *Env) CreateUser(name, roleName string) *services.AuthResult {
	e.T.Helper()

	n := e.seq.Add(1)
	input := services.CreateUserInput{
		Name:     name,
		Email:    fmt.Sprintf("user%d@example.com", n),
		Phone:    fmt.Sprintf("+1201555%04d", 100+n),
		Password: Password,
	}
	if roleName != "" {
		input.RoleID = e.RoleID(roleName)
	}

	result, err := e.Services.Users.Create(context.Background(), "", input, nil)
	require.NoError(e.T, err)
	return result
}

// CreateAdmin provisions an administrator and returns its access token.
func (e *Env) CreateAdmin() (*services.AuthResult, string) {
	e.T.Helper()
	result := e.CreateUser("Admin User", models.RoleAdmin)
	return result, e.Login(result.User.Email, Password)
}

// Login authenticates through the HTTP surface and returns the access token.
func (e *Env) Login(email, password string) string {
	e.T.Helper()

	resp := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, resp.Code, resp.Body.String())

	var payload struct {
		Tokens iauth.AuthTokens `json:"tokens"`
	}
	DecodeInto(e.T, DecodeResponse(e.T, resp).Data, &payload)
	require.NotEmpty(e.T, payload.Tokens.Access.Token)
	return payload.Tokens.Access.Token
}

// APIResponse mirrors the response envelope with a raw data payload.
type APIResponse struct {
	Success    bool                `json:"success"`
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Data       json.RawMessage     `json:"data"`
	Error      *response.ErrorInfo `json:"error"`
	Meta       *response.Meta      `json:"meta"`
}

// DecodeResponse parses the response envelope.
func DecodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

// DecodeInto unmarshals a raw data payload into dest.
func DecodeInto(t *testing.T, data json.RawMessage, dest any) {
	t.Helper()
	require.NotEmpty(t, data)
	require.NoError(t, json.Unmarshal(data, dest))
}

// Request issues a JSON request against the router.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// RequestMultipart issues a multipart request. A non-nil picture is attached under the picture field.
func (e *Env) RequestMultipart(method, path string, fields map[string]string, picture []byte, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(e.T, writer.WriteField(key, value))
	}
	if picture != nil {
		part, err := writer.CreateFormFile("picture", "avatar.png")
		require.NoError(e.T, err)
		_, err = part.Write(picture)
		require.NoError(e.T, err)
	}
	require.NoError(e.T, writer.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.serve(req, token)
}

func (e *Env) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

// FakeStorage keeps uploads in memory.
type FakeStorage struct {
	mu      sync.Mutex
	Uploads []drive.File
	Deleted []string
}

func (s *FakeStorage) Upload(_ context.Context, file drive.File) (*models.Picture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Uploads = append(s.Uploads, file)
	id := fmt.Sprintf("file-%d", len(s.Uploads))
	return &models.Picture{
		FileID:        id,
		ShareableLink: "https://drive.example.com/view/" + id,
		DownloadLink:  drive.DownloadLink(id),
	}, nil
}

func (s *FakeStorage) Delete(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, fileID)
	return nil
}

// Notification is one message captured by RecordingNotifier.
type Notification struct {
	Kind   string
	UserID string
	Token  string
}

// RecordingNotifier captures the tokens that would be emailed.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *RecordingNotifier) record(kind string, user *models.User, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Kind: kind, UserID: user.ID, Token: token})
	return nil
}

func (n *RecordingNotifier) UserRegistered(_ context.Context, user *models.User, token string) error {
	return n.record("registered", user, token)
}

func (n *RecordingNotifier) PasswordResetRequested(_ context.Context, user *models.User, token string, _ time.Duration) error {
	return n.record("reset", user, token)
}

func (n *RecordingNotifier) VerificationRequested(_ context.Context, user *models.User, token string, _ time.Duration) error {
	return n.record("verify", user, token)
}

// Last returns the most recent notification of kind.
func (n *RecordingNotifier) Last(kind string) (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return Notification{}, false
}
