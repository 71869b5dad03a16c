package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeep/internal/drive"
	"github.com/charlesng35/gatekeep/internal/ids"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/pkg/crypto"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/pagination"
)

func TestCreateUserAssignsIdentityAndDefaultRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.users.Create(ctx, "", CreateUserInput{
		Name:     "Ada Lovelace",
		Email:    "  Ada@Example.com ",
		Phone:    "(201) 555-0123",
		Password: testPassword,
	}, &drive.File{Name: "ada.png", ContentType: "image/png", Data: []byte("png")})
	require.NoError(t, err)

	view := result.User
	require.True(t, ids.Valid(ids.PrefixUser, view.ID))
	require.True(t, strings.HasPrefix(view.Username, "ada-lovelace-"))
	require.Equal(t, "ada@example.com", view.Email)
	require.Equal(t, "+12015550123", view.Phone)
	require.Equal(t, models.RoleDefault, view.Role.Name)
	require.Equal(t, view.ID, view.CreatedBy.ID, "self registration is recorded as self-created")
	require.Empty(t, view.Missing)
	require.Equal(t, "file-1", view.Picture.FileID)

	require.NotEmpty(t, result.Tokens.Access.Token)
	require.NotEmpty(t, result.Tokens.Refresh.Token)

	sent, ok := f.notifier.last("registered")
	require.True(t, ok)
	require.Equal(t, view.ID, sent.userID)
	_, err = f.tokens.VerifyToken(ctx, sent.token, models.TokenTypeVerifyEmail)
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, f.db.First(&stored, "id = ?", view.ID).Error)
	require.True(t, crypto.VerifyPassword(stored.Password, testPassword))
	require.False(t, stored.EmailVerified)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, 1, "First")

	_, err := f.users.Create(context.Background(), "", CreateUserInput{
		Name:     "Second",
		Email:    "USER1@example.com",
		Phone:    phone(2),
		Password: testPassword,
	}, &drive.File{Name: "x.png", Data: []byte("x")})
	require.ErrorIs(t, err, apperrors.ErrDuplicateEmail)
	require.Empty(t, f.storage.uploads, "duplicate check runs before upload")

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "user1@example.com").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateUserRejectsDuplicatePhone(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, 1, "First")

	_, err := f.users.Create(context.Background(), "", CreateUserInput{
		Name:     "Second",
		Email:    "other@example.com",
		Phone:    phone(1),
		Password: testPassword,
	}, nil)
	require.ErrorIs(t, err, apperrors.ErrDuplicateField)
}

func TestCreateUserAbortsOnUploadFailure(t *testing.T) {
	f := newFixture(t)
	f.storage.uploadErr = errors.New("quota exceeded")

	_, err := f.users.Create(context.Background(), "", CreateUserInput{
		Name:     "Grace Hopper",
		Email:    "grace@example.com",
		Phone:    phone(1),
		Password: testPassword,
	}, &drive.File{Name: "g.png", Data: []byte("g")})
	require.ErrorIs(t, err, apperrors.ErrUploadFailed)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestCreateUserWithUnknownRoleDiscardsUpload(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Create(context.Background(), "", CreateUserInput{
		Name:     "Grace Hopper",
		Email:    "grace@example.com",
		Phone:    phone(1),
		Password: testPassword,
		RoleID:   ids.New(ids.PrefixRole),
	}, &drive.File{Name: "g.png", Data: []byte("g")})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	require.Equal(t, []string{"file-1"}, f.storage.deleted)
}

func TestCreateUserValidatesInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.users.Create(context.Background(), "", CreateUserInput{
		Name:     "A",
		Email:    "not-an-email",
		Phone:    "12",
		Password: "password",
	}, nil)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	fields := make([]string, 0, len(appErr.Fields))
	for _, field := range appErr.Fields {
		fields = append(fields, field.Field)
	}
	require.ElementsMatch(t, []string{"name", "email", "phone", "password"}, fields)
}

func TestCreateUserRetriesUsernameCollisions(t *testing.T) {
	f := newFixture(t)
	taken := f.createUser(t, 1, "Taken")

	candidates := []string{taken.User.Username, taken.User.Username, "fresh-name"}
	f.users.usernames = func(string) string {
		next := candidates[0]
		candidates = candidates[1:]
		return next
	}

	f.tick()
	result, err := f.users.Create(context.Background(), "", CreateUserInput{
		Name:     "Fresh",
		Email:    "fresh@example.com",
		Phone:    phone(2),
		Password: testPassword,
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "fresh-name", result.User.Username)

	f.users.usernames = func(string) string { return taken.User.Username }
	_, err = f.users.Create(context.Background(), "", CreateUserInput{
		Name:     "Unlucky",
		Email:    "unlucky@example.com",
		Phone:    phone(3),
		Password: testPassword,
	}, nil)
	require.ErrorIs(t, err, apperrors.ErrDuplicateField)
}

func TestCreateUserToleratesNotificationFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	result := f.createUser(t, 1, "Resilient")
	require.NotEmpty(t, result.User.ID)
}

func TestUpdateUserRejectsNoop(t *testing.T) {
	f := newFixture(t)
	created := f.createUser(t, 1, "Same Name")

	name := "Same Name"
	_, err := f.users.Update(context.Background(), created.User.ID, created.User.ID, UpdateUserInput{Name: &name}, nil)
	require.ErrorIs(t, err, apperrors.ErrNoChange)

	_, err = f.users.Update(context.Background(), created.User.ID, ids.New(ids.PrefixUser), UpdateUserInput{Name: &name}, nil)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUserChecksEmailAndResetsVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createUser(t, 1, "First")
	second := f.createUser(t, 2, "Second")

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", second.User.ID).Update("email_verified", true).Error)

	taken := "user1@example.com"
	_, err := f.users.Update(ctx, first.User.ID, second.User.ID, UpdateUserInput{Email: &taken}, nil)
	require.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	email := "renamed@example.com"
	view, err := f.users.Update(ctx, first.User.ID, second.User.ID, UpdateUserInput{Email: &email}, nil)
	require.NoError(t, err)
	require.Equal(t, email, view.Email)
	require.False(t, view.EmailVerified)
	require.Equal(t, first.User.ID, view.UpdatedBy.ID)
}

func TestUpdateUserReplacesPicture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tick()
	created, err := f.users.Create(ctx, "", CreateUserInput{
		Name:     "Pictured",
		Email:    "pictured@example.com",
		Phone:    phone(1),
		Password: testPassword,
	}, &drive.File{Name: "old.png", Data: []byte("old")})
	require.NoError(t, err)
	id := created.User.ID

	f.storage.uploadErr = errors.New("drive unavailable")
	_, err = f.users.Update(ctx, id, id, UpdateUserInput{}, &drive.File{Name: "new.png", Data: []byte("new")})
	require.ErrorIs(t, err, apperrors.ErrUploadFailed)

	var stored models.User
	require.NoError(t, f.db.First(&stored, "id = ?", id).Error)
	require.Equal(t, "file-1", stored.Picture.FileID, "failed upload keeps the old picture")
	require.Empty(t, f.storage.deleted)

	f.storage.uploadErr = nil
	view, err := f.users.Update(ctx, id, id, UpdateUserInput{}, &drive.File{Name: "new.png", Data: []byte("new")})
	require.NoError(t, err)
	require.Equal(t, "file-2", view.Picture.FileID)
	require.Equal(t, []string{"file-1"}, f.storage.deleted)

	other := f.createUser(t, 2, "Other")
	seen, err := f.users.Get(ctx, other.User.ID, id)
	require.NoError(t, err)
	require.Empty(t, seen.Picture.FileID, "non-owners only see the shareable link")
	require.Equal(t, "https://drive.test/view/file-2", seen.Picture.ShareableLink)
}

func TestUpdateUserDeactivationRevokesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createUser(t, 1, "Leaving")

	inactive := false
	view, err := f.users.Update(ctx, "", created.User.ID, UpdateUserInput{IsActive: &inactive}, nil)
	require.NoError(t, err)
	require.False(t, view.IsActive)

	_, err = f.tokens.VerifyToken(ctx, created.Tokens.Refresh.Token, models.TokenTypeRefresh)
	require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
}

func TestUpdateUserWithoutActorStampsSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createUser(t, 1, "Self Service")

	name := "Self Service Renamed"
	_, err := f.users.Update(ctx, "", created.User.ID, UpdateUserInput{Name: &name}, nil)
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, f.db.Take(&stored, "id = ?", created.User.ID).Error)
	require.Equal(t, created.User.ID, stored.UpdatedBy)
}

func TestDeleteUserReturnsRemovedRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tick()
	created, err := f.users.Create(ctx, "", CreateUserInput{
		Name:     "Removed",
		Email:    "removed@example.com",
		Phone:    phone(1),
		Password: testPassword,
	}, &drive.File{Name: "r.png", Data: []byte("r")})
	require.NoError(t, err)

	removed, err := f.users.Delete(ctx, "", created.User.ID)
	require.NoError(t, err)
	require.Equal(t, created.User.ID, removed.ID)
	require.Equal(t, []string{"file-1"}, f.storage.deleted)

	_, err = f.users.Get(ctx, "", created.User.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	var tokens int64
	require.NoError(t, f.db.Model(&models.Token{}).Where("user_id = ?", created.User.ID).Count(&tokens).Error)
	require.Zero(t, tokens)

	_, err = f.users.Delete(ctx, "", created.User.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestQueryUsersFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		f.createUser(t, i, fmt.Sprintf("Member %02d", i))
	}
	for i := 21; i <= 25; i++ {
		inactive := false
		_, err := f.users.Update(ctx, "", mustUserID(t, f, i), UpdateUserInput{IsActive: &inactive}, nil)
		require.NoError(t, err)
	}

	active := true
	page1, err := f.users.Query(ctx, "", UserFilter{IsActive: &active}, QueryOptions{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 20, page1.Total)
	require.Len(t, page1.Items, 10)

	page2, err := f.users.Query(ctx, "", UserFilter{IsActive: &active}, QueryOptions{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page2.Items, 10)

	seen := map[string]bool{}
	for _, item := range append(page1.Items, page2.Items...) {
		require.True(t, item.IsActive)
		require.False(t, seen[item.ID], "pages must not overlap")
		seen[item.ID] = true
	}
	require.Len(t, seen, 20)

	byName, err := f.users.Query(ctx, "", UserFilter{Name: "member 0"}, QueryOptions{
		Sort: pagination.Sort{Field: "name"},
	})
	require.NoError(t, err)
	require.EqualValues(t, 9, byName.Total)
	require.Equal(t, "Member 01", byName.Items[0].Name)

	_, err = f.users.Query(ctx, "", UserFilter{Name: "nobody"}, QueryOptions{})
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	since := time.Now().Add(-24 * time.Hour)
	today, err := f.users.Query(ctx, "", UserFilter{CreatedAt: DateRange{From: &since}}, QueryOptions{Limit: 100})
	require.NoError(t, err)
	require.EqualValues(t, 25, today.Total)
}

func TestGenerateUsername(t *testing.T) {
	require.Regexp(t, `^jane-o-neil-smith-[0-9a-f]{8}$`, generateUsername("Jane O'Neil  Smith"))
	require.Regexp(t, `^user-[0-9a-f]{8}$`, generateUsername("  !!  "))
	require.NotEqual(t, generateUsername("Same"), generateUsername("Same"))
}

func mustUserID(t *testing.T, f *fixture, i int) string {
	t.Helper()
	var user models.User
	require.NoError(t, f.db.Select("id").First(&user, "email = ?", fmt.Sprintf("user%d@example.com", i)).Error)
	return user.ID
}
