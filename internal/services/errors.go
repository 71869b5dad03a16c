package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrPermissionNotFound indicates the requested permission does not exist.
	ErrPermissionNotFound = apperrors.New("PERMISSION_NOT_FOUND", "Permission not found", http.StatusNotFound)
	// ErrSystemRoleImmutable prevents destructive operations on system roles.
	ErrSystemRoleImmutable = apperrors.New("ROLE_IMMUTABLE", "System roles cannot be modified", http.StatusBadRequest)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") || strings.Contains(lower, "duplicate")
}

// violatedColumn guesses which of columns a uniqueness violation refers to.
// Columns are tested in order, so list longer names first ("username" before "name").
func violatedColumn(err error, columns ...string) string {
	detail := strings.ToLower(err.Error())

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		detail = strings.ToLower(pgErr.ConstraintName + " " + pgErr.Detail + " " + pgErr.Message)
	}

	for _, column := range columns {
		if strings.Contains(detail, "."+column) || strings.Contains(detail, "_"+column) || strings.Contains(detail, "("+column+")") {
			return column
		}
	}
	return ""
}

// duplicateError maps a uniqueness violation to DuplicateEmail or DuplicateField.
func duplicateError(err error, columns ...string) *apperrors.AppError {
	switch column := violatedColumn(err, columns...); column {
	case "email":
		return apperrors.ErrDuplicateEmail.WithInternal(err)
	case "":
		return apperrors.ErrDuplicateField.WithInternal(err)
	default:
		msg := column + " is already taken"
		return apperrors.ErrDuplicateField.
			WithMessage(msg).
			WithFields([]apperrors.FieldError{{Field: column, Message: msg}}).
			WithInternal(err)
	}
}
