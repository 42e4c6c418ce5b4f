package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// classLookup is the slice of the class repository most services need to
// resolve ownership.
type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.ClassDetail, error)
	IsMember(ctx context.Context, classID, userID string) (bool, error)
}

func loadClass(ctx context.Context, classes classLookup, id string) (*models.ClassDetail, error) {
	class, err := classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Internal(err, "failed to load class")
	}
	return class, nil
}

// canManageClass reports whether actor owns the class or is an admin.
func canManageClass(actor *models.JWTClaims, class *models.ClassDetail) bool {
	if actor == nil || class == nil {
		return false
	}
	return actor.Role == models.RoleAdmin || class.TeacherID == actor.UserID
}

func requireClassManager(actor *models.JWTClaims, class *models.ClassDetail) error {
	if !canManageClass(actor, class) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the class teacher or an admin may do this")
	}
	return nil
}

// requireClassMember allows admins, the teacher and enrolled students.
func requireClassMember(ctx context.Context, classes classLookup, actor *models.JWTClaims, classID string) error {
	if actor == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	ok, err := classes.IsMember(ctx, classID, actor.UserID)
	if err != nil {
		return appErrors.Internal(err, "failed to check class membership")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "not a member of this class")
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
