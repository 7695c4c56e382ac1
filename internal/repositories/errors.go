package repositories

import (
	"github.com/maxaizer/shiftmatch/internal/domain/errs"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"strings"
)

// errNotApplied aborts a transaction whose guarded update matched no rows.
var errNotApplied = errors.New("conditional update not applied")

func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.Newf(errs.NotFound, "%s not found", entity)
	}
	var domainErr *errs.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return errors.Wrapf(err, "%s query failed", entity)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// first loads a single row into dest, reporting ok=false instead of an error when nothing matched.
// Misses are routine here, so it avoids First and its ErrRecordNotFound.
func first(db *gorm.DB, dest any, query string, args ...any) (bool, error) {
	result := db.Where(query, args...).Order("id").Limit(1).Find(dest)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
