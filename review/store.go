package review

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/photon-storage/bounty-hub/database/orm"
	"github.com/photon-storage/bounty-hub/errs"
)

// Store persists submission transitions. Every status write is a
// conditional update keyed on the status the caller observed, so a
// racing transition surfaces as errs.ErrConflict instead of a silent
// overwrite.
type Store interface {
	Submission(ctx context.Context, id string) (*orm.Submission, error)

	// TransitionCAS applies fields to the submission only if its
	// status still equals observed.
	TransitionCAS(
		ctx context.Context,
		id string,
		observed orm.SubmissionStatus,
		fields map[string]interface{},
	) error

	// UpdateOwn applies author edits only while the submission still
	// is in the observed (pre-review) status.
	UpdateOwn(
		ctx context.Context,
		id string,
		observed orm.SubmissionStatus,
		fields map[string]interface{},
	) error

	// DeleteOwn removes the submission only while it is still
	// pending.
	DeleteOwn(ctx context.Context, id string) error
}

type mysqlStore struct {
	db *gorm.DB
}

// NewStore returns the mysql-backed review store.
func NewStore(db *gorm.DB) Store {
	return &mysqlStore{db: db}
}

func (s *mysqlStore) Submission(
	ctx context.Context,
	id string,
) (*orm.Submission, error) {
	sub := &orm.Submission{}
	if err := s.db.WithContext(ctx).
		Model(&orm.Submission{}).
		Where("id = ?", id).
		First(sub).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}

		return nil, errors.Wrapf(errs.ErrInternal, "load submission: %v", err)
	}

	return sub, nil
}

func (s *mysqlStore) TransitionCAS(
	ctx context.Context,
	id string,
	observed orm.SubmissionStatus,
	fields map[string]interface{},
) error {
	res := s.db.WithContext(ctx).
		Model(&orm.Submission{}).
		Where("id = ? AND status = ?", id, observed).
		Updates(fields)
	if res.Error != nil {
		return errors.Wrapf(errs.ErrInternal, "transition submission: %v", res.Error)
	}

	if res.RowsAffected == 0 {
		return errors.Wrap(errs.ErrConflict, "submission transitioned concurrently")
	}

	return nil
}

func (s *mysqlStore) UpdateOwn(
	ctx context.Context,
	id string,
	observed orm.SubmissionStatus,
	fields map[string]interface{},
) error {
	res := s.db.WithContext(ctx).
		Model(&orm.Submission{}).
		Where("id = ? AND status = ?", id, observed).
		Updates(fields)
	if res.Error != nil {
		return errors.Wrapf(errs.ErrInternal, "update submission: %v", res.Error)
	}

	if res.RowsAffected == 0 {
		return errors.Wrap(errs.ErrConflict, "submission changed concurrently")
	}

	return nil
}

func (s *mysqlStore) DeleteOwn(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, orm.SubmissionPending).
		Delete(&orm.Submission{})
	if res.Error != nil {
		return errors.Wrapf(errs.ErrInternal, "delete submission: %v", res.Error)
	}

	if res.RowsAffected == 0 {
		return errors.Wrap(errs.ErrConflict, "submission changed concurrently")
	}

	return nil
}
