package repository

import (
	"errors"
	"fmt"

	"github.com/okian/elove/internal/domain/errs"
)

// Sentinel kinds for repository errors.
var (
	ErrInvalidLimit = errors.New("invalid limit")
	ErrExists       = errors.New("participant already exists")
	ErrClosed       = errors.New("store closed")
)

func notFound(op, what, id string) error {
	return errs.Newf(op, errs.ErrNotFound, "%s %q", what, id)
}

func storageErr(op string, err error) error {
	return errs.WrapKind(op, errs.ErrStorage, err)
}

func versionConflict(op, id string, want, have uint64) error {
	return errs.Newf(op, errs.ErrConflict, "participant %q at version %d, expected %d", id, have, want)
}

func alreadyExists(op, id string) error {
	return errs.WrapKind(op, errs.ErrDuplicate, fmt.Errorf("%w: %q", ErrExists, id))
}
