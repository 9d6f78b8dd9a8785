package handler

import (
	"github.com/pawmart/chatserver/internal/ierr"
)

// mapStoreError keeps coded errors (NotFound, AlreadyExists) intact and
// reports everything else from the durable store as Unavailable.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}

	if ierr.CodeOf(err) != "" {
		return err
	}

	return ierr.New(ierr.ErrorCodeUnavailable, err)
}
