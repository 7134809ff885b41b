package core

import (
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/didregistry/internal/platform/errors"
)

// Sentinel errors for the four registry failure kinds. Returned errors carry
// the identifier in their metadata and match these with errors.Is.
var (
	ErrInvalidIdentifier = apperrors.New(apperrors.CodeDIDInvalid, "invalid identifier")
	ErrAlreadyExists     = apperrors.New(apperrors.CodeDIDAlreadyExists, "identifier already exists")
	ErrNotFound          = apperrors.New(apperrors.CodeDIDNotFound, "identifier not found")
	ErrNotOwner          = apperrors.New(apperrors.CodeDIDNotOwner, "caller is not the owner")
)

// ErrCorruptJournal reports journal content that cannot be replayed.
var ErrCorruptJournal = errors.New("corrupt journal")

func invalidIdentifier(id, prefix string) error {
	return apperrors.WithMetadata(
		apperrors.CodeDIDInvalid,
		fmt.Sprintf("identifier %q must start with %q followed by at least one character", id, prefix),
		map[string]string{"did": id, "prefix": prefix},
	)
}

func alreadyExists(id string) error {
	return apperrors.WithMetadata(apperrors.CodeDIDAlreadyExists, fmt.Sprintf("identifier %q already exists", id), map[string]string{"did": id})
}

func notFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeDIDNotFound, fmt.Sprintf("identifier %q not found", id), map[string]string{"did": id})
}

func notOwner(id string) error {
	return apperrors.WithMetadata(apperrors.CodeDIDNotOwner, fmt.Sprintf("caller does not own identifier %q", id), map[string]string{"did": id})
}
