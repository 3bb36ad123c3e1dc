package gallery

import (
	"encoding/hex"

	"github.com/google/uuid"

	"gallery/internal/sniff"
)

// NewName returns a fresh storage name for an image of the given kind: the
// hex form of a random UUID plus the sniffed extension. Nothing the client
// sent is part of it.
func NewName(kind sniff.Kind) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id[:]) + "." + kind.Extension, nil
}
