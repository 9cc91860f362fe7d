package storage

import (
	"fmt"

	"privloc/internal/domain/privacy"
)

// storageErr tags a failed statement with the storage sentinel while keeping
// the driver's error visible in the message.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, privacy.ErrStorage)
}
