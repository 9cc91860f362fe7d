package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"privloc/internal/domain/privacy"
)

func TestStorageErrKeepsSentinelAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := storageErr("querying consent record", cause)

	assert.ErrorIs(t, err, privacy.ErrStorage)
	assert.Contains(t, err.Error(), "querying consent record")
	assert.Contains(t, err.Error(), "connection refused")
}
