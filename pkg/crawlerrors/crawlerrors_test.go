package crawlerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError_UnwrapsToErrConfig(t *testing.T) {
	cause := errors.New("APP_PACKAGE must be set")
	err := NewConfigError("app_package", cause)
	assert.ErrorIs(t, err, ErrConfig)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "app_package")
}

func TestPersistenceError_UnwrapsToErrPersistence(t *testing.T) {
	cause := errors.New("disk full")
	err := NewPersistenceError("upsert_screen", cause, false)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
}

func TestIsTerminalPersistence_TrueWhenMarkedTerminal(t *testing.T) {
	err := NewPersistenceError("open_db", errors.New("no such file"), true)
	assert.True(t, IsTerminalPersistence(err))
}

func TestIsTerminalPersistence_FalseForNonTerminalOrOtherError(t *testing.T) {
	assert.False(t, IsTerminalPersistence(NewPersistenceError("x", errors.New("y"), false)))
	assert.False(t, IsTerminalPersistence(errors.New("unrelated")))
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{ErrConfig, ErrSession, ErrElementNotFound, ErrGestureFailed, ErrAI, ErrContextMismatch, ErrPersistence}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}
