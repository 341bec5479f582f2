package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServiceError_MatchesSentinelThroughWrapping(t *testing.T) {
	err := NewServiceError(ErrCodeShareNotFound, ErrShareNotFound, "Share with id '%s' not found for the specified user", "s1")
	wrapped := fmt.Errorf("accept share: %w", err)

	require.ErrorIs(t, wrapped, ErrShareNotFound)
	require.Equal(t, "Share with id 's1' not found for the specified user", err.Error())

	var se *ServiceError
	require.True(t, errors.As(wrapped, &se))
	require.Equal(t, ErrCodeShareNotFound, se.Code)
}

func TestServiceError_DoesNotMatchOtherSentinels(t *testing.T) {
	err := NewServiceError(ErrCodeLoginFailed, ErrLoginFailed, "login failed")
	require.NotErrorIs(t, err, ErrorNotFound)
	require.NotErrorIs(t, err, ErrShareNotFound)
}
