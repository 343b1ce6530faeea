package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"empty message", ErrEmptyMessage, CodeInvalidArgument},
		{"wrapped file type", fmt.Errorf("upload: %w", ErrFileTypeNotAllowed), CodeInvalidArgument},
		{"persistence", fmt.Errorf("%w: disk full", ErrPersistence), CodeUnavailable},
		{"transport", ErrTransport, CodeUnavailable},
		{"timeout", ErrDeliveryTimeout, CodeDeadlineExceeded},
		{"unknown", stderrors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestValidationChildrenAreValidation(t *testing.T) {
	req := require.New(t)
	for _, err := range []error{
		ErrEmptyMessage, ErrMessageTooLong, ErrUnknownRoom, ErrInvalidRoomName,
		ErrMissingCorrelationID, ErrFileTooLarge, ErrFileTypeNotAllowed,
		ErrUnknownIdentity, ErrNotInRoom,
	} {
		req.True(IsValidation(err), err.Error())
		req.False(IsPersistence(err), err.Error())
	}
}
