package authmodel_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tesla-access/tesla-client/authmodel"
)

func TestIsServerError(t *testing.T) {
	type withMessage struct {
		ErrorMessage *string `json:"errorMessage,omitempty"`
		Other        int     `json:"other"`
	}
	empty := ""

	cases := []struct {
		name  string
		value any
		want  bool
	}{
		{"nil", nil, false},
		{"server error pointer", authmodel.NewServerError("boom"), true},
		{"server error value", authmodel.ServerError{}, true},
		{"wrapped server error", fmt.Errorf("logout: %w", authmodel.NewServerError("boom")), true},
		{"plain error", errors.New("boom"), false},
		{"map with key", map[string]any{"errorMessage": nil}, true},
		{"map without key", map[string]any{"message": "ok"}, false},
		{"string map", map[string]string{"errorMessage": ""}, true},
		{"json with key", []byte(`{"errorMessage":"x"}`), true},
		{"json array", []byte(`[1,2]`), false},
		{"token pair", authmodel.TokenPair{AccessToken: "a"}, false},
		{"who am i", &authmodel.WhoAmI{ID: "1"}, false},
		{"struct with empty message", withMessage{ErrorMessage: &empty}, true},
		{"struct with unset message", withMessage{Other: 1}, false},
		{"string", "errorMessage", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, authmodel.IsServerError(tc.value))
		})
	}
}

func TestServerError_Is(t *testing.T) {
	sentinel := errors.New("unable to refresh access token")
	err := fmt.Errorf("call: %w", authmodel.NewServerError("unable to refresh access token"))

	require.True(t, errors.Is(err, sentinel))
	require.True(t, errors.Is(err, authmodel.NewServerError("unable to refresh access token")))
	require.False(t, errors.Is(err, errors.New("other")))
}

func TestWrapServerError(t *testing.T) {
	require.Nil(t, authmodel.WrapServerError(nil))

	cause := errors.New("dial tcp: connection refused")
	se := authmodel.WrapServerError(cause)
	require.Equal(t, "dial tcp: connection refused", se.ErrorMessage)
	require.ErrorIs(t, se, cause)

	original := authmodel.NewServerError("username required")
	require.Same(t, original, authmodel.WrapServerError(fmt.Errorf("x: %w", original)))
}
