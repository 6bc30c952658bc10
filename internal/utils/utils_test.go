package utils_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tesla-access/tesla-client/internal/utils"
)

func TestToStringSlice(t *testing.T) {
	require.Equal(t, []string{"admin", "editor"}, utils.ToStringSlice([]any{"admin", 3, "editor"}))
	require.Equal(t, []string{"viewer"}, utils.ToStringSlice([]string{"viewer"}))
	require.Nil(t, utils.ToStringSlice("admin"))
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", utils.FirstNonEmpty("", "b", "c"))
	require.Equal(t, "", utils.FirstNonEmpty("", ""))
}

func TestValue(t *testing.T) {
	type claims struct{ Subject string }
	require.Equal(t, claims{}, utils.Value[claims](nil))
	require.Equal(t, "42", utils.Value(&claims{Subject: "42"}).Subject)
}
