package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penwyp/go-ha-timeline/internal/core/model"
)

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected func(string) string
	}{
		{
			name:  "home directory expansion",
			input: "~/test/path",
			expected: func(home string) string {
				return filepath.Join(home, "test/path")
			},
		},
		{
			name:  "absolute path unchanged",
			input: "/absolute/path",
			expected: func(home string) string {
				return "/absolute/path"
			},
		},
		{
			name:  "relative path converted to absolute",
			input: "relative/path",
			expected: func(home string) string {
				abs, _ := filepath.Abs("relative/path")
				return abs
			},
		},
	}

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			expected := tt.expected(home)
			assert.Equal(t, expected, result)
		})
	}
}

func TestEnsureDir(t *testing.T) {
	tempDir := t.TempDir()
	testDir := filepath.Join(tempDir, "test", "nested", "dir")

	err := ensureDir(testDir)
	assert.NoError(t, err)

	// Verify directory was created
	info, err := os.Stat(testDir)
	assert.NoError(t, err)
	assert.True(t, info.IsDir())

	// Test idempotency
	err = ensureDir(testDir)
	assert.NoError(t, err)
}

func TestRootCommandFlags(t *testing.T) {
	tests := []struct {
		flag         string
		defaultValue string
		shorthand    string
	}{
		{"output", "text", "o"},
		{"width", "0", ""},
		{"expand", "false", "e"},
		{"color", "false", ""},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			flag := rootCmd.Flags().Lookup(tt.flag)
			require.NotNil(t, flag)
			assert.Equal(t, tt.defaultValue, flag.DefValue)
			if tt.shorthand != "" {
				assert.Equal(t, tt.shorthand, flag.Shorthand)
			}
		})
	}

	for _, name := range []string{"config", "debug", "hours", "limit"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, defaultConfigFile, rootCmd.PersistentFlags().Lookup("config").DefValue)
}

func TestSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"watch", "serve", "validate"} {
		assert.True(t, names[name], name)
	}
	assert.NotNil(t, rootCmd.RunE, "the root command prints the timeline")
}

func TestFormatFlagAlias(t *testing.T) {
	assert.NotNil(t, rootCmd.Flags().Lookup("format"))
	assert.NotNil(t, rootCmd.Flags().Lookup("output"))
}

func TestCardOverrides(t *testing.T) {
	resetFlags(t)
	require.NoError(t, rootCmd.PersistentFlags().Set("hours", "6"))

	apply := cardOverrides(rootCmd)
	card := &model.CardConfig{Entities: []model.EntityConfig{{Entity: "light.hall"}}, Limit: 3}
	require.NoError(t, apply(card))
	assert.Equal(t, 6.0, card.Hours)
	assert.Equal(t, 3, card.Limit, "unset flags leave the card alone")

	require.NoError(t, rootCmd.PersistentFlags().Set("limit", "-1"))
	err := cardOverrides(rootCmd)(card)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}
