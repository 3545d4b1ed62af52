package errors

import (
	goerrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	assert.NoError(t, WithContext(nil, "ignored"))

	base := New("permission denied")
	err := WithContext(WithContext(base, "open lock"), "acquire")
	assert.EqualError(t, err, "acquire: open lock: permission denied")
	assert.Equal(t, base, RootCause(err))
	assert.True(t, Is(err, base))
}

func TestRootCauseOfPlainError(t *testing.T) {
	base := goerrors.New("plain")
	assert.Equal(t, base, RootCause(base))
}

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		expMsg    string
		expExists bool
	}{
		{
			name:      "Plain",
			err:       New("boom"),
			expExists: false,
		},
		{
			name:      "Friendly",
			err:       NewFriendlyError("fix %q", "config.yaml"),
			expMsg:    `fix "config.yaml"`,
			expExists: true,
		},
		{
			name:      "WrappedFriendly",
			err:       WithContext(NewFriendlyError("fix it"), "load config"),
			expMsg:    "fix it",
			expExists: true,
		},
		{
			name:      "MissingTool",
			err:       WithContext(MissingTool{Name: "rclone"}, "check"),
			expMsg:    MissingTool{Name: "rclone"}.FriendlyMessage(),
			expExists: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			msg, ok := GetFriendlyMessage(test.err)
			assert.Equal(t, test.expExists, ok)
			assert.Equal(t, test.expMsg, msg)
		})
	}
}

func TestMissingToolUnwrap(t *testing.T) {
	cause := New("exec: \"rclone\": executable file not found in $PATH")
	err := WithContext(MissingTool{Name: "rclone", Err: cause}, "check transfer tool")

	var missing MissingTool
	assert.True(t, As(err, &missing))
	assert.Equal(t, "rclone", missing.Name)
	assert.True(t, Is(err, cause))
}
