package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommandShutdownTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		want    time.Duration
		wantErr bool
	}{
		{name: "default", args: []string{"bot"}, want: defaultShutdownTimeout},
		{name: "flag", args: []string{"bot", "--shutdown-timeout", "5s"}, want: 5 * time.Second},
		{name: "invalid", args: []string{"bot", "--shutdown-timeout", "soon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got time.Duration
			called := false

			cmd := newCommand(func(_ context.Context, shutdownTimeout time.Duration) error {
				called = true
				got = shutdownTimeout

				return nil
			})

			err := cmd.Run(t.Context(), tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.False(t, called)

				return
			}

			require.NoError(t, err)
			assert.True(t, called)
			assert.Equal(t, tt.want, got)
		})
	}
}
