package utils

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserMention(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    snowflake.ID
		wantErr bool
	}{
		{name: "bare id", input: "123456789012345678", want: 123456789012345678},
		{name: "mention", input: "<@123456789012345678>", want: 123456789012345678},
		{name: "nick mention", input: "<@!123456789012345678>", want: 123456789012345678},
		{name: "too short", input: "12345", wantErr: true},
		{name: "letters", input: "abcdefabcdefabcdef", wantErr: true},
		{name: "channel mention", input: "<#123456789012345678>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseUserMention(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidSnowflake)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseChannelMention(t *testing.T) {
	t.Parallel()

	id, err := ParseChannelMention("<#223456789012345678>")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(223456789012345678), id)

	_, err = ParseChannelMention("general")
	require.ErrorIs(t, err, ErrInvalidSnowflake)
}

func TestIsSnowflake(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSnowflake("1234567890123456"))
	assert.True(t, IsSnowflake("12345678901234567890"))
	assert.False(t, IsSnowflake("123456789012345"))
	assert.False(t, IsSnowflake("123456789012345678901"))
}
