package profiles

import (
	"context"
	"errors"

	"github.com/disgoorg/disgo/discord"
)

// ErrInvalidArgs is returned by Setup when the plugin arguments cannot be used.
var ErrInvalidArgs = errors.New("invalid arguments")

// Plugin renders one embed field of a user profile from a stored configuration.
type Plugin interface {
	// Name is the identifier users pass to !profile set and !profile remove.
	Name() string
	// SetupArgs is the argument hint shown in usage replies.
	SetupArgs() string
	// Setup validates the arguments and returns the configuration to store.
	Setup(ctx context.Context, args string) (string, error)
	// Field renders the stored configuration.
	Field(ctx context.Context, config string) (discord.EmbedField, error)
}

// APIError is a third-party API failure with a machine-readable code.
type APIError struct {
	Code string
	Err  error
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}

	return e.Code
}

// Unwrap returns the underlying failure.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the code of an APIError in the chain, empty otherwise.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	return ""
}

// InlineField builds an inline embed field.
func InlineField(name, value string) discord.EmbedField {
	inline := true
	return discord.EmbedField{Name: name, Value: value, Inline: &inline}
}
