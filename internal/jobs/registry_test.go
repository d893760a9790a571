package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopFactory() Handler {
	return HandlerFunc(func(ctx context.Context, args []json.RawMessage) error {
		return nil
	})
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name        string
		handlerName string
		factory     Factory
		wantErr     string
	}{
		{
			name:        "valid registration",
			handlerName: "send_welcome_email",
			factory:     noopFactory,
		},
		{
			name:        "empty name",
			handlerName: "",
			factory:     noopFactory,
			wantErr:     "handler name cannot be empty",
		},
		{
			name:        "nil factory",
			handlerName: "send_welcome_email",
			factory:     nil,
			wantErr:     "handler factory cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			err := registry.Register(tt.handlerName, tt.factory)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Contains(t, registry.Names(), tt.handlerName)
			}
		})
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register("cleanup", noopFactory))

	err := registry.Register("cleanup", noopFactory)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistry_Lookup(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register("cleanup", noopFactory))

	factory, err := registry.Lookup("cleanup")
	require.NoError(t, err)
	require.NotNil(t, factory)
	assert.NotNil(t, factory())
}

func TestRegistry_Lookup_Unknown(t *testing.T) {
	registry := NewRegistry()

	factory, err := registry.Lookup("SendWelcomeEmailJob")
	require.Error(t, err)
	assert.Nil(t, factory)

	var unknownErr *UnknownHandlerError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "SendWelcomeEmailJob", unknownErr.Name)
	assert.Contains(t, err.Error(), "SendWelcomeEmailJob")
}
