package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		wantHandler string
		wantArgs    int
	}{
		{
			name:        "valid descriptor with args",
			raw:         `{"handler":"SendWelcomeEmailJob","args":[{"userId":7}]}`,
			wantHandler: "SendWelcomeEmailJob",
			wantArgs:    1,
		},
		{
			name:        "valid descriptor without args",
			raw:         `{"handler":"cleanup"}`,
			wantHandler: "cleanup",
			wantArgs:    0,
		},
		{
			name:    "malformed json",
			raw:     `{"handler":`,
			wantErr: true,
		},
		{
			name:    "missing handler name",
			raw:     `{"args":[1,2]}`,
			wantErr: true,
		},
		{
			name:    "empty payload",
			raw:     ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := ParseDescriptor(tt.raw)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidDescriptor)
				assert.Nil(t, desc)
			} else {
				require.NoError(t, err)
				require.NotNil(t, desc)
				assert.Equal(t, tt.wantHandler, desc.Handler)
				assert.Len(t, desc.Args, tt.wantArgs)
			}
		})
	}
}

func TestDescriptor_Encode(t *testing.T) {
	desc := &Descriptor{
		Handler: "send_welcome_email",
		Args:    []json.RawMessage{json.RawMessage(`{"userId":7}`)},
	}

	raw, err := desc.Encode()
	require.NoError(t, err)

	parsed, err := ParseDescriptor(raw)
	require.NoError(t, err)
	assert.Equal(t, "send_welcome_email", parsed.Handler)
	require.Len(t, parsed.Args, 1)
	assert.JSONEq(t, `{"userId":7}`, string(parsed.Args[0]))
}
