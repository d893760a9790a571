package amqpq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobrunner/internal/jobs"
)

func TestEncodeDecodeJob(t *testing.T) {
	job := &jobs.Job{
		ID:        "a7e3f1c2",
		Queue:     "mailers",
		Handler:   `{"handler":"send_welcome_email","args":[{"userId":7}]}`,
		Attempts:  2,
		LastError: "smtp connection refused",
	}

	body, err := encodeJob(job)
	require.NoError(t, err)

	decoded, err := decodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
}

func TestDecodeJob_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `hello`},
		{name: "missing id", body: `{"handler":"x"}`},
		{name: "missing handler", body: `{"id":"a7e3f1c2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := decodeJob([]byte(tt.body))
			require.Error(t, err)
			assert.Nil(t, job)
		})
	}
}
