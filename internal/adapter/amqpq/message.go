package amqpq

import (
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/jobrunner/internal/jobs"
)

// message is the wire form of a job carried on the queue. Attempts travel
// with the message because the broker itself keeps no per-job counter.
type message struct {
	ID        string `json:"id"`
	Queue     string `json:"queue"`
	Handler   string `json:"handler"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}

func encodeJob(job *jobs.Job) ([]byte, error) {
	body, err := json.Marshal(message{
		ID:        job.ID,
		Queue:     job.Queue,
		Handler:   job.Handler,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode job message: %w", err)
	}
	return body, nil
}

func decodeJob(body []byte) (*jobs.Job, error) {
	var msg message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode job message: %w", err)
	}

	if msg.ID == "" {
		return nil, fmt.Errorf("job message has no id")
	}
	if msg.Handler == "" {
		return nil, fmt.Errorf("job message %s has no handler", msg.ID)
	}

	return &jobs.Job{
		ID:        msg.ID,
		Queue:     msg.Queue,
		Handler:   msg.Handler,
		Attempts:  msg.Attempts,
		LastError: msg.LastError,
	}, nil
}
