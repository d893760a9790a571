package jobs

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job represents a unit of work claimed from the backing store.
// The runner never mutates identity or the handler payload; it only
// reports outcomes back through the adapter that produced the job.
type Job struct {
	ID        string
	Queue     string
	Handler   string // serialized descriptor, see Descriptor
	Attempts  int
	LastError string
	RunAt     time.Time
}

// Descriptor is the decoded form of a job's handler field: the name of
// the registered handler plus its positional arguments, kept raw so each
// handler can unmarshal them into whatever shape it expects.
type Descriptor struct {
	Handler string            `json:"handler"`
	Args    []json.RawMessage `json:"args"`
}

// ParseDescriptor decodes a serialized handler descriptor and validates
// that it names a handler.
func ParseDescriptor(raw string) (*Descriptor, error) {
	var desc Descriptor
	if err := json.Unmarshal([]byte(raw), &desc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}

	if desc.Handler == "" {
		return nil, fmt.Errorf("%w: handler name is empty", ErrInvalidDescriptor)
	}

	return &desc, nil
}

// Encode serializes a descriptor into the wire form stored on a job.
func (d *Descriptor) Encode() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("failed to encode handler descriptor: %w", err)
	}
	return string(data), nil
}
