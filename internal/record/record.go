package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the schema version written by Encode.
const Version = 1

var (
	ErrMalformed          = errors.New("malformed redirect record")
	ErrUnsupportedVersion = errors.New("unsupported redirect record version")
)

// Redirect is the value stored under a slug.
type Redirect struct {
	URL       string
	CreatedAt time.Time
	Owner     string
}

// stored is the persisted layout. Records written before versioning carry no
// "v" and no owner; they decode as version 1.
type stored struct {
	V         int       `json:"v,omitempty"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Owner     string    `json:"owner,omitempty"`
}

func Encode(r Redirect) ([]byte, error) {
	data, err := json.Marshal(stored{
		V:         Version,
		URL:       r.URL,
		CreatedAt: r.CreatedAt,
		Owner:     r.Owner,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode redirect record: %w", err)
	}

	return data, nil
}

func Decode(data []byte) (Redirect, error) {
	var s stored
	if err := json.Unmarshal(data, &s); err != nil {
		return Redirect{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if s.V != 0 && s.V != Version {
		return Redirect{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, s.V)
	}
	if s.URL == "" {
		return Redirect{}, fmt.Errorf("%w: missing url", ErrMalformed)
	}

	return Redirect{
		URL:       s.URL,
		CreatedAt: s.CreatedAt,
		Owner:     s.Owner,
	}, nil
}
