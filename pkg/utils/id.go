package utils

import "github.com/google/uuid"

// NewUUID7 returns a time ordered id. Provisioning batches and worker
// sessions use it so log lines and journal rows sort by creation time.
func NewUUID7() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return id.String(), nil
}

// ShortID trims an id to its last 12 characters for human facing output.
func ShortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[len(id)-12:]
}
