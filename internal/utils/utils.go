package utils

import (
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// GenerateRequestID generates a random ID for correlating request logs
func GenerateRequestID() string {
	return uuid.NewString()
}

// HumanSize formats a byte count for log lines, e.g. "1.2 kB"
func HumanSize(n int) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
