package utils

import "time"

func MsToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
