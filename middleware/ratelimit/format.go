package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// RetryAfterSeconds formata d para o header Retry-After, arredondando para cima.
// Retry-After=0 faria o cliente tentar de novo na hora, então o mínimo é 1.
func RetryAfterSeconds(d time.Duration) string {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}
