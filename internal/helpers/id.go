package helpers

import (
	"math/rand"
	"strconv"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateID returns prefix_<unix millis>_<9 random base36 chars>. The
// suffix is not cryptographically random.
func GenerateID(prefix string) string {
	return generateID(prefix, time.Now())
}

func generateID(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = "id"
	}

	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.Intn(len(base36))]
	}

	return prefix + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}
