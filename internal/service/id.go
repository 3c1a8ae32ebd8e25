package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newUserID returns a short time-ordered id with a random suffix. Uniqueness
// is best-effort.
func newUserID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return strconv.FormatInt(now.UnixMilli(), 36) + suffix
}
