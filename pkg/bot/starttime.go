package bot

import (
	"sync"
	"time"
)

var startTime = sync.OnceValue(func() time.Time { return time.Now() })

// MarkStart fixes the process start time. Later calls have no effect; the
// first call to StartTime fixes it too.
func MarkStart() time.Time {
	return startTime()
}

func StartTime() time.Time {
	return startTime()
}

func Uptime() time.Duration {
	return time.Since(startTime())
}
