package suspension

import (
	"fmt"
	"time"
)

// RemainingMinutes rounds d up to whole minutes. Display only; state
// decisions compare exact instants.
func RemainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// FormatRemaining renders d as "N minute" or "N minutes", rounded up.
func FormatRemaining(d time.Duration) string {
	n := RemainingMinutes(d)
	if n == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", n)
}
