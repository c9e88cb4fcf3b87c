package websvc

import (
	"fmt"
	"math/rand/v2"
	"net"

	"github.com/r3elabs/execforge/internal/apierr"
)

// AllocatePort picks an integer uniformly from [start,end], confirming by
// attempting to bind a TCP listener on the host; retries up to maxAttempts
// times per spec.md §4.4.
func AllocatePort(start, end, maxAttempts int) (int, error) {
	if maxAttempts <= 0 {
		maxAttempts = 100
	}
	span := end - start + 1
	if span <= 0 {
		return 0, apierr.New(apierr.KindInfra, "invalid port range")
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := start + rand.IntN(span)
		if tryBind(candidate) {
			return candidate, nil
		}
	}
	return 0, apierr.New(apierr.KindInfra, fmt.Sprintf("no free port in [%d,%d] after %d attempts", start, end, maxAttempts))
}

func tryBind(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
