package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/r3elabs/execforge/internal/apierr"
)

// resolveUpstream builds a candidate URL list over hostAliases and tries each
// in order, retrying with exponential backoff up to a small bound, before
// surfacing ServiceUnreachable. It returns the first alias that answers an
// HTTP HEAD-equivalent probe.
func resolveUpstream(ctx context.Context, client *http.Client, hostAliases []string, port int, probePath string) (string, error) {
	var lastErr error
	for _, alias := range hostAliases {
		base := fmt.Sprintf("http://%s:%d", alias, port)
		backoff := 50 * time.Millisecond
		for attempt := 0; attempt < 3; attempt++ {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+probePath, nil)
			if err != nil {
				lastErr = err
				break
			}
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
				return base, nil
			}
			lastErr = err
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return "", apierr.Wrap(apierr.KindServiceUnreachable, "no upstream host alias reachable", lastErr)
}
