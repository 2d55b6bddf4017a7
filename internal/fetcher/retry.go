package fetcher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/newsgrid/harvester/pkg/plugin"
)

// recoverableMarkers identify transient driver failures by message
// substring. Fragile, but it matches what the upstream drivers actually
// surface; replace with structured kinds if they ever expose them.
var recoverableMarkers = []string{
	"browsercontext.new_page",
	"connection closed while reading from the driver",
	"pipe closed by peer",
}

// maxFetchAttempts bounds the retry loop in FetchWithRetry.
const maxFetchAttempts = 3

// retryBackoffUnit is multiplied by the attempt number between retries.
const retryBackoffUnit = 500 * time.Millisecond

// IsRecoverable reports whether err carries one of the transient driver
// markers and is therefore worth retrying.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range recoverableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// FetchWithRetry fetches url through f, retrying recoverable failures up
// to maxFetchAttempts with linear backoff. Non-recoverable errors return
// immediately.
func FetchWithRetry(ctx context.Context, f plugin.Fetcher, url string) (*plugin.PageData, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := f.Fetch(ctx, url)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !IsRecoverable(err) {
			return nil, err
		}
		if attempt < maxFetchAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * retryBackoffUnit):
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}
