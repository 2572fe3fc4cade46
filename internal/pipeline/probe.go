package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// probe performs one GET against hook. Any 2xx answer passes.
func probe(ctx context.Context, client *http.Client, hook string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hook, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s failed: %w", hook, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s returned status %d", hook, resp.StatusCode)
	}
	return nil
}
