package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"spacegun/pkg/logging"
)

// Transport carries one procedure call.
type Transport interface {
	Invoke(ctx context.Context, module, name string, params json.RawMessage) (json.RawMessage, error)
}

// LocalTransport calls handlers in process.
type LocalTransport struct {
	Registry *Registry
}

// NewLocalTransport returns a transport over r.
func NewLocalTransport(r *Registry) *LocalTransport {
	return &LocalTransport{Registry: r}
}

func (t *LocalTransport) Invoke(ctx context.Context, module, name string, params json.RawMessage) (json.RawMessage, error) {
	h, err := t.Registry.Lookup(module, name)
	if err != nil {
		return nil, err
	}
	result, err := h(ctx, params)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result of %s/%s: %w", module, name, err)
	}
	return out, nil
}

// HTTPTransport posts calls to a spacegun server.
type HTTPTransport struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewHTTPTransport returns a transport for the server at baseURL, e.g.
// http://localhost:3000. Only requests that never reached the server are
// retried, since procedures may not be idempotent.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = nil
	client.CheckRetry = retryUnsent
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func retryUnsent(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	var opErr *net.OpError
	if err != nil && errors.As(err, &opErr) && opErr.Op == "dial" {
		return true, nil
	}
	return false, nil
}

func (t *HTTPTransport) Invoke(ctx context.Context, module, name string, params json.RawMessage) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/api/%s/%s", t.baseURL, module, name)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(params))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s/%s: %w", module, name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logging.Debug("API", "POST %s", url)
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s/%s on %s: %w", module, name, t.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s/%s: %w", module, name, err)
	}
	if resp.StatusCode != http.StatusOK {
		remote := &RemoteError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, remote); jsonErr != nil || remote.Message == "" {
			remote.Code = CodeInternal
			remote.Message = fmt.Sprintf("%s/%s returned status %d", module, name, resp.StatusCode)
		}
		return nil, remote
	}
	return body, nil
}

// NewTransport picks the transport of an execution context.
func NewTransport(ec ExecutionContext, registry *Registry, serverURL string) Transport {
	if ec == Client {
		return NewHTTPTransport(serverURL)
	}
	return NewLocalTransport(registry)
}
