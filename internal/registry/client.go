// Package registry implements the image repository against a Docker
// registry HTTP API v2.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"spacegun/internal/api"
	"spacegun/internal/cache"
	"spacegun/internal/clock"
	"spacegun/internal/domain"
	"spacegun/internal/metrics"
	"spacegun/pkg/logging"
)

const subsystem = "Registry"

// manifestMediaTypes are accepted when resolving a tag to a digest. The
// digest of a multi-arch index is the one a pull by digest needs.
var manifestMediaTypes = []string{
	"application/vnd.oci.image.index.v1+json",
	"application/vnd.docker.distribution.manifest.list.v2+json",
	"application/vnd.oci.image.manifest.v1+json",
	"application/vnd.docker.distribution.manifest.v2+json",
}

// Options configures a Client.
type Options struct {
	URL      string
	Username string
	Password string
	CacheTTL time.Duration
	Clock    clock.Clock
	Metrics  *metrics.Metrics
}

// Client is a registry v2 client. Tags and images are memoized for
// Options.CacheTTL.
type Client struct {
	baseURL  string
	host     string
	username string
	password string
	http     *retryablehttp.Client

	catalog *cache.Cache[[]string]
	tags    *cache.Cache[[]string]
	images  *cache.Cache[domain.Image]
}

var _ domain.ImageRepository = (*Client)(nil)

// New creates a client for the registry at opts.URL.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL %q: %w", opts.URL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid registry URL %q: scheme and host are required", opts.URL)
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.RetryWaitMin = 250 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.Logger = leveledLogger{}
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:  strings.TrimRight(u.String(), "/"),
		host:     u.Host,
		username: opts.Username,
		password: opts.Password,
		http:     httpClient,
		catalog:  cache.New[[]string]("catalog", opts.CacheTTL, opts.Clock).Instrument(opts.Metrics),
		tags:     cache.New[[]string]("tags", opts.CacheTTL, opts.Clock).Instrument(opts.Metrics),
		images:   cache.New[domain.Image]("images", opts.CacheTTL, opts.Clock).Instrument(opts.Metrics),
	}, nil
}

// List returns every repository in the registry catalog, sorted.
func (c *Client) List(ctx context.Context) ([]string, error) {
	return c.catalog.Get(ctx, "", func(ctx context.Context) ([]string, error) {
		var names []string
		next := "/v2/_catalog"
		for next != "" {
			var page struct {
				Repositories []string `json:"repositories"`
			}
			resp, err := c.do(ctx, http.MethodGet, next, nil)
			if err != nil {
				return nil, err
			}
			err = decode(resp, &page)
			if err != nil {
				return nil, fmt.Errorf("failed to read catalog: %w", err)
			}
			names = append(names, page.Repositories...)
			next = nextPage(resp.Header.Get("Link"))
		}
		sort.Strings(names)
		return names, nil
	})
}

// Tags returns the tags of the repository name.
func (c *Client) Tags(ctx context.Context, name string) ([]string, error) {
	return c.tags.Get(ctx, name, func(ctx context.Context) ([]string, error) {
		var body struct {
			Tags []string `json:"tags"`
		}
		resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v2/%s/tags/list", name), nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, api.NewNotFoundError("image", name)
		}
		if err := decode(resp, &body); err != nil {
			return nil, fmt.Errorf("failed to read tags of %s: %w", name, err)
		}
		sort.Strings(body.Tags)
		return body.Tags, nil
	})
}

// Image resolves name:tag to its manifest digest. The URL of the result
// pins the digest, so a deployment updated to it does not drift when the
// tag moves. A tag without a manifest drops the cached tag list of name.
func (c *Client) Image(ctx context.Context, name, tag string) (domain.Image, error) {
	image, err := c.resolve(ctx, name, tag)
	if api.IsNotFound(err) {
		c.tags.Invalidate(name)
	}
	return image, err
}

func (c *Client) resolve(ctx context.Context, name, tag string) (domain.Image, error) {
	return c.images.Get(ctx, name+":"+tag, func(ctx context.Context) (domain.Image, error) {
		headers := http.Header{"Accept": {strings.Join(manifestMediaTypes, ", ")}}
		resp, err := c.do(ctx, http.MethodHead, fmt.Sprintf("/v2/%s/manifests/%s", name, tag), headers)
		if err != nil {
			return domain.Image{}, err
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return domain.Image{}, api.NewNotFoundError("image", name+":"+tag)
		case resp.StatusCode != http.StatusOK:
			return domain.Image{}, fmt.Errorf("registry returned status %d for %s:%s", resp.StatusCode, name, tag)
		}
		digest := resp.Header.Get("Docker-Content-Digest")
		if digest == "" {
			return domain.Image{}, fmt.Errorf("registry returned no digest for %s:%s", name, tag)
		}
		return domain.Image{
			Name: name,
			Tag:  tag,
			URL:  fmt.Sprintf("%s/%s@%s", c.host, name, digest),
		}, nil
	})
}

func (c *Client) do(ctx context.Context, method, path string, headers http.Header) (*http.Response, error) {
	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header[k] = v
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request %s %s failed: %w", method, path, err)
	}
	return resp, nil
}

func decode(resp *http.Response, into interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

// nextPage extracts the target of a Link: <...>; rel="next" header.
func nextPage(link string) string {
	if link == "" || !strings.Contains(link, `rel="next"`) {
		return ""
	}
	start := strings.Index(link, "<")
	end := strings.Index(link, ">")
	if start < 0 || end <= start {
		return ""
	}
	return link[start+1 : end]
}

// leveledLogger sends retryablehttp logs to the Registry subsystem.
type leveledLogger struct{}

func (leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	logging.Warn(subsystem, "%s %v", msg, keysAndValues)
}

func (leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug(subsystem, "%s %v", msg, keysAndValues)
}

func (leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	logging.Debug(subsystem, "%s %v", msg, keysAndValues)
}

func (leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	logging.Warn(subsystem, "%s %v", msg, keysAndValues)
}
