package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gogithub "github.com/google/go-github/v68/github"
)

const (
	defaultAPIURL      = "https://api.github.com"
	defaultMaxAttempts = 4
	defaultBaseDelay   = 1 * time.Second
	defaultLowWater    = 10
	maxBackoffDelay    = 30 * time.Second
)

// treeLevelQuery fetches one directory level of a repository tree,
// with blob byte sizes, plus the caller's remaining rate budget.
const treeLevelQuery = `
query($owner: String!, $repo: String!, $expression: String!) {
    repository(owner: $owner, name: $repo) {
        object(expression: $expression) {
            ... on Tree {
                entries {
                    name
                    type
                    path
                    object {
                        ... on Blob {
                            byteSize
                        }
                    }
                }
            }
        }
    }
    rateLimit {
        remaining
        resetAt
    }
}`

// Options tunes the API client.
type Options struct {
	BaseURL     string        // API root; empty means api.github.com
	MaxAttempts int           // total attempts per call, default 4
	BaseDelay   time.Duration // first backoff delay, default 1s
	LowWater    int           // remaining-quota mark that triggers a pause, default 10
	HTTPClient  *http.Client  // base client; transport is wrapped with auth
}

// Client is the only component that talks to the network. It exposes the
// two tree-listing strategies and routes both through shared retry and
// rate-limit throttling.
type Client struct {
	gh          *gogithub.Client
	httpClient  *http.Client
	graphqlURL  string
	limits      rateLimitState
	maxAttempts int
	baseDelay   time.Duration
	lowWater    int
}

// NewClient builds a client whose every request carries the provider's
// credential.
func NewClient(provider Provider, opts Options) (*Client, error) {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: &authTransport{base: rt, provider: provider},
		Timeout:   base.Timeout,
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	gh := gogithub.NewClient(httpClient)
	if baseURL != defaultAPIURL {
		u, err := url.Parse(baseURL + "/")
		if err != nil {
			return nil, fmt.Errorf("parse API URL %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	c := &Client{
		gh:          gh,
		httpClient:  httpClient,
		graphqlURL:  baseURL + "/graphql",
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		lowWater:    opts.LowWater,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.lowWater <= 0 {
		c.lowWater = defaultLowWater
	}
	return c, nil
}

// ResolveDefaultBranch returns the repository's default branch name.
func (c *Client) ResolveDefaultBranch(ctx context.Context, owner, name string) (string, error) {
	var repo *gogithub.Repository
	err := c.withRetry(ctx, fmt.Sprintf("resolve default branch of %s/%s", owner, name), func() error {
		r, resp, err := c.gh.Repositories.Get(ctx, owner, name)
		c.updateLimits(resp)
		if err != nil {
			return c.classifyREST(err)
		}
		repo = r
		return nil
	})
	if err != nil {
		return "", err
	}
	if repo.GetDefaultBranch() == "" {
		return "", fmt.Errorf("%w: repository %s/%s has no default branch", ErrBadResponse, owner, name)
	}
	return repo.GetDefaultBranch(), nil
}

// FetchTree lists the whole repository tree in one call (FlatTree
// strategy). A true truncated flag means the listing is incomplete and
// the caller must fall back to per-directory expansion.
func (c *Client) FetchTree(ctx context.Context, ref Ref) (nodes []TreeNode, truncated bool, err error) {
	err = c.withRetry(ctx, fmt.Sprintf("fetch tree of %s", ref), func() error {
		tree, resp, err := c.gh.Git.GetTree(ctx, ref.Owner, ref.Name, ref.Revision, true)
		c.updateLimits(resp)
		if err != nil {
			return c.classifyREST(err)
		}
		nodes = nodes[:0]
		for _, entry := range tree.Entries {
			switch entry.GetType() {
			case "blob":
				nodes = append(nodes, TreeNode{Path: entry.GetPath(), Kind: Blob, Size: int64(entry.GetSize())})
			case "tree":
				nodes = append(nodes, TreeNode{Path: entry.GetPath(), Kind: Tree})
			}
			// "commit" entries (submodules) are foreign objects, skipped
		}
		truncated = tree.GetTruncated()
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return nodes, truncated, nil
}

// FetchChildren lists the immediate children of one directory via the
// structured query endpoint (GraphQuery strategy). path "" is the root.
func (c *Client) FetchChildren(ctx context.Context, ref Ref, path string) ([]TreeNode, error) {
	expression := ref.Revision + ":" + path
	var nodes []TreeNode
	err := c.withRetry(ctx, fmt.Sprintf("expand %s:%s", ref, path), func() error {
		resp, err := c.postGraphQL(ctx, map[string]interface{}{
			"owner":      ref.Owner,
			"repo":       ref.Name,
			"expression": expression,
		})
		if err != nil {
			return err
		}
		nodes = nodes[:0]
		for _, entry := range resp.Data.Repository.Object.Entries {
			switch entry.Type {
			case "blob":
				nodes = append(nodes, TreeNode{Path: entry.Path, Kind: Blob, Size: entry.Object.ByteSize})
			case "tree":
				nodes = append(nodes, TreeNode{Path: entry.Path, Kind: Tree})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

type graphQLResponse struct {
	Data struct {
		Repository struct {
			Object struct {
				Entries []struct {
					Name   string `json:"name"`
					Type   string `json:"type"`
					Path   string `json:"path"`
					Object struct {
						ByteSize int64 `json:"byteSize"`
					} `json:"object"`
				} `json:"entries"`
			} `json:"object"`
		} `json:"repository"`
		RateLimit struct {
			Remaining int       `json:"remaining"`
			ResetAt   time.Time `json:"resetAt"`
		} `json:"rateLimit"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) postGraphQL(ctx context.Context, variables map[string]interface{}) (*graphQLResponse, error) {
	body, err := json.Marshal(map[string]interface{}{
		"query":     treeLevelQuery,
		"variables": variables,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			return nil, err
		}
		return nil, markTransient(fmt.Errorf("POST %s: %w", c.graphqlURL, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyStatus(resp)
	}

	var parsed graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode query response: %v", ErrBadResponse, err)
	}

	// Partial data alongside errors is still usable; surface the errors
	// in the log rather than failing the call.
	for _, e := range parsed.Errors {
		slog.Warn("structured query reported error", "message", e.Message)
	}

	if !parsed.Data.RateLimit.ResetAt.IsZero() {
		c.limits.update(parsed.Data.RateLimit.Remaining, parsed.Data.RateLimit.ResetAt)
	}
	return &parsed, nil
}

// withRetry runs call with the shared throttling policy: it pauses when
// the remaining quota is low, retries transient failures with jittered
// exponential backoff, and waits out primary quota exhaustion.
func (c *Client) withRetry(ctx context.Context, op string, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying", "op", op, "attempt", attempt+1)
			if err := sleep(ctx, c.backoffDelay(attempt-1)); err != nil {
				return err
			}
		}
		if err := c.limits.waitIfLow(ctx, c.lowWater); err != nil {
			return err
		}

		err := call()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var qe *quotaError
		if errors.As(err, &qe) {
			slog.Warn("primary rate limit hit, pausing until reset", "op", op, "reset_at", qe.reset.Format(time.RFC3339))
			if serr := sleep(ctx, time.Until(qe.reset)); serr != nil {
				return serr
			}
			c.limits.forget()
			lastErr = err
			continue
		}
		if !IsTransient(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
		lastErr = err
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, lastErr)
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt)))
	if delay > maxBackoffDelay {
		delay = maxBackoffDelay
	}
	// ±50% jitter so concurrent walkers sharing quota do not retry in
	// lockstep.
	return time.Duration(float64(delay) * (0.5 + rand.Float64()))
}

func (c *Client) updateLimits(resp *gogithub.Response) {
	if resp == nil || resp.Rate.Reset.IsZero() {
		return
	}
	c.limits.update(resp.Rate.Remaining, resp.Rate.Reset.Time)
}

// classifyREST maps go-github errors onto the scan error taxonomy.
func (c *Client) classifyREST(err error) error {
	var rle *gogithub.RateLimitError
	if errors.As(err, &rle) {
		return &quotaError{reset: rle.Rate.Reset.Time}
	}
	var abuse *gogithub.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return markTransient(fmt.Errorf("secondary rate limit: %w", err))
	}
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch status := ghErr.Response.StatusCode; {
		case status == http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrRepoNotFound, err)
		case status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case status == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		case status >= 500:
			return markTransient(err)
		default:
			return err
		}
	}
	if errors.Is(err, ErrAuth) {
		return err
	}
	// Anything else from the transport (resets, timeouts) is transient.
	return markTransient(err)
}

// classifyStatus maps a raw non-200 GraphQL response onto the taxonomy.
func (c *Client) classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch status := resp.StatusCode; {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: query endpoint returned 401", ErrAuth)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: query endpoint returned 404", ErrRepoNotFound)
	case status == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return &quotaError{reset: resetFromHeader(resp)}
		}
		if resp.Header.Get("Retry-After") != "" {
			return markTransient(fmt.Errorf("secondary rate limit: HTTP 403"))
		}
		return fmt.Errorf("%w: query endpoint returned 403", ErrAccessDenied)
	case status == http.StatusTooManyRequests || status >= 500:
		return markTransient(fmt.Errorf("query endpoint returned %d: %s", status, bytes.TrimSpace(body)))
	default:
		return fmt.Errorf("%w: query endpoint returned %d: %s", ErrBadResponse, status, bytes.TrimSpace(body))
	}
}

func resetFromHeader(resp *http.Response) time.Time {
	epoch, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return time.Now().Add(time.Minute)
	}
	return time.Unix(epoch, 0)
}
