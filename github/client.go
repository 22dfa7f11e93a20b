/*
Copyright 2016 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package github is the typed Platform Gateway: list-statuses,
// post-status, post-comment, plus webhook payload validation and
// decoding. It wraps github.com/google/go-github/github's REST client
// rather than hand-rolling request/response structs, since go-github
// already supplies typed models for everything this bot's two event
// handlers need.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gogithub "github.com/google/go-github/github"
)

// PlatformError wraps a non-2xx response from the platform API.
type PlatformError struct {
	StatusCode int
	Message    string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("github: platform error %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether retrying the same request might succeed.
func (e *PlatformError) Transient() bool {
	return e.StatusCode >= 500
}

// basicAuthTransport performs the HTTP Basic authentication the platform
// expects (username + personal access token). go-github's usual
// oauth2-bearer wiring doesn't fit this credential shape, so a small
// RoundTripper stands in for it.
type basicAuthTransport struct {
	username string
	token    string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.token)
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// Status is the per-commit check status this bot reconciles.
type Status struct {
	Context     string
	State       string // one of "success", "failure", "pending", "error"
	Description string
}

// Client is the Platform Gateway used by the dispatcher and the status
// reconciler.
type Client struct {
	rest *gogithub.Client
	dry  bool
}

const (
	maxRetries = 5
	retryDelay = 2 * time.Second
)

// NewClient builds a live Platform Gateway authenticated with username
// and personalAccessToken against endpoint (e.g. "https://api.github.com/").
func NewClient(username, personalAccessToken, endpoint string) (*Client, error) {
	httpClient := &http.Client{
		Transport: &basicAuthTransport{username: username, token: personalAccessToken},
	}
	rest := gogithub.NewClient(httpClient)
	if endpoint != "" {
		u, err := parseAPIBaseURL(endpoint)
		if err != nil {
			return nil, err
		}
		rest.BaseURL = u
	}
	return &Client{rest: rest}, nil
}

// NewDryRunClient builds a gateway that performs reads but never mutates.
func NewDryRunClient(username, personalAccessToken, endpoint string) (*Client, error) {
	c, err := NewClient(username, personalAccessToken, endpoint)
	if err != nil {
		return nil, err
	}
	c.dry = true
	return c, nil
}

func parseAPIBaseURL(endpoint string) (*url.URL, error) {
	if endpoint[len(endpoint)-1] != '/' {
		endpoint += "/"
	}
	return url.Parse(endpoint)
}

// ListStatuses returns every status context/state published for sha, in
// the order the platform returns them.
func (c *Client) ListStatuses(ctx context.Context, org, repo, sha string) ([]Status, error) {
	var out []Status
	opts := &gogithub.ListOptions{PerPage: 100}
	for {
		var statuses []*gogithub.RepoStatus
		var resp *gogithub.Response
		err := withRetry(func() error {
			var callErr error
			statuses, resp, callErr = c.rest.Repositories.ListStatuses(ctx, org, repo, sha, opts)
			return callErr
		}, func() *gogithub.Response { return resp })
		if err != nil {
			return nil, err
		}
		for _, s := range statuses {
			out = append(out, Status{
				Context:     s.GetContext(),
				State:       s.GetState(),
				Description: s.GetDescription(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// PostStatus publishes a status on sha. It is a no-op in dry-run mode.
func (c *Client) PostStatus(ctx context.Context, org, repo, sha string, s Status) error {
	if c.dry {
		return nil
	}
	repoStatus := &gogithub.RepoStatus{
		State:       gogithub.String(s.State),
		Context:     gogithub.String(s.Context),
		Description: gogithub.String(s.Description),
	}
	var resp *gogithub.Response
	return withRetry(func() error {
		var callErr error
		_, resp, callErr = c.rest.Repositories.CreateStatus(ctx, org, repo, sha, repoStatus)
		return callErr
	}, func() *gogithub.Response { return resp })
}

// PostIssueComment posts a Markdown comment to the PR (issue) prNumber.
// It is a no-op in dry-run mode.
func (c *Client) PostIssueComment(ctx context.Context, org, repo string, prNumber int, body string) error {
	if c.dry {
		return nil
	}
	comment := &gogithub.IssueComment{Body: gogithub.String(body)}
	var resp *gogithub.Response
	return withRetry(func() error {
		var callErr error
		_, resp, callErr = c.rest.Issues.CreateComment(ctx, org, repo, prNumber, comment)
		return callErr
	}, func() *gogithub.Response { return resp })
}

// withRetry retries transient (5xx / transport) failures with bounded
// exponential backoff; 4xx responses surface immediately as a
// PlatformError.
func withRetry(call func() error, lastResponse func() *gogithub.Response) error {
	backoff := retryDelay
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = call()
		if err == nil {
			return nil
		}
		resp := lastResponse()
		if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return &PlatformError{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	statusCode := 0
	if resp := lastResponse(); resp != nil {
		statusCode = resp.StatusCode
	}
	return &PlatformError{StatusCode: statusCode, Message: err.Error()}
}
