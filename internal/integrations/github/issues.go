package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

func (o ListOptions) normalized() (string, int, error) {
	state := o.State
	switch state {
	case "":
		state = "open"
	case "open", "closed", "all":
	default:
		return "", 0, fmt.Errorf("github: invalid state %q", o.State)
	}
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return state, limit, nil
}

func listQuery(state string, limit int) string {
	q := url.Values{}
	q.Set("state", state)
	q.Set("per_page", strconv.Itoa(limit))
	return q.Encode()
}

// ListIssues lists issues, excluding pull requests, newest first.
func (c *Client) ListIssues(ctx context.Context, owner, repo string, opts ListOptions) ([]Issue, error) {
	base, err := repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	state, limit, err := opts.normalized()
	if err != nil {
		return nil, err
	}

	// The issues endpoint mixes in pull requests, so page until enough
	// plain issues are collected.
	var out []Issue
	next := base + "/issues?" + listQuery(state, limit)
	for next != "" && len(out) < limit {
		var page []Issue
		header, err := c.get(ctx, next, &page)
		if err != nil {
			return nil, err
		}
		for _, issue := range page {
			if issue.PullRequest == nil {
				out = append(out, issue)
			}
		}
		next = parseLinkNext(header.Get("Link"))
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetIssue fetches a single issue.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	base, err := repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	if number <= 0 {
		return nil, errors.New("github: issue number must be positive")
	}
	var out Issue
	if _, err := c.get(ctx, base+"/issues/"+strconv.Itoa(number), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPullRequests lists pull requests, newest first.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, opts ListOptions) ([]PullRequest, error) {
	base, err := repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	state, limit, err := opts.normalized()
	if err != nil {
		return nil, err
	}
	return listPaged[PullRequest](ctx, c, base+"/pulls?"+listQuery(state, limit), limit)
}

// GetPullRequest fetches a single pull request.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	base, err := repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	if number <= 0 {
		return nil, errors.New("github: pull request number must be positive")
	}
	var out PullRequest
	if _, err := c.get(ctx, base+"/pulls/"+strconv.Itoa(number), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
