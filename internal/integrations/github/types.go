package github

import "time"

// User is the subset of a GitHub account returned alongside resources.
type User struct {
	Login string `json:"login"`
}

type Label struct {
	Name string `json:"name"`
}

// Repository is the subset of repository metadata surfaced to the agent.
type Repository struct {
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	HTMLURL         string    `json:"html_url"`
	DefaultBranch   string    `json:"default_branch"`
	Language        string    `json:"language"`
	Private         bool      `json:"private"`
	Archived        bool      `json:"archived"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	OpenIssuesCount int       `json:"open_issues_count"`
	Topics          []string  `json:"topics,omitempty"`
	PushedAt        time.Time `json:"pushed_at"`
}

// Issue is an issue or, when PullRequest is set, a pull request as listed by
// the issues endpoint.
type Issue struct {
	Number      int        `json:"number"`
	Title       string     `json:"title"`
	State       string     `json:"state"`
	Body        string     `json:"body,omitempty"`
	HTMLURL     string     `json:"html_url"`
	User        User       `json:"user"`
	Labels      []Label    `json:"labels,omitempty"`
	Comments    int        `json:"comments"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request,omitempty"`
}

// PullRequest is the subset of pull request fields surfaced to the agent.
type PullRequest struct {
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	State        string     `json:"state"`
	Body         string     `json:"body,omitempty"`
	HTMLURL      string     `json:"html_url"`
	User         User       `json:"user"`
	Draft        bool       `json:"draft"`
	Merged       bool       `json:"merged"`
	Head         BranchRef  `json:"head"`
	Base         BranchRef  `json:"base"`
	Additions    int        `json:"additions,omitempty"`
	Deletions    int        `json:"deletions,omitempty"`
	ChangedFiles int        `json:"changed_files,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
}

type BranchRef struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

// ContentEntry is one item of a directory listing, or a single file when
// fetched directly.
type ContentEntry struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding,omitempty"`
	Content  string `json:"content,omitempty"`
}

// File is a decoded file.
type File struct {
	Path      string `json:"path"`
	Size      int    `json:"size"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated,omitempty"`
}

// ListOptions filters issue and pull request listings.
type ListOptions struct {
	// State is open, closed or all. Empty means open.
	State string
	// Limit bounds the number of items returned. Zero means DefaultListLimit.
	Limit int
}
