package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmulyadi/Github-Agent/internal/domain"
	"github.com/jmulyadi/Github-Agent/internal/integrations/github"
)

// maxToolResult bounds a single tool result fed back to the model.
const maxToolResult = 16 << 10

// githubAPI is the subset of the GitHub client the tools call.
type githubAPI interface {
	GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error)
	ListIssues(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.Issue, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*github.Issue, error)
	ListPullRequests(ctx context.Context, owner, repo string, opts github.ListOptions) ([]github.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (*github.File, error)
	ListDirectory(ctx context.Context, owner, repo, path, ref string) ([]github.ContentEntry, error)
}

// toolArgs is the union of every tool's arguments.
type toolArgs struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
	State  string `json:"state"`
	Limit  int    `json:"limit"`
	Path   string `json:"path"`
	Ref    string `json:"ref"`
}

type tool struct {
	spec domain.ToolSpec
	run  func(ctx context.Context, gh githubAPI, args toolArgs) (any, error)
}

const (
	repoProps = `"owner":{"type":"string","description":"Repository owner (user or organization)"},` +
		`"repo":{"type":"string","description":"Repository name"}`
	listProps = `"state":{"type":"string","enum":["open","closed","all"],"description":"Filter by state, default open"},` +
		`"limit":{"type":"integer","minimum":1,"maximum":100,"description":"Maximum items to return, default 20"}`
	pathProps = `"path":{"type":"string","description":"Path inside the repository"},` +
		`"ref":{"type":"string","description":"Branch, tag or commit; default branch when omitted"}`
	numberProp = `"number":{"type":"integer","minimum":1}`
)

func schema(props string, required ...string) []byte {
	return []byte(`{"type":"object","properties":{` + props + `},"required":["` + strings.Join(required, `","`) + `"]}`)
}

// githubTools is the fixed, ordered tool set offered to the model.
var githubTools = []tool{
	{
		spec: domain.ToolSpec{
			Name:        "get_repository",
			Description: "Get repository metadata: description, default branch, language, stars, forks and open issue count.",
			Parameters:  schema(repoProps, "owner", "repo"),
		},
		run: func(ctx context.Context, gh githubAPI, a toolArgs) (any, error) {
			return gh.GetRepository(ctx, a.Owner, a.Repo)
		},
	},
	{
		spec: domain.ToolSpec{
			Name:        "list_issues",
			Description: "List issues of a repository, excluding pull requests, most recent first.",
			Parameters:  schema(repoProps+","+listProps, "owner", "repo"),
		},
		run: func(ctx context.Context, gh githubAPI, a toolArgs) (any, error) {
			issues, err := gh.ListIssues(ctx, a.Owner, a.Repo, github.ListOptions{State: a.State, Limit: a.Limit})
			if err != nil {
				return nil, err
			}
			for i := range issues {
				issues[i].Body = ""
			}
			return issues, nil
		},
	},
	{
		spec: domain.ToolSpec{
			Name:        "get_issue",
			Description: "Get a single issue including its body.",
			Parameters:  schema(repoProps+","+numberProp, "owner", "repo", "number"),
		},
		run: func(ctx context.Context, gh githubAPI, a toolArgs) (any, error) {
			return gh.GetIssue(ctx, a.Owner, a.Repo, a.Number)
		},
	},
	{
		spec: domain.ToolSpec{
			Name:        "list_pull_requests",
			Description: "List pull requests of a repository, most recent first.",
			Parameters:  schema(repoProps+","+listProps, "owner", "repo"),
		},
		run: func(ctx context.Context, gh githubAPI, a toolArgs) (any, error) {
			prs, err := gh.ListPullRequests(ctx, a.Owner, a.Repo, github.ListOptions{State: a.State, Limit: a.Limit})
			if err != nil {
				return nil, err
			}
			for i := range prs {
				prs[i].Body = ""
			}
			return prs, nil
		},
	},
	{
		spec: domain.ToolSpec{
			Name:        "get_pull_request",
			Description: "Get a single pull request including its body, branches and change counts.",
			Parameters:  schema(repoProps+","+numberProp, "owner", "repo", "number"),
		},
		run: func(ctx context.Context, gh githubAPI, a toolArgs) (any, error) {
			return gh.GetPullRequest(ctx, a.Owner, a.Repo, a.Number)
		},
	},
	{
		spec: domain.ToolSpec{
			Name:        "get_file_content",
			Description: "Read a text file from a repository. Large files are truncated.",
			Parameters:  schema(repoProps+","+pathProps, "owner", "repo", "path"),
		},
		run: func(ctx context.Context, gh githubAPI, a toolArgs) (any, error) {
			return gh.GetFileContent(ctx, a.Owner, a.Repo, a.Path, a.Ref)
		},
	},
	{
		spec: domain.ToolSpec{
			Name:        "list_directory",
			Description: "List files and directories at a path. An empty path lists the repository root.",
			Parameters:  schema(repoProps+","+pathProps, "owner", "repo"),
		},
		run: func(ctx context.Context, gh githubAPI, a toolArgs) (any, error) {
			return gh.ListDirectory(ctx, a.Owner, a.Repo, a.Path, a.Ref)
		},
	},
}

func toolSpecs() []domain.ToolSpec {
	specs := make([]domain.ToolSpec, 0, len(githubTools))
	for _, t := range githubTools {
		specs = append(specs, t.spec)
	}
	return specs
}

func findTool(name string) (tool, bool) {
	for _, t := range githubTools {
		if t.spec.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

// executeTool runs one tool call and renders its outcome for the model.
// Failures become "error: ..." results so the model can react to them.
func executeTool(ctx context.Context, gh githubAPI, call domain.ToolCall) string {
	t, ok := findTool(call.Function.Name)
	if !ok {
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}

	var args toolArgs
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return fmt.Sprintf("error: invalid arguments: %v", err)
		}
	}

	out, err := t.run(ctx, gh, args)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("error: encode result: %v", err)
	}
	if len(encoded) > maxToolResult {
		return string(encoded[:maxToolResult]) + "\n[truncated]"
	}
	return string(encoded)
}
