package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// MaxFileBytes bounds decoded file content handed back to callers.
const MaxFileBytes = 32 << 10

func repoPath(owner, repo string) (string, error) {
	owner, repo = strings.TrimSpace(owner), strings.TrimSpace(repo)
	if owner == "" || repo == "" {
		return "", errors.New("github: owner and repo are required")
	}
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo), nil
}

// contentsPath escapes each segment of a repository-relative path.
func contentsPath(base, p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return base + "/contents"
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return base + "/contents/" + strings.Join(segments, "/")
}

func withRef(path, ref string) string {
	if ref = strings.TrimSpace(ref); ref != "" {
		return path + "?ref=" + url.QueryEscape(ref)
	}
	return path
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	base, err := repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	var out Repository
	if _, err := c.get(ctx, base, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetFileContent fetches and decodes a file. Content beyond MaxFileBytes is
// dropped and reported through Truncated.
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) (*File, error) {
	base, err := repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	if strings.Trim(path, "/") == "" {
		return nil, errors.New("github: path is required")
	}

	var entry ContentEntry
	if _, err := c.get(ctx, withRef(contentsPath(base, path), ref), &entry); err != nil {
		return nil, err
	}
	if entry.Type != "file" {
		return nil, fmt.Errorf("github: %s is a %s, not a file", path, entry.Type)
	}

	var raw []byte
	switch entry.Encoding {
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("github: decode %s: %w", path, err)
		}
	case "", "none":
		raw = []byte(entry.Content)
	default:
		return nil, fmt.Errorf("github: unsupported encoding %q for %s", entry.Encoding, path)
	}

	file := &File{Path: entry.Path, Size: entry.Size}
	if len(raw) > MaxFileBytes {
		raw = raw[:MaxFileBytes]
		file.Truncated = true
	}
	file.Content = string(raw)
	return file, nil
}

// ListDirectory lists the entries of a directory. An empty path lists the
// repository root.
func (c *Client) ListDirectory(ctx context.Context, owner, repo, path, ref string) ([]ContentEntry, error) {
	base, err := repoPath(owner, repo)
	if err != nil {
		return nil, err
	}
	var entries []ContentEntry
	if _, err := c.get(ctx, withRef(contentsPath(base, path), ref), &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Content = ""
		entries[i].Encoding = ""
	}
	return entries, nil
}
