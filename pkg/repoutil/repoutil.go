// Package repoutil provides utility functions for working with
// repository slugs and remote URLs, independent of git host.
package repoutil

import (
	"fmt"
	"strings"
)

// SplitRepoSlug splits a repository slug (owner/repo) into owner and repo parts.
// Returns an error if the slug format is invalid.
func SplitRepoSlug(slug string) (owner, repo string, err error) {
	parts := strings.Split(slug, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo format: %s", slug)
	}
	return parts[0], parts[1], nil
}

// ParseRepoURL extracts the host, owner, and repo from a remote URL
// over any git host, not just github.com. Handles SSH
// (git@host:owner/repo.git), scp-like https with embedded auth
// (https://user@host/owner/repo.git), and plain HTTPS
// (https://host/owner/repo.git) forms.
func ParseRepoURL(url string) (host, owner, repo string, err error) {
	var repoPath string

	switch {
	case strings.HasPrefix(url, "git@"):
		// git@host:owner/repo.git
		rest := strings.TrimPrefix(url, "git@")
		idx := strings.Index(rest, ":")
		if idx < 0 {
			return "", "", "", fmt.Errorf("malformed SSH remote URL: %s", url)
		}
		host = rest[:idx]
		repoPath = rest[idx+1:]
	case strings.Contains(url, "://"):
		// scheme://[user@]host/owner/repo.git
		rest := url[strings.Index(url, "://")+3:]
		if at := strings.LastIndex(rest, "@"); at >= 0 && at < strings.Index(rest, "/") {
			rest = rest[at+1:]
		}
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", "", "", fmt.Errorf("remote URL has no repository path: %s", url)
		}
		host = rest[:slash]
		repoPath = rest[slash+1:]
	default:
		return "", "", "", fmt.Errorf("unrecognized remote URL form: %s", url)
	}

	repoPath = strings.TrimSuffix(repoPath, ".git")
	owner, repo, err = SplitRepoSlug(repoPath)
	if err != nil {
		return "", "", "", err
	}
	return host, owner, repo, nil
}

// ParseGitHubRepoURL extracts the owner and repo from a GitHub
// repository URL specifically, rejecting any other host. Most callers
// parsing an arbitrary component remote should use ParseRepoURL
// instead.
func ParseGitHubRepoURL(url string) (owner, repo string, err error) {
	host, owner, repo, err := ParseRepoURL(url)
	if err != nil {
		return "", "", err
	}
	if host != "github.com" {
		return "", "", fmt.Errorf("URL does not appear to be a GitHub repository: %s", url)
	}
	return owner, repo, nil
}

// ExtractBaseRepo extracts the base repository (owner/repo) from an action path
// that may include subfolders.
// Examples:
//   - "actions/checkout" -> "actions/checkout"
//   - "actions/cache/restore" -> "actions/cache"
//   - "github/codeql-action/upload-sarif" -> "github/codeql-action"
func ExtractBaseRepo(actionPath string) string {
	parts := strings.Split(actionPath, "/")
	if len(parts) >= 2 {
		// Return owner/repo (first two segments)
		return parts[0] + "/" + parts[1]
	}
	// If less than 2 parts, return as-is (shouldn't happen in practice)
	return actionPath
}

// SanitizeForFilename converts a repository slug (owner/repo) to a filename-safe string.
// Replaces "/" with "-". Returns "clone-mode" if the slug is empty.
func SanitizeForFilename(slug string) string {
	if slug == "" {
		return "clone-mode"
	}
	return strings.ReplaceAll(slug, "/", "-")
}

// Slug formats a remote URL over any git host as a short "owner/repo"
// display slug, falling back to the raw URL when it can't be parsed
// (e.g. a local filesystem path used in tests).
func Slug(remoteURL string) string {
	_, owner, repo, err := ParseRepoURL(remoteURL)
	if err != nil {
		return remoteURL
	}
	return owner + "/" + repo
}
