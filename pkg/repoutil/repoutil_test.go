package repoutil

import "testing"

func TestSplitRepoSlug(t *testing.T) {
	tests := []struct {
		name          string
		slug          string
		expectedOwner string
		expectedRepo  string
		expectError   bool
	}{
		{
			name:          "valid slug",
			slug:          "githubnext/gh-aw",
			expectedOwner: "githubnext",
			expectedRepo:  "gh-aw",
			expectError:   false,
		},
		{
			name:          "another valid slug",
			slug:          "octocat/hello-world",
			expectedOwner: "octocat",
			expectedRepo:  "hello-world",
			expectError:   false,
		},
		{
			name:        "invalid slug - no separator",
			slug:        "githubnext",
			expectError: true,
		},
		{
			name:        "invalid slug - multiple separators",
			slug:        "githubnext/gh-aw/extra",
			expectError: true,
		},
		{
			name:        "invalid slug - empty",
			slug:        "",
			expectError: true,
		},
		{
			name:        "invalid slug - only separator",
			slug:        "/",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := SplitRepoSlug(tt.slug)
			if tt.expectError {
				if err == nil {
					t.Errorf("SplitRepoSlug(%q) expected error, got nil", tt.slug)
				}
			} else {
				if err != nil {
					t.Errorf("SplitRepoSlug(%q) unexpected error: %v", tt.slug, err)
				}
				if owner != tt.expectedOwner {
					t.Errorf("SplitRepoSlug(%q) owner = %q; want %q", tt.slug, owner, tt.expectedOwner)
				}
				if repo != tt.expectedRepo {
					t.Errorf("SplitRepoSlug(%q) repo = %q; want %q", tt.slug, repo, tt.expectedRepo)
				}
			}
		})
	}
}

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		expectedHost  string
		expectedOwner string
		expectedRepo  string
		expectError   bool
	}{
		{
			name:          "SSH format with .git, github host",
			url:           "git@github.com:githubnext/gh-aw.git",
			expectedHost:  "github.com",
			expectedOwner: "githubnext",
			expectedRepo:  "gh-aw",
		},
		{
			name:          "SSH format without .git, gitlab host",
			url:           "git@gitlab.example.com:octocat/hello-world",
			expectedHost:  "gitlab.example.com",
			expectedOwner: "octocat",
			expectedRepo:  "hello-world",
		},
		{
			name:          "HTTPS format with .git",
			url:           "https://github.com/githubnext/gh-aw.git",
			expectedHost:  "github.com",
			expectedOwner: "githubnext",
			expectedRepo:  "gh-aw",
		},
		{
			name:          "HTTPS format without .git, non-GitHub host",
			url:           "https://bitbucket.org/octocat/hello-world",
			expectedHost:  "bitbucket.org",
			expectedOwner: "octocat",
			expectedRepo:  "hello-world",
		},
		{
			name:          "HTTPS format with embedded auth",
			url:           "https://token@git.internal.example/owner/repo.git",
			expectedHost:  "git.internal.example",
			expectedOwner: "owner",
			expectedRepo:  "repo",
		},
		{
			name:        "invalid SSH - no colon",
			url:         "git@github.com",
			expectError: true,
		},
		{
			name:        "invalid URL",
			url:         "not-a-url",
			expectError: true,
		},
		{
			name:        "empty URL",
			url:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, owner, repo, err := ParseRepoURL(tt.url)
			if tt.expectError {
				if err == nil {
					t.Errorf("ParseRepoURL(%q) expected error, got nil", tt.url)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseRepoURL(%q) unexpected error: %v", tt.url, err)
			}
			if host != tt.expectedHost {
				t.Errorf("ParseRepoURL(%q) host = %q; want %q", tt.url, host, tt.expectedHost)
			}
			if owner != tt.expectedOwner {
				t.Errorf("ParseRepoURL(%q) owner = %q; want %q", tt.url, owner, tt.expectedOwner)
			}
			if repo != tt.expectedRepo {
				t.Errorf("ParseRepoURL(%q) repo = %q; want %q", tt.url, repo, tt.expectedRepo)
			}
		})
	}
}

func TestParseGitHubRepoURL(t *testing.T) {
	tests := []struct {
		name          string
		url           string
		expectedOwner string
		expectedRepo  string
		expectError   bool
	}{
		{
			name:          "SSH format with .git",
			url:           "git@github.com:githubnext/gh-aw.git",
			expectedOwner: "githubnext",
			expectedRepo:  "gh-aw",
			expectError:   false,
		},
		{
			name:          "SSH format without .git",
			url:           "git@github.com:octocat/hello-world",
			expectedOwner: "octocat",
			expectedRepo:  "hello-world",
			expectError:   false,
		},
		{
			name:          "HTTPS format with .git",
			url:           "https://github.com/githubnext/gh-aw.git",
			expectedOwner: "githubnext",
			expectedRepo:  "gh-aw",
			expectError:   false,
		},
		{
			name:          "HTTPS format without .git",
			url:           "https://github.com/octocat/hello-world",
			expectedOwner: "octocat",
			expectedRepo:  "hello-world",
			expectError:   false,
		},
		{
			name:        "non-GitHub URL",
			url:         "https://gitlab.com/user/repo.git",
			expectError: true,
		},
		{
			name:        "invalid URL",
			url:         "not-a-url",
			expectError: true,
		},
		{
			name:        "empty URL",
			url:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseGitHubRepoURL(tt.url)
			if tt.expectError {
				if err == nil {
					t.Errorf("ParseGitHubRepoURL(%q) expected error, got nil", tt.url)
				}
			} else {
				if err != nil {
					t.Errorf("ParseGitHubRepoURL(%q) unexpected error: %v", tt.url, err)
				}
				if owner != tt.expectedOwner {
					t.Errorf("ParseGitHubRepoURL(%q) owner = %q; want %q", tt.url, owner, tt.expectedOwner)
				}
				if repo != tt.expectedRepo {
					t.Errorf("ParseGitHubRepoURL(%q) repo = %q; want %q", tt.url, repo, tt.expectedRepo)
				}
			}
		})
	}
}

func TestExtractBaseRepo(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "top-level action", path: "actions/checkout", expected: "actions/checkout"},
		{name: "nested subfolder", path: "actions/cache/restore", expected: "actions/cache"},
		{name: "deeply nested", path: "github/codeql-action/upload-sarif", expected: "github/codeql-action"},
		{name: "single segment", path: "standalone", expected: "standalone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractBaseRepo(tt.path)
			if result != tt.expected {
				t.Errorf("ExtractBaseRepo(%q) = %q; want %q", tt.path, result, tt.expected)
			}
		})
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		name     string
		slug     string
		expected string
	}{
		{
			name:     "normal slug",
			slug:     "githubnext/gh-aw",
			expected: "githubnext-gh-aw",
		},
		{
			name:     "empty slug",
			slug:     "",
			expected: "clone-mode",
		},
		{
			name:     "slug with multiple slashes",
			slug:     "owner/repo/extra",
			expected: "owner-repo-extra",
		},
		{
			name:     "slug with hyphen",
			slug:     "owner/my-repo",
			expected: "owner-my-repo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeForFilename(tt.slug)
			if result != tt.expected {
				t.Errorf("SanitizeForFilename(%q) = %q; want %q", tt.slug, result, tt.expected)
			}
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "github SSH remote",
			url:      "git@github.com:githubnext/gh-aw.git",
			expected: "githubnext/gh-aw",
		},
		{
			name:     "non-github HTTPS remote",
			url:      "https://gitlab.example.com/owner/repo.git",
			expected: "owner/repo",
		},
		{
			name:     "unparseable falls back to raw URL",
			url:      "/local/path/to/repo",
			expected: "/local/path/to/repo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Slug(tt.url)
			if result != tt.expected {
				t.Errorf("Slug(%q) = %q; want %q", tt.url, result, tt.expected)
			}
		})
	}
}

func BenchmarkSplitRepoSlug(b *testing.B) {
	slug := "githubnext/gh-aw"
	for i := 0; i < b.N; i++ {
		_, _, _ = SplitRepoSlug(slug)
	}
}

func BenchmarkParseRepoURL(b *testing.B) {
	url := "https://github.com/githubnext/gh-aw.git"
	for i := 0; i < b.N; i++ {
		_, _, _, _ = ParseRepoURL(url)
	}
}

func BenchmarkSanitizeForFilename(b *testing.B) {
	slug := "githubnext/gh-aw"
	for i := 0; i < b.N; i++ {
		_ = SanitizeForFilename(slug)
	}
}
