package vendorengine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/crypto/ssh"
)

// secretPattern is one named regular expression matched against file
// contents during the secret scan (step 7.a).
type secretPattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"aws-access-key-id", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"generic-api-key-assignment", regexp.MustCompile(`(?i)(api[_-]?key|secret|token)\s*[:=]\s*['"][A-Za-z0-9+/_=\-]{16,}['"]`)},
	{"slack-token", regexp.MustCompile(`xox[baprs]-[0-9A-Za-z-]{10,}`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[0-9A-Za-z]{36,}`)},
}

var privateKeyMarker = regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA |)PRIVATE KEY-----`)

// Finding is one secret-scan hit.
type Finding struct {
	Path    string
	Pattern string
}

// scanTree walks root looking for credential patterns. A candidate PEM
// private-key block is confirmed, not just pattern-matched: it must
// parse with ssh.ParseRawPrivateKey to count as a finding, which turns
// "looks like a private key" into "is parseable as one" and avoids
// flagging files that merely mention the marker string in a comment or
// test fixture.
func scanTree(root string) ([]Finding, error) {
	var findings []Finding
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil // unreadable file (e.g. broken symlink): skip, don't fail the scan
		}
		if !isProbablyText(data) {
			return nil
		}
		text := string(data)

		if privateKeyMarker.MatchString(text) {
			if isConfirmedPrivateKey(data) {
				findings = append(findings, Finding{Path: path, Pattern: "private-key"})
			}
			return nil
		}

		for _, p := range secretPatterns {
			if p.re.MatchString(text) {
				findings = append(findings, Finding{Path: path, Pattern: p.name})
			}
		}
		return nil
	})
	return findings, err
}

func isConfirmedPrivateKey(data []byte) bool {
	_, err := ssh.ParseRawPrivateKey(data)
	return err == nil
}

// isProbablyText is a cheap binary-file filter so the scan doesn't
// waste time regex-matching compiled artifacts.
func isProbablyText(data []byte) bool {
	if len(data) > 2<<20 {
		return false // skip files over 2MiB; secrets don't live in build artifacts that size
	}
	for i, b := range data {
		if i > 4096 {
			break
		}
		if b == 0 {
			return false
		}
	}
	return true
}

func formatFindings(findings []Finding) string {
	parts := make([]string, len(findings))
	for i, f := range findings {
		parts[i] = fmt.Sprintf("%s: %s", f.Path, f.Pattern)
	}
	return strings.Join(parts, "; ")
}
