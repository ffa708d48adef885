package resolver

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

// version is a parsed vMAJOR.MINOR.PATCH tag.
type version struct {
	major, minor, patch int
}

var versionPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)$`)

func parseVersion(s string) (version, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return version{}, fmt.Errorf("not a semver tag: %q", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return version{major, minor, patch}, nil
}

// compare returns -1, 0, 1 as a is less than, equal to, or greater
// than b.
func (a version) compare(b version) int {
	switch {
	case a.major != b.major:
		return cmpInt(a.major, b.major)
	case a.minor != b.minor:
		return cmpInt(a.minor, b.minor)
	default:
		return cmpInt(a.patch, b.patch)
	}
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sortSemver(tags []string) {
	sort.SliceStable(tags, func(i, j int) bool {
		vi, erri := parseVersion(tags[i])
		vj, errj := parseVersion(tags[j])
		if erri != nil || errj != nil {
			return tags[i] < tags[j]
		}
		return vi.compare(vj) < 0
	})
}

// SatisfiesRange reports whether candidate satisfies rng, which must
// be one of: "^vX.Y.Z" (caret, compatible within same major, or same
// minor for 0.x), "~vX.Y.Z" (tilde, compatible within same minor),
// "vX.Y.Z" (exact), or ">=vX.Y.Z".
func SatisfiesRange(candidate, rng string) bool {
	cv, err := parseVersion(candidate)
	if err != nil {
		return false
	}

	switch {
	case len(rng) > 0 && rng[0] == '^':
		base, err := parseVersion(rng[1:])
		if err != nil {
			return false
		}
		if cv.compare(base) < 0 {
			return false
		}
		if base.major > 0 {
			return cv.major == base.major
		}
		if base.minor > 0 {
			return cv.major == 0 && cv.minor == base.minor
		}
		return cv.major == 0 && cv.minor == 0
	case len(rng) > 0 && rng[0] == '~':
		base, err := parseVersion(rng[1:])
		if err != nil {
			return false
		}
		return cv.major == base.major && cv.minor == base.minor && cv.compare(base) >= 0
	case len(rng) >= 2 && rng[:2] == ">=":
		base, err := parseVersion(rng[2:])
		if err != nil {
			return false
		}
		return cv.compare(base) >= 0
	default:
		base, err := parseVersion(rng)
		if err != nil {
			return false
		}
		return cv.compare(base) == 0
	}
}
