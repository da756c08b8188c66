package util

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// CompareVersions orders two version strings by semantic version,
// falling back to plain string comparison when either side does not
// parse as semver.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	return va.Compare(vb)
}

// SatisfiesRange reports whether version satisfies the semver range
// expression. Unparseable ranges or versions never satisfy.
func SatisfiesRange(version, rng string) bool {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return false
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return c.Check(v)
}

// SatisfiesAll reports whether version satisfies every range in ranges.
func SatisfiesAll(version string, ranges []string) bool {
	for _, rng := range ranges {
		if !SatisfiesRange(version, rng) {
			return false
		}
	}
	return true
}

// SortVersionsDescending sorts version strings highest-first using
// semantic ordering.
func SortVersionsDescending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) > 0
	})
}

// HighestSatisfying returns the highest version in published that
// satisfies every collected range, or "" when none does.
func HighestSatisfying(published []string, ranges []string) string {
	candidates := make([]string, 0, len(published))
	for _, v := range published {
		if SatisfiesAll(v, ranges) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	SortVersionsDescending(candidates)
	return candidates[0]
}
