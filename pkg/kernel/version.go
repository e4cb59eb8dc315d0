package kernel

import (
	"fmt"
)

// Version is a parsed kernel release, e.g. 6.8.0-45-generic.
type Version struct {
	Major    int
	Minor    int
	Patch    int
	Flavor   string
	validate bool
}

// New returns a valid Version for the given numbers.
func New(major, minor, patch int) Version {
	return Version{Major: major, Minor: minor, Patch: patch, validate: true}
}

func (v Version) Validate() bool {
	return v.validate
}

func (v Version) Invalidate() bool {
	return !v.validate
}

func (v Version) Compare(o Version) int {
	if v.Major != o.Major {
		return cmpInt(v.Major, o.Major)
	}
	if v.Minor != o.Minor {
		return cmpInt(v.Minor, o.Minor)
	}
	return cmpInt(v.Patch, o.Patch)
}

// GTE reports whether v is at least major.minor.patch. An invalid version is
// never GTE anything.
func (v Version) GTE(major, minor, patch int) bool {
	if v.Invalidate() {
		return false
	}
	return v.Compare(Version{Major: major, Minor: minor, Patch: patch}) >= 0
}

func (v Version) LT(major, minor, patch int) bool {
	return !v.GTE(major, minor, patch)
}

func (v Version) String() string {
	if v.Invalidate() {
		return "invalid"
	}
	return fmt.Sprintf("%d.%d.%d%s", v.Major, v.Minor, v.Patch, v.Flavor)
}

func cmpInt(a, b int) int {
	if a > b {
		return 1
	}
	if a < b {
		return -1
	}
	return 0
}

// Parse parses a uname release string.
func Parse(release string) (Version, error) {
	var (
		v       Version
		parsed  int
		partial string
	)
	parsed, _ = fmt.Sscanf(release, "%d.%d%s", &v.Major, &v.Minor, &partial)
	if parsed < 2 {
		return Version{}, fmt.Errorf("cannot parse kernel version: %s", release)
	}
	parsed, _ = fmt.Sscanf(partial, ".%d%s", &v.Patch, &v.Flavor)
	if parsed < 1 {
		v.Flavor = partial
	}
	v.validate = true
	return v, nil
}
