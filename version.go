// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package jclass

import (
	"fmt"
	"strconv"
	"strings"
)

// targetNames maps the CLI/config-facing "1.0".."1.6" spelling to the
// classfile (major, minor) pair it resolves to, per spec.md §3 "Target
// version". Kept as a lookup table the same way the teacher's version.go
// keeps its resource-string constants, rather than a parsed numeric scheme,
// since the JVM major/minor pairs are not a semver-shaped progression
// (1.0 and 1.1 both resolve to 45.3).
var targetNames = map[string]Version{
	"1.0": Java1_0,
	"1.1": Java1_1,
	"1.2": Java1_2,
	"1.3": Java1_3,
	"1.4": Java1_4,
	"1.5": Java5,
	"1.6": Java6,
}

// ParseTargetVersion resolves a CLI/config version string ("1.0".."1.6", or
// "45.3" style major.minor) to a Version, the way golang.org/x/mod/semver
// resolves a version string to a comparable form before any arithmetic is
// done on it.
func ParseTargetVersion(s string) (Version, error) {
	if v, ok := targetNames[s]; ok {
		return v, nil
	}
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("jclass: unrecognized target version %q", s)
	}
	maj, err1 := strconv.ParseUint(major, 10, 16)
	min, err2 := strconv.ParseUint(minor, 10, 16)
	if err1 != nil || err2 != nil {
		return Version{}, fmt.Errorf("jclass: unrecognized target version %q", s)
	}
	v := Version{uint16(maj), uint16(min)}
	if !validVersion(v) {
		return Version{}, fmt.Errorf("jclass: %w: %d.%d", ErrUnsupportedVersion, maj, min)
	}
	return v, nil
}

// CompareVersions orders two Versions by major then minor, returning -1, 0
// or 1 the way golang.org/x/mod/semver.Compare orders two version strings.
func CompareVersions(a, b Version) int {
	switch {
	case a.major != b.major:
		if a.major < b.major {
			return -1
		}
		return 1
	case a.minor != b.minor:
		if a.minor < b.minor {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// String renders a Version in its major.minor wire form, e.g. "50.0".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.major, v.minor)
}
