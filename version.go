package rvatomic

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// Version information for rvatomic.
const (
	// Version is the current library version.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info describes the library build.
type Info struct {
	// Version is the library version string.
	Version string

	// ISA names the emulated instruction subset.
	ISA string

	// Ops lists the supported AMO mnemonics.
	Ops []string
}

// GetInfo returns information about the library.
//
// Example:
//
//	info := rvatomic.GetInfo()
//	fmt.Printf("rvatomic %s (%s)\n", info.Version, info.ISA)
func GetInfo() Info {
	ops := make([]string, 0, len(Ops()))
	for _, op := range Ops() {
		ops = append(ops, op.String())
	}
	return Info{
		Version: Version,
		ISA:     "RV32A (lr.w/sc.w, amo*.w)",
		Ops:     ops,
	}
}

// Compatible reports whether this library satisfies a minimum version
// requirement such as "v0.1.0" or "0.1". The leading "v" is optional.
//
// Returns an error if required is not a valid semantic version.
func Compatible(required string) (bool, error) {
	req := canonical(required)
	if !semver.IsValid(req) {
		return false, fmt.Errorf("invalid version %q", required)
	}
	return semver.Compare(canonical(Version), req) >= 0, nil
}

func canonical(v string) string {
	if v != "" && v[0] != 'v' {
		v = "v" + v
	}
	return v
}
