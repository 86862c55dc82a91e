package pk

import "strings"

// Package ids follow the "name;version;arch;repo" convention. The helpers
// tolerate malformed ids by returning what is present and "" for missing
// fields.

const packageIDFields = 4

func packageIDField(packageID string, idx int) string {
	parts := strings.SplitN(packageID, ";", packageIDFields)
	if idx >= len(parts) {
		return ""
	}
	return parts[idx]
}

// PackageName extracts the name component of a package id.
func PackageName(packageID string) string {
	return packageIDField(packageID, 0)
}

// PackageVersion extracts the version component of a package id.
func PackageVersion(packageID string) string {
	return packageIDField(packageID, 1)
}

// PackageArch extracts the architecture component of a package id.
func PackageArch(packageID string) string {
	return packageIDField(packageID, 2)
}

// PackageRepo extracts the repository component of a package id.
func PackageRepo(packageID string) string {
	return packageIDField(packageID, 3)
}
