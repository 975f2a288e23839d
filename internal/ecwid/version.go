package ecwid

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// browserSemver converts a DevTools product string into a semver string.
// Chrome versions have four components; the build patch is dropped.
//
// Examples:
//   - HeadlessChrome/120.0.6099.109 → v120.0.6099
//   - Chrome/96.0.4664.45           → v96.0.4664
func browserSemver(product string) (string, bool) {
	ver := product
	if _, after, ok := strings.Cut(product, "/"); ok {
		ver = after
	}
	ver = strings.TrimSpace(ver)
	if ver == "" {
		return "", false
	}

	parts := strings.Split(ver, ".")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	v := "v" + strings.Join(parts, ".")
	return v, semver.IsValid(v)
}

// checkBrowserVersion fails when product is older than min.
// An empty min accepts any browser.
func checkBrowserVersion(product, min string) error {
	if min == "" {
		return nil
	}
	v, ok := browserSemver(product)
	if !ok {
		return fmt.Errorf("unrecognized browser version %q", product)
	}
	if semver.Compare(v, min) < 0 {
		return fmt.Errorf("browser %s is older than required %s", v, min)
	}
	return nil
}

func validateMinVersion(min string) error {
	if !semver.IsValid(min) {
		return fmt.Errorf("invalid minimum browser version %q: want semver like v112.0.0", min)
	}
	return nil
}
