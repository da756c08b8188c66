// Package util provides PURL, license, and environment helpers shared
// across the depscope services.
package util

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/package-url/packageurl-go"
)

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key) // get the env var
	if !ex {                     // not found return default
		return defVal
	}
	return val // return value for env var
}

// IsEmpty checks if a string is empty or contains only whitespace
func IsEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}

// IsNotEmpty checks if a string is not empty
func IsNotEmpty(s string) bool {
	return !IsEmpty(s)
}

// Contains checks if a string slice contains an item
func Contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// CleanPURL removes qualifiers (after ?) and subpath (after #) to create canonical PURL
func CleanPURL(purlStr string) (string, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return "", err
	}

	// Create new PURL without qualifiers and subpath
	cleaned := packageurl.PackageURL{
		Type:      parsed.Type,
		Namespace: parsed.Namespace,
		Name:      parsed.Name,
		Version:   parsed.Version,
	}

	return strings.ToLower(cleaned.ToString()), nil
}

// GetBasePURL removes the version component from a PURL to create a base package identifier
// Example: pkg:npm/lodash@4.17.20 -> pkg:npm/lodash
func GetBasePURL(purlStr string) (string, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return "", err
	}

	base := packageurl.PackageURL{
		Type:      parsed.Type,
		Namespace: parsed.Namespace,
		Name:      parsed.Name,
	}

	return strings.ToLower(base.ToString()), nil
}

// ParsePURL parses a PURL string and returns the parsed PackageURL
func ParsePURL(purlStr string) (*packageurl.PackageURL, error) {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ExtractNameFromPurl pulls the bare package name out of a PURL,
// keeping the namespace for scoped packages
// (pkg:npm/%40babel/core@7.0.0 -> @babel/core).
func ExtractNameFromPurl(purlStr string) string {
	parsed, err := packageurl.FromString(purlStr)
	if err != nil {
		// Not a purl; strip a trailing @version if present.
		name := purlStr
		if at := strings.LastIndex(name, "@"); at > 0 {
			name = name[:at]
		}
		return name
	}
	if parsed.Namespace != "" {
		return parsed.Namespace + "/" + parsed.Name
	}
	return parsed.Name
}

// SynthesizePurl builds a canonical npm PURL from a name and version.
func SynthesizePurl(name, version string) string {
	namespace := ""
	if strings.Contains(name, "/") {
		parts := strings.SplitN(name, "/", 2)
		namespace = parts[0]
		name = parts[1]
	}
	purl := packageurl.PackageURL{
		Type:      packageurl.TypeNPM,
		Namespace: namespace,
		Name:      name,
		Version:   version,
	}
	return strings.ToLower(purl.ToString())
}

// ResolveComponentPurl picks the canonical identifier for a component:
// the declared purl, else its bom-ref, else a synthesized name@version.
func ResolveComponentPurl(purl, bomRef, name, version string) string {
	if IsNotEmpty(purl) {
		if cleaned, err := CleanPURL(purl); err == nil {
			return cleaned
		}
		return purl
	}
	if IsNotEmpty(bomRef) {
		return bomRef
	}
	if IsNotEmpty(version) {
		return name + "@" + version
	}
	return name
}

// licenseTokenSplit matches the AND/OR connectors of an SPDX expression.
var licenseTokenSplit = regexp.MustCompile(`\s+(?:AND|OR)\s+`)

// SplitLicenseExpression breaks an SPDX license expression into its
// individual license tokens ("MIT AND Apache-2.0" -> [MIT Apache-2.0]).
func SplitLicenseExpression(expr string) []string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}
	expr = strings.Trim(expr, "()")
	parts := licenseTokenSplit.Split(expr, -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// spdxIDPattern is the character set allowed in an SPDX license id.
var spdxIDPattern = regexp.MustCompile(`^[A-Za-z0-9.\-+]+$`)

// IsSpdxIDString reports whether s is usable as an SPDX license
// identifier without escaping.
func IsSpdxIDString(s string) bool {
	return spdxIDPattern.MatchString(s)
}

// FormatPurlID builds "pkg:npm/name@version" style display ids, used
// as the last-resort purl guess when nothing else resolves.
func FormatPurlID(name, version string) string {
	if version == "" {
		return fmt.Sprintf("pkg:npm/%s", strings.ToLower(name))
	}
	return fmt.Sprintf("pkg:npm/%s@%s", strings.ToLower(name), version)
}
