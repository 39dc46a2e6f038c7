package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// instanceNameRegex matches WIT-style kebab identifiers, also allowing
// underscores and digits after the first letter.
var instanceNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// ValidateInstanceName validates a component or instance name.
// Names become file names when artifacts are staged, so they are held to a
// conservative identifier grammar.
func ValidateInstanceName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "instance name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "instance name too long (max 128 characters)")
	}
	if !instanceNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid instance name: %q", name)
	}
	return nil
}

// ValidateArtifactPath validates a path to a component binary.
//
// Validation rules:
//   - Path cannot be empty
//   - No null bytes or control characters
//
// Absolute paths are allowed since artifacts usually live in build output
// trees outside the working directory.
func ValidateArtifactPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "artifact path cannot be empty")
	}
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "artifact path contains invalid characters")
		}
	}
	return nil
}

// ValidateRelativePath validates a path that must stay within a staging
// directory.
func ValidateRelativePath(path string) error {
	if err := ValidateArtifactPath(path); err != nil {
		return err
	}
	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidInput, "path must be relative (cannot start with /)")
	}
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidInput, "path cannot contain path traversal sequences (..)")
	}
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidInput, "path cannot contain backslashes")
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}
	return nil
}
