package runner

import (
	"errors"
	"strings"
)

// ValidateTarget trims target and rejects values that are empty, contain
// shell metacharacters or whitespace, or would be read as a tool flag.
// Both the CLI and the dashboard call it before a scan starts.
func ValidateTarget(target string) (string, error) {
	target = strings.TrimSpace(target)
	switch {
	case target == "":
		return "", errors.New("target is required")
	case strings.HasPrefix(target, "-"):
		return "", errors.New("target must not start with '-'")
	case strings.ContainsAny(target, ";|&$`\\\"'<> \t\r\n"):
		return "", errors.New("invalid characters in target")
	}
	return target, nil
}
