package sanitize

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxStringLength is the default rune limit for a single string.
	DefaultMaxStringLength = 10000

	// MaxFilePaths is the maximum number of paths accepted by ValidateFilePaths.
	MaxFilePaths = 50
)

var dangerousPatterns = []*regexp.Regexp{
	// SQL injection
	regexp.MustCompile(`(?i)(union\s+select|drop\s+table|delete\s+from|insert\s+into)`),
	// Shell metacharacters
	regexp.MustCompile("[;&|`$()]"),
	// Path traversal
	regexp.MustCompile(`(\.\./|\.\.\\)`),
	// Script injection
	regexp.MustCompile(`(?i)(<script|javascript:|on\w+\s*=)`),
}

var traversalPattern = regexp.MustCompile(`(\.\./|\.\.\\)`)

// systemDirs are rejected along with anything beneath them. Entries use
// forward slashes and lower case, matching normalizePath.
var systemDirs = []string{
	"/etc",
	"/proc",
	"/sys",
	"/dev",
	"/root",
	"c:/windows",
	"c:/system32",
}

var driveRoot = regexp.MustCompile(`^[a-z]:/?$`)

var invisibleReplacer = strings.NewReplacer("\x00", "", "\uFEFF", "")

// Config configures a Sanitizer.
type Config struct {
	// MaxStringLength caps the length of any single string, in characters.
	// Default: 10000
	MaxStringLength int
}

// Sanitizer rejects strings that carry injection payloads and normalizes
// the rest. It holds no mutable state and is safe for concurrent use.
type Sanitizer struct {
	config Config
}

// New creates a Sanitizer.
func New(config Config) *Sanitizer {
	if config.MaxStringLength <= 0 {
		config.MaxStringLength = DefaultMaxStringLength
	}
	return &Sanitizer{config: config}
}

// MaxStringLength returns the configured string limit.
func (s *Sanitizer) MaxStringLength() int {
	return s.config.MaxStringLength
}

// SanitizeString validates input and returns it with NUL and BOM characters
// removed and surrounding whitespace trimmed.
func (s *Sanitizer) SanitizeString(input, field string) (string, error) {
	if n := utf8.RuneCountInString(input); n > s.config.MaxStringLength {
		return "", &ValidationError{
			Field:  field,
			Err:    ErrTooLong,
			Detail: fmt.Sprintf("%d characters (max %d)", n, s.config.MaxStringLength),
		}
	}

	for _, p := range dangerousPatterns {
		if p.MatchString(input) {
			return "", &ValidationError{Field: field, Err: ErrDangerousPattern}
		}
	}

	return strings.TrimSpace(invisibleReplacer.Replace(input)), nil
}

// SanitizeValue walks a decoded JSON value and sanitizes every string it
// finds, including object keys. Numbers, booleans and nulls pass through.
// The input is not modified; a sanitized copy is returned.
func (s *Sanitizer) SanitizeValue(v any) (any, error) {
	return s.sanitizeValue(v, "")
}

func (s *Sanitizer) sanitizeValue(v any, path string) (any, error) {
	switch val := v.(type) {
	case string:
		return s.SanitizeString(val, fieldName(path))

	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			key, err := s.SanitizeString(k, "key")
			if err != nil {
				return nil, err
			}
			clean, err := s.sanitizeValue(item, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = clean
		}
		return out, nil

	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			clean, err := s.sanitizeValue(item, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = clean
		}
		return out, nil

	default:
		return v, nil
	}
}

// ValidateFilePath sanitizes p like any other string, then rejects
// traversal sequences, filesystem roots and paths under a protected system
// directory. The returned path is cleaned.
func (s *Sanitizer) ValidateFilePath(p string) (string, error) {
	if traversalPattern.MatchString(p) {
		return "", &ValidationError{Field: "file_path", Err: ErrPathTraversal}
	}
	clean, err := s.SanitizeString(p, "file_path")
	if err != nil {
		return "", err
	}
	if traversalPattern.MatchString(clean) {
		return "", &ValidationError{Field: "file_path", Err: ErrPathTraversal}
	}

	if err := CheckSystemPath(clean); err != nil {
		return "", err
	}
	return cleanPath(clean), nil
}

// CheckSystemPath reports ErrForbiddenPath when p is a filesystem root or
// lies under a protected system directory. It does no other sanitization.
func CheckSystemPath(p string) error {
	norm := normalizePath(p)
	if norm == "/" || driveRoot.MatchString(norm) {
		return &ValidationError{Field: "file_path", Err: ErrForbiddenPath, Detail: norm}
	}
	for _, dir := range systemDirs {
		if norm == dir || strings.HasPrefix(norm, dir+"/") {
			return &ValidationError{Field: "file_path", Err: ErrForbiddenPath, Detail: dir}
		}
	}
	return nil
}

// normalizePath lower-cases p, folds Windows separators to slashes and
// collapses "//", "/./" and trailing separators.
func normalizePath(p string) string {
	p = strings.ToLower(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return p
	}
	return path.Clean(p)
}

// cleanPath is normalizePath without the case and separator folding, so
// the returned path still opens the same file.
func cleanPath(p string) string {
	if p == "" || strings.Contains(p, `\`) {
		return p
	}
	return path.Clean(p)
}

// ValidateFilePaths validates every path in paths.
func (s *Sanitizer) ValidateFilePaths(paths []string) ([]string, error) {
	if len(paths) > MaxFilePaths {
		return nil, &ValidationError{
			Field:  "files",
			Err:    ErrTooManyPaths,
			Detail: fmt.Sprintf("%d paths (max %d)", len(paths), MaxFilePaths),
		}
	}

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		clean, err := s.ValidateFilePath(p)
		if err != nil {
			return nil, err
		}
		out = append(out, clean)
	}
	return out, nil
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func fieldName(path string) string {
	if path == "" {
		return "value"
	}
	return path
}
