package sanitize

import (
	"errors"
	"strings"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	s := New(Config{})
	if s.MaxStringLength() != DefaultMaxStringLength {
		t.Errorf("MaxStringLength() = %d, want %d", s.MaxStringLength(), DefaultMaxStringLength)
	}
}

func TestSanitizeString(t *testing.T) {
	s := New(Config{})

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "plain text", input: "explain goroutines", want: "explain goroutines"},
		{name: "trims whitespace", input: "  hello \n", want: "hello"},
		{name: "strips NUL", input: "he\x00llo", want: "hello"},
		{name: "strips BOM", input: "\uFEFFhello", want: "hello"},
		{name: "sql union select", input: "1 UNION  SELECT password", wantErr: ErrDangerousPattern},
		{name: "sql drop table", input: "drop table users", wantErr: ErrDangerousPattern},
		{name: "shell semicolon", input: "ls; rm -rf", wantErr: ErrDangerousPattern},
		{name: "shell backtick", input: "echo `id`", wantErr: ErrDangerousPattern},
		{name: "shell subshell", input: "$(whoami)", wantErr: ErrDangerousPattern},
		{name: "traversal", input: "../../etc/passwd", wantErr: ErrDangerousPattern},
		{name: "windows traversal", input: `..\..\boot.ini`, wantErr: ErrDangerousPattern},
		{name: "script tag", input: "<SCRIPT>alert", wantErr: ErrDangerousPattern},
		{name: "javascript url", input: "javascript:void", wantErr: ErrDangerousPattern},
		{name: "event handler", input: `<img onerror = "x">`, wantErr: ErrDangerousPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.SanitizeString(tt.input, "query")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SanitizeString(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SanitizeString(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("SanitizeString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeString_Length(t *testing.T) {
	s := New(Config{MaxStringLength: 5})

	if _, err := s.SanitizeString("12345", "f"); err != nil {
		t.Errorf("string at limit rejected: %v", err)
	}

	_, err := s.SanitizeString("123456", "f")
	if !errors.Is(err, ErrTooLong) {
		t.Fatalf("error = %v, want ErrTooLong", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %T is not *ValidationError", err)
	}
	if verr.Field != "f" {
		t.Errorf("Field = %q, want f", verr.Field)
	}

	// Length is counted in characters, not bytes.
	if _, err := s.SanitizeString("héllo", "f"); err != nil {
		t.Errorf("multi-byte string at limit rejected: %v", err)
	}
}

func TestSanitizeValue(t *testing.T) {
	s := New(Config{})

	in := map[string]any{
		" name ": "query_deepseek",
		"arguments": map[string]any{
			"query": "  what is a channel\x00 ",
			"tags":  []any{" a ", "b", 3.0, true, nil},
		},
	}

	out, err := s.SanitizeValue(in)
	if err != nil {
		t.Fatalf("SanitizeValue() error = %v", err)
	}

	m := out.(map[string]any)
	if m["name"] != "query_deepseek" {
		t.Errorf("key not trimmed: %v", m)
	}
	args := m["arguments"].(map[string]any)
	if args["query"] != "what is a channel" {
		t.Errorf("query = %q, want %q", args["query"], "what is a channel")
	}
	tags := args["tags"].([]any)
	if tags[0] != "a" || tags[2] != 3.0 || tags[3] != true || tags[4] != nil {
		t.Errorf("tags = %v", tags)
	}

	// The input is left untouched.
	if _, ok := in[" name "]; !ok {
		t.Error("SanitizeValue modified its input")
	}
}

func TestSanitizeValue_RejectsNestedLeaf(t *testing.T) {
	s := New(Config{})

	in := map[string]any{
		"params": map[string]any{
			"items": []any{"ok", "rm -rf /; echo"},
		},
	}

	out, err := s.SanitizeValue(in)
	if !errors.Is(err, ErrDangerousPattern) {
		t.Fatalf("error = %v, want ErrDangerousPattern", err)
	}
	if out != nil {
		t.Errorf("partial output returned: %v", out)
	}

	var verr *ValidationError
	if errors.As(err, &verr) && verr.Field != "params.items[1]" {
		t.Errorf("Field = %q, want params.items[1]", verr.Field)
	}
}

func TestSanitizeValue_RejectsKey(t *testing.T) {
	s := New(Config{})

	_, err := s.SanitizeValue(map[string]any{"a;b": "x"})
	if !errors.Is(err, ErrDangerousPattern) {
		t.Errorf("error = %v, want ErrDangerousPattern", err)
	}
}

func TestValidateFilePath(t *testing.T) {
	s := New(Config{})

	tests := []struct {
		path    string
		wantErr error
	}{
		{path: "./a.txt"},
		{path: "src/main.go"},
		{path: "/home/user/project/README.md"},
		{path: "/etcetera/notes.txt"},
		{path: "../../etc/passwd", wantErr: ErrPathTraversal},
		{path: `..\secrets.txt`, wantErr: ErrPathTraversal},
		{path: "/etc/passwd", wantErr: ErrForbiddenPath},
		{path: "/etc", wantErr: ErrForbiddenPath},
		{path: "/proc/self/environ", wantErr: ErrForbiddenPath},
		{path: "/root/.ssh/id_rsa", wantErr: ErrForbiddenPath},
		{path: `C:\Windows\system.ini`, wantErr: ErrForbiddenPath},
		{path: `c:\system32\drivers`, wantErr: ErrForbiddenPath},
		{path: "/./etc/passwd", wantErr: ErrForbiddenPath},
		{path: "//etc/passwd", wantErr: ErrForbiddenPath},
		{path: "/etc/", wantErr: ErrForbiddenPath},
		{path: " /etc/passwd", wantErr: ErrForbiddenPath},
		{path: "/\x00etc/passwd", wantErr: ErrForbiddenPath},
		{path: `C:\\Windows\win.ini`, wantErr: ErrForbiddenPath},
		{path: "/", wantErr: ErrForbiddenPath},
		{path: "//", wantErr: ErrForbiddenPath},
		{path: `C:\`, wantErr: ErrForbiddenPath},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := s.ValidateFilePath(tt.path)
			if tt.wantErr == nil && err != nil {
				t.Errorf("ValidateFilePath(%q) error = %v, want nil", tt.path, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFilePath(%q) error = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFilePaths(t *testing.T) {
	s := New(Config{})

	got, err := s.ValidateFilePaths([]string{" a.go ", "b.go"})
	if err != nil {
		t.Fatalf("ValidateFilePaths() error = %v", err)
	}
	if strings.Join(got, ",") != "a.go,b.go" {
		t.Errorf("ValidateFilePaths() = %v", got)
	}

	got, err = s.ValidateFilePaths([]string{"./src//main.go"})
	if err != nil || got[0] != "src/main.go" {
		t.Errorf("ValidateFilePaths() = %v, %v, want [src/main.go]", got, err)
	}

	many := make([]string, MaxFilePaths+1)
	for i := range many {
		many[i] = "f.txt"
	}
	if _, err := s.ValidateFilePaths(many); !errors.Is(err, ErrTooManyPaths) {
		t.Errorf("error = %v, want ErrTooManyPaths", err)
	}

	if _, err := s.ValidateFilePaths([]string{"ok.txt", "/etc/shadow"}); !errors.Is(err, ErrForbiddenPath) {
		t.Errorf("error = %v, want ErrForbiddenPath", err)
	}
}
