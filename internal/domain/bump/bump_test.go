package bump

import (
	"testing"

	semver "github.com/blang/semver/v4"
)

func TestParse(t *testing.T) {
	t.Parallel()

	cases := map[string]Bump{
		"major":   BumpMajor,
		" Minor ": BumpMinor,
		"PATCH":   BumpPatch,
	}
	for input, want := range cases {
		got, err := Parse(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: want %s got %s", input, want, got)
		}
	}

	if _, err := Parse("build"); err == nil {
		t.Fatalf("expected error for unknown bump")
	}
}

func TestApply(t *testing.T) {
	t.Parallel()

	base := semver.MustParse("1.2.3+41")

	tests := []struct {
		bump Bump
		want string
	}{
		{BumpMajor, "2.0.0"},
		{BumpMinor, "1.3.0"},
		{BumpPatch, "1.2.4"},
	}
	for _, tt := range tests {
		got, err := tt.bump.Apply(base)
		if err != nil {
			t.Fatalf("apply %s: %v", tt.bump, err)
		}
		if got.String() != tt.want {
			t.Fatalf("apply %s: want %s got %s", tt.bump, tt.want, got)
		}
	}

	if _, err := Bump("bogus").Apply(base); err == nil {
		t.Fatalf("expected error for invalid bump")
	}
}
