package version

import (
	"testing"
)

func TestIsGreater(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.2.0", "1.1.9", true},
		{"1.0.0", "1.0.0", false},
		{"1.1.9", "1.2.0", false},
		{"2.0", "1.99", true},
		{"1.10.0", "1.9.0", true},

		// Only the segments of the first argument are compared; missing
		// segments on the other side are skipped.
		{"1.2.1", "1.2", false},
		{"1.2", "1.2.0", false},
		{"1.3", "1.2.9", true},

		// Non-numeric segments are skipped too.
		{"1.x.2", "1.0.1", true},
		{"beta", "1.0.0", false},

		// Empty segments are zero and negative segments are numbers.
		{"1..1", "1.0.0", true},
		{"1.0.0", "1..1", false},
		{"1..0", "1.0.0", false},
		{"1.-1", "1.0", false},
		{"1.0", "1.-1", true},
		{"-1", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			if got := IsGreater(tt.a, tt.b); got != tt.want {
				t.Errorf("IsGreater(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFromImageName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.2.0.bin", "1.2.0"},
		{"firmware/2.0.1.bin", "2.0.1"},
	}
	for _, tt := range tests {
		got, err := FromImageName(tt.input)
		if err != nil {
			t.Fatalf("FromImageName(%q) returned error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("FromImageName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	for _, bad := range []string{"", "1.2.0.hex", ".bin", "firmware/"} {
		if _, err := FromImageName(bad); err == nil {
			t.Errorf("FromImageName(%q) should return error", bad)
		}
	}
}

func TestUpdateAvailable(t *testing.T) {
	ok, err := UpdateAvailable("1.3.0.bin", "1.2.7")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected update for 1.3.0 over 1.2.7")
	}

	ok, err = UpdateAvailable("1.2.7.bin", "1.2.7")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected no update for equal versions")
	}

	if _, err := UpdateAvailable("readme.txt", "1.0.0"); err == nil {
		t.Error("expected error for non-image key")
	}
}

func TestLatest(t *testing.T) {
	got, ok := Latest([]string{"1.2.0.bin", "notes.txt", "1.10.0.bin", "1.9.3.bin"})
	if !ok {
		t.Fatal("expected an image")
	}
	if got != "1.10.0.bin" {
		t.Errorf("Latest = %q, want 1.10.0.bin", got)
	}

	if _, ok := Latest([]string{"notes.txt"}); ok {
		t.Error("expected no image")
	}
}
