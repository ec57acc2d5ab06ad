package pathmatch

import "testing"

func TestMatches(t *testing.T) {
	cases := []struct {
		pattern, literal string
		want             bool
	}{
		{"test.?", "test.1", true},
		{"test.?", "test.12", false},
		{"test.*", "test.txt.1", true},
		{"/data/*.csv", "/data/a.csv", true},
		{"/data/*.csv", "/data/sub/a.csv", false},
		{"/data/[abc].csv", "/data/b.csv", true},
		{"/data/[abc].csv", "/data/d.csv", false},
		{"/exact/path", "/exact/path", true},
		{"/exact/path", "/exact/other", false},
	}

	for _, c := range cases {
		if got := Matches(c.pattern, c.literal); got != c.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", c.pattern, c.literal, got, c.want)
		}
	}
}

func TestMatchesMalformedPatternNeverMatches(t *testing.T) {
	if Matches("/data/[unterminated", "/data/[unterminated") {
		t.Fatal("malformed pattern should never match")
	}
}

func TestIsPattern(t *testing.T) {
	if IsPattern("/literal/path") {
		t.Fatal("literal path should not be reported as a pattern")
	}
	for _, p := range []string{"/a/*", "/a/?", "/a/[bc]"} {
		if !IsPattern(p) {
			t.Fatalf("%q should be reported as a pattern", p)
		}
	}
}
