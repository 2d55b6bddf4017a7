package urlnorm

import "testing"

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"strict", ModeStrict},
		{"lenient", ModeLenient},
		{"none", ModeNone},
		{" Lenient ", ModeLenient},
		{"", ModeStrict},
		{"bogus", ModeStrict},
	}
	for _, c := range cases {
		if got := ParseMode(c.in); got != c.want {
			t.Errorf("ParseMode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeStrict(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			"lowercases scheme and host",
			"HTTPS://Example.COM/News/Story",
			"https://example.com/News/Story",
		},
		{
			"drops default https port",
			"https://example.com:443/a",
			"https://example.com/a",
		},
		{
			"drops default http port",
			"http://example.com:80/a",
			"http://example.com/a",
		},
		{
			"keeps non-default port",
			"https://example.com:8443/a",
			"https://example.com:8443/a",
		},
		{
			"drops fragment",
			"https://example.com/a#section-2",
			"https://example.com/a",
		},
		{
			"collapses duplicate slashes",
			"https://example.com//news///story",
			"https://example.com/news/story",
		},
		{
			"trims trailing slash",
			"https://example.com/news/story/",
			"https://example.com/news/story",
		},
		{
			"root path survives",
			"https://example.com/",
			"https://example.com/",
		},
		{
			"strips utm params",
			"https://example.com/a?utm_source=x&utm_medium=y&id=7",
			"https://example.com/a?id=7",
		},
		{
			"strips exact tracking keys",
			"https://example.com/a?fbclid=abc&gclid=def&mkt_tok=ghi",
			"https://example.com/a",
		},
		{
			"preserves remaining query order",
			"https://example.com/a?z=1&utm_campaign=c&a=2",
			"https://example.com/a?z=1&a=2",
		},
		{
			"spm prefix is stripped",
			"https://example.com/a?spm=1.2.3&page=4",
			"https://example.com/a?page=4",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Normalize(c.raw, "", ModeStrict); got != c.want {
				t.Errorf("Normalize(%q) = %q, want %q", c.raw, got, c.want)
			}
		})
	}
}

func TestNormalizeEquivalentForms(t *testing.T) {
	a := Normalize("https://Example.com/a/?utm_source=x", "", ModeStrict)
	b := Normalize("https://example.com/a", "", ModeStrict)
	if a != b {
		t.Fatalf("equivalent URLs normalize differently: %q vs %q", a, b)
	}
	ha, _ := Hash(a, "sha256")
	hb, _ := Hash(b, "sha256")
	if ha != hb {
		t.Error("equivalent URLs must share a hash")
	}
}

func TestNormalizeCanonicalWins(t *testing.T) {
	got := Normalize("https://example.com/amp/story?utm_source=x",
		"https://example.com/story", ModeStrict)
	if got != "https://example.com/story" {
		t.Errorf("canonical should win, got %q", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.COM:443//news/story/?utm_source=x&id=7#frag",
		"http://example.com/a/b/c",
		"https://example.com/",
	}
	for _, in := range inputs {
		once := Normalize(in, "", ModeStrict)
		twice := Normalize(once, "", ModeStrict)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeLenientKeepsPathAndQuery(t *testing.T) {
	got := Normalize("HTTPS://Example.com/news/story/?utm_source=x#frag", "", ModeLenient)
	want := "https://example.com/news/story/?utm_source=x"
	if got != want {
		t.Errorf("lenient = %q, want %q", got, want)
	}
}

func TestNormalizeModeNone(t *testing.T) {
	raw := "HTTPS://Example.COM/A?utm_source=x#frag"
	if got := Normalize(raw, "", ModeNone); got != raw {
		t.Errorf("none mode must not rewrite, got %q", got)
	}
}

func TestNormalizeUnparseable(t *testing.T) {
	raw := "not a url"
	if got := Normalize(raw, "", ModeStrict); got != raw {
		t.Errorf("unparseable input should pass through, got %q", got)
	}
}

func TestHash(t *testing.T) {
	const u = "https://example.com/story"

	sha, err := Hash(u, "sha256")
	if err != nil {
		t.Fatalf("sha256: %v", err)
	}
	if len(sha) != 64 {
		t.Errorf("sha256 hex length = %d, want 64", len(sha))
	}
	def, err := Hash(u, "")
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if def != sha {
		t.Errorf("default algo should be sha256")
	}

	s1, err := Hash(u, "sha1")
	if err != nil {
		t.Fatalf("sha1: %v", err)
	}
	if len(s1) != 40 {
		t.Errorf("sha1 hex length = %d, want 40", len(s1))
	}

	m, err := Hash(u, "md5")
	if err != nil {
		t.Fatalf("md5: %v", err)
	}
	if len(m) != 32 {
		t.Errorf("md5 hex length = %d, want 32", len(m))
	}

	x, err := Hash(u, "xxhash")
	if err != nil {
		t.Fatalf("xxhash: %v", err)
	}
	if len(x) != 16 {
		t.Errorf("xxhash hex length = %d, want 16", len(x))
	}
	x2, _ := Hash(u, "XXHash")
	if x != x2 {
		t.Errorf("algo name should be case-insensitive")
	}

	if _, err := Hash(u, "crc32"); err == nil {
		t.Error("unsupported algorithm should error")
	}
}
