package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "https rss article",
			in:   "https://news.google.com/rss/articles/ABC?oc=5",
			want: "https://news.google.com/articles/ABC?oc=5",
		},
		{
			name: "http rss article upgraded to https",
			in:   "http://news.google.com/rss/articles/ABC?oc=5",
			want: "https://news.google.com/articles/ABC?oc=5",
		},
		{
			name: "other host keeps scheme",
			in:   "https://example.com/rss/articles/XYZ",
			want: "https://example.com/articles/XYZ",
		},
		{
			name: "already canonical",
			in:   "https://news.google.com/articles/ABC?oc=5",
			want: "https://news.google.com/articles/ABC?oc=5",
		},
		{
			name: "unrelated url",
			in:   "https://example.com/story",
			want: "https://example.com/story",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "not a url",
			in:   "hello world",
			want: "hello world",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"https://news.google.com/rss/articles/ABC?oc=5",
		"http://news.google.com/rss/articles/ABC",
		"https://news.google.com/rss/rss/articles/articles/X",
		"/rss/articles//rss/articles/",
		"https://news.google.com/articles/ABC",
		"javascript:void(0)",
		"日本語/rss/articles/テスト",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func FuzzNormalize_Idempotent(f *testing.F) {
	f.Add("https://news.google.com/rss/articles/ABC?oc=5")
	f.Add("http://news.google.com/rss/articles/")
	f.Add("/rss/rss/articles/articles/")
	f.Fuzz(func(t *testing.T, in string) {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	})
}

func TestNormalize_NestedSegment(t *testing.T) {
	assert.Equal(t, "https://example.com/articles/articles/X",
		Normalize("https://example.com/rss/rss/articles/articles/X"))
}
