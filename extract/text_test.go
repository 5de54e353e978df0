package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain title", "plain title"},
		{"Rock &amp; Roll", "Rock & Roll"},
		{"&lt;b&gt;bold&lt;/b&gt;", "<b>bold</b>"},
		{"say &quot;hi&quot;", `say "hi"`},
		{"it&#39;s", "it's"},
		{"double &amp;quot;escaped&amp;quot;", `double "escaped"`},
		{"&amp;amp;", "&"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecodeEntities(tt.in), "input %q", tt.in)
	}
}

func TestIsDuration(t *testing.T) {
	for _, s := range []string{"0:59", "4:13", "12:05", "1:02:03", " 10:00 "} {
		assert.True(t, isDuration(s), s)
	}
	for _, s := range []string{"", "LIVE", "123", "1:2", "12 minutes", "1:02:03:04"} {
		assert.False(t, isDuration(s), s)
	}
}

func TestVideoIDFromHref(t *testing.T) {
	assert.Equal(t, "XyZ_12345", videoIDFromHref("/watch?v=XyZ_12345&list=RD"))
	assert.Equal(t, "abc-DEF_9", videoIDFromHref("https://www.youtube.com/watch?feature=x&v=abc-DEF_9"))
	assert.Equal(t, "", videoIDFromHref("/watch?v=ab"))
	assert.Equal(t, "", videoIDFromHref("/channel/UC123"))
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "https://i.ytimg.com/vi/x/1.jpg", absoluteURL("//i.ytimg.com/vi/x/1.jpg"))
	assert.Equal(t, "https://www.youtube.com/img/a.png", absoluteURL("/img/a.png"))
	assert.Equal(t, "", absoluteURL("data:image/gif;base64,AAAA"))
	assert.Equal(t, "", absoluteURL("javascript:void(0)"))
	assert.Equal(t, "", absoluteURL("  "))
}
