package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "drops query and fragment", in: "https://Example.com/Rooms/?utm=x#top", want: "https://example.com/rooms"},
		{name: "strips trailing slash", in: "https://example.com/rooms/", want: "https://example.com/rooms"},
		{name: "lowercases path", in: "https://example.com/Studio-Plus", want: "https://example.com/studio-plus"},
		{name: "root stays root", in: "https://example.com/", want: "https://example.com"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeURLVariantsCollide(t *testing.T) {
	a, err := NormalizeURL("https://example.com/rooms?ref=home")
	require.NoError(t, err)
	b, err := NormalizeURL("https://EXAMPLE.com/rooms/")
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestResolveLink(t *testing.T) {
	base := "https://example.com/properties/lumis"

	resolved, ok := ResolveLink(base, "/rooms/studio")
	require.True(t, ok)
	require.Equal(t, "https://example.com/rooms/studio", resolved)

	_, ok = ResolveLink(base, "mailto:hello@example.com")
	require.False(t, ok)

	_, ok = ResolveLink(base, "https://other-site.com/rooms")
	require.False(t, ok)

	_, ok = ResolveLink(base, "#pricing")
	require.False(t, ok)

	_, ok = ResolveLink(base, "")
	require.False(t, ok)
}
