package download

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPhotoPath(t *testing.T) {
	t.Parallel()

	got := PhotoPath("/img", 100, 9001, 1, 77, "abc123", "https://cdn.example/pic/abc123.webp?size=big")
	want := filepath.Join("/img", "100", "9001", "1", "77", "abc123_original.webp")
	require.Equal(t, want, got)
}

func TestPanoramaPath(t *testing.T) {
	t.Parallel()

	got := PanoramaPath("/img", 100, 9001, 77, 5, "https://cdn.example/pano/5.jpg")
	want := filepath.Join("/img", "100", "9001", "360", "77", "005.jpg")
	require.Equal(t, want, got)
}

func TestExtFromURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
		want string
	}{
		{"plain jpg", "https://cdn.example/a.jpg", ".jpg"},
		{"uppercase", "https://cdn.example/a.PNG", ".png"},
		{"query ignored", "https://cdn.example/a.webp?x=1.gif", ".webp"},
		{"no extension", "https://cdn.example/a", ".jpg"},
		{"too long", "https://cdn.example/a.backup", ".jpg"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ExtFromURL(tc.url))
		})
	}
}

func TestUpgradeURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://cdn.example/a.jpg", UpgradeURL("http://cdn.example/a.jpg"))
	require.Equal(t, "https://cdn.example/a.jpg", UpgradeURL("//cdn.example/a.jpg"))
	require.Equal(t, "https://cdn.example/a.jpg", UpgradeURL("https://cdn.example/a.jpg"))
}

func TestValidSignature(t *testing.T) {
	t.Parallel()

	require.True(t, validSignature([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	require.True(t, validSignature([]byte{0x89, 'P', 'N', 'G', 0x0D}))
	require.True(t, validSignature([]byte("GIF89a")))
	require.True(t, validSignature([]byte("BM6")))
	require.True(t, validSignature([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	require.False(t, validSignature([]byte("RIFF\x00\x00\x00\x00WAVE")))
	require.False(t, validSignature([]byte("<!doctype html>")))
	require.False(t, validSignature(nil))
}

func TestLooksLikeHTML(t *testing.T) {
	t.Parallel()

	require.True(t, looksLikeHTML([]byte("  <!DOCTYPE html>")))
	require.True(t, looksLikeHTML([]byte("<HTML>")))
	require.False(t, looksLikeHTML([]byte{0xFF, 0xD8, 0xFF}))
}
