package clipboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/session-search/internal/platform"
)

func TestCopyEmptyContent(t *testing.T) {
	_, err := Copy("", false)
	require.Error(t, err)
	assert.Equal(t, "no content to copy", err.Error())
}

func TestNativeTool(t *testing.T) {
	have := func(names ...string) func(string) (string, error) {
		return func(n string) (string, error) {
			for _, h := range names {
				if h == n {
					return "/usr/bin/" + n, nil
				}
			}
			return "", errors.New("not found")
		}
	}
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	tests := []struct {
		name     string
		platform platform.Platform
		env      map[string]string
		tools    []string
		want     string
		wantErr  bool
	}{
		{name: "macos", platform: platform.MacOS, want: "pbcopy"},
		{name: "wsl", platform: platform.WSL2, want: "clip.exe"},
		{name: "x11 prefers xclip", platform: platform.Linux, tools: []string{"xsel", "xclip"}, want: "xclip"},
		{name: "x11 falls back to xsel", platform: platform.Linux, tools: []string{"xsel"}, want: "xsel"},
		{
			name:     "wayland first",
			platform: platform.Linux,
			env:      map[string]string{"WAYLAND_DISPLAY": "wayland-0"},
			tools:    []string{"xclip", "wl-copy"},
			want:     "wl-copy",
		},
		{
			name:     "wayland without wl-copy",
			platform: platform.Linux,
			env:      map[string]string{"WAYLAND_DISPLAY": "wayland-0"},
			tools:    []string{"xclip"},
			want:     "xclip",
		},
		{name: "linux without tools", platform: platform.Linux, wantErr: true},
		{name: "unknown", platform: platform.Unknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nativeTool(tt.platform, env(tt.env), have(tt.tools...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.name)
		})
	}
}
