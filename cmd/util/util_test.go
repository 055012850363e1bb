package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/csIPC/rpc/transport/pipe"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line exceeds %d characters: %q", Wrap, line)
		}
	}
	if got := WrapString("short text"); got != "short text" {
		t.Errorf("expected unchanged text, got %q", got)
	}
}

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"main", pipe.DefaultEndpoint("main")},
		{"service", pipe.DefaultEndpoint("service")},
		{"/tmp/custom.sock", "/tmp/custom.sock"},
		{`\\.\pipe\custom`, `\\.\pipe\custom`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ResolveEndpoint(tt.in); got != tt.want {
			t.Errorf("ResolveEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
