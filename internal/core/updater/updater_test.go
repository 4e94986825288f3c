package updater

import (
	"runtime"
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"v0.3.0", "0.3.0"},
		{"0.3.0", "0.3.0"},
		{" v1.2.3 ", "1.2.3"},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAssetName(t *testing.T) {
	name := AssetName()
	if !strings.HasPrefix(name, "vskip_") || !strings.HasSuffix(name, runtime.GOARCH) {
		t.Errorf("AssetName() = %q", name)
	}
}
