package version

import (
	"runtime"
	"testing"
)

func TestLong(t *testing.T) {
	origCommit, origDate := GitCommit, BuildDate
	t.Cleanup(func() { GitCommit, BuildDate = origCommit, origDate })

	GitCommit, BuildDate = "unknown", "unknown"
	if got := Long(); got != Version {
		t.Errorf("Long() = %q, want %q", got, Version)
	}

	GitCommit, BuildDate = "abc1234", "2026-10-01"
	if got, want := Long(), Version+" (abc1234, 2026-10-01)"; got != want {
		t.Errorf("Long() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
}
