package version

import (
	"strings"
	"testing"
)

func TestFull(t *testing.T) {
	got := Full()
	if !strings.Contains(got, Version) || !strings.Contains(got, Commit) {
		t.Errorf("Full() = %q, want version %q and commit %q", got, Version, Commit)
	}
}

func TestUserAgent(t *testing.T) {
	if Version == "" {
		t.Fatal("Version should be populated at init")
	}
	if got := UserAgent(); got != "noisepanel/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}
