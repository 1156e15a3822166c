package transport

import "testing"

func TestBuildClientConfig_RequiresAuth(t *testing.T) {
	_, err := buildClientConfig(PullOptions{InsecureIgnoreHost: true})
	if err == nil {
		t.Fatalf("expected error when no KeyFile or Password is set")
	}
}

func TestBuildClientConfig_RejectsBadKeyFile(t *testing.T) {
	_, err := buildClientConfig(PullOptions{KeyFile: "/nonexistent/key", InsecureIgnoreHost: true})
	if err == nil {
		t.Fatalf("expected error reading a nonexistent key file")
	}
}

func TestBuildHostKeyCallback_InsecureBypassesLookup(t *testing.T) {
	cb, err := buildHostKeyCallback(PullOptions{InsecureIgnoreHost: true})
	if err != nil {
		t.Fatalf("buildHostKeyCallback: %v", err)
	}
	if cb == nil {
		t.Fatalf("expected a non-nil callback")
	}
}

func TestBuildHostKeyCallback_MissingKnownHosts(t *testing.T) {
	_, err := buildHostKeyCallback(PullOptions{KnownHostsFile: "/nonexistent/known_hosts"})
	if err == nil {
		t.Fatalf("expected error for a missing known_hosts file")
	}
}
