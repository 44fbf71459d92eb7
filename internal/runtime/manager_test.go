package runtime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	if err != nil {
		t.Fatalf("FindFreePort failed: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Errorf("port = %d, want a valid TCP port", port)
	}
}

func TestManagerStartAndStop(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "engine")
	script := `#!/bin/sh
echo "listening on $3:$5"
sleep 60
`
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(nil)
	url, err := m.Start(bin, "127.0.0.1", 0, dir)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !strings.HasPrefix(url, "http://127.0.0.1:") {
		t.Errorf("url = %q, want http://127.0.0.1:<port>", url)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		info := m.Info()
		if info.Running && info.LastStdout != "" {
			if !strings.Contains(info.LastStdout, "listening") {
				t.Errorf("stdout = %q, want listening line", info.LastStdout)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("engine never reported running with output: %+v", info)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	deadline = time.Now().Add(2 * time.Second)
	for m.Info().Running {
		if time.Now().After(deadline) {
			t.Fatal("engine still running after Stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestManagerStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "engine")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nsleep 60\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager(nil)
	first, err := m.Start(bin, "127.0.0.1", 0, dir)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop()

	second, err := m.Start(bin, "127.0.0.1", 0, dir)
	if err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if second != first {
		t.Errorf("second Start returned %q, want existing %q", second, first)
	}
}

func TestManagerInfoIdle(t *testing.T) {
	m := NewManager(nil)
	info := m.Info()
	if info.Running {
		t.Error("idle manager reported running")
	}
	if info.PID != 0 || info.BaseURL != "" {
		t.Errorf("idle info not zero: %+v", info)
	}
}
