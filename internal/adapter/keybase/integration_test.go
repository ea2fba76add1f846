//go:build unix

package keybase

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kbchatbox/internal/bridge"
)

func waitForPIDFile(t *testing.T, path string) int {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(strings.TrimSpace(string(data))) > 0 {
			pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
			require.NoError(t, err)
			return pid
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("listener pid file never appeared")
	return 0
}

// processAlive probes the pid with signal 0.
func processAlive(pid int) bool {
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}

func TestShutdownLeavesNoListenerProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "listen.pid")
	bin := fakeCLI(t, `if [ "$2" = "api-listen" ]; then
  echo $$ > "`+pidFile+`"
  exec sleep 60
fi
cat <<'EOF'
{"result": {"conversations": []}}
EOF`)

	a := New(testLogger(), WithBin(bin))
	src := NewSource(testLogger(), WithBin(bin))
	b := bridge.New(a, src, bridge.Config{}, testLogger())

	h, err := b.Start()
	require.NoError(t, err)

	pid := waitForPIDFile(t, pidFile)
	require.True(t, processAlive(pid), "api-listen subprocess should be running")

	require.NoError(t, h.Shutdown())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("api-listen process %d still running after shutdown", pid)
}
