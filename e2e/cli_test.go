package e2e_test

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binaryPath builds the sessionflow binary once per test run
func binaryPath(t *testing.T) string {
	t.Helper()

	projectRoot := findProjectRoot(t)
	path := filepath.Join(projectRoot, "bin", "sessionflow-test")

	cmd := exec.Command("go", "build", "-o", path, "./cmd/sessionflow")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return path
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

// instance is a long-running sessionflow subprocess with its observer
// endpoint bound to a private port
type instance struct {
	cmd    *exec.Cmd
	addr   string
	output *bytes.Buffer
}

func startInstance(t *testing.T, binary string, env map[string]string, args ...string) *instance {
	t.Helper()

	addr := freeAddr(t)

	cmd := exec.Command(binary, args...)
	cmd.Env = append(os.Environ(),
		"SESSIONFLOW_BACKEND=memory",
		"SESSIONFLOW_LISTEN_ADDR="+addr,
		"SESSIONFLOW_HEARTBEAT_INTERVAL=100ms",
		"SESSIONFLOW_SCENE_TABLE=atrium,studio",
	)
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	output := &bytes.Buffer{}
	cmd.Stdout = output
	cmd.Stderr = output
	require.NoError(t, cmd.Start())

	waitForServer(t, "http://"+addr+"/healthz")

	return &instance{cmd: cmd, addr: "http://" + addr, output: output}
}

// stop interrupts the subprocess and waits for a clean exit
func (i *instance) stop(t *testing.T) string {
	t.Helper()

	require.NoError(t, i.cmd.Process.Signal(syscall.SIGINT))

	done := make(chan error, 1)
	go func() { done <- i.cmd.Wait() }()

	select {
	case err := <-done:
		require.NoError(t, err, "output: %s", i.output.String())
	case <-time.After(10 * time.Second):
		_ = i.cmd.Process.Kill()
		t.Fatalf("process did not exit after interrupt; output: %s", i.output.String())
	}

	return i.output.String()
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(10 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("observer endpoint did not become ready in time")
}

// Response types for JSON parsing

type statusResponse struct {
	State         string `json:"state"`
	PlayerName    string `json:"player_name"`
	Authenticated bool   `json:"authenticated"`
	PlayerID      string `json:"player_id"`
	PlayerCount   int    `json:"player_count"`
	Session       *struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		JoinCode   string `json:"join_code"`
		Host       bool   `json:"host"`
		MaxPlayers int    `json:"max_players"`
		IsPrivate  bool   `json:"is_private"`
	} `json:"session"`
}

func getStatus(t *testing.T, baseURL string) statusResponse {
	t.Helper()

	resp, err := http.Get(baseURL + "/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

func waitForState(t *testing.T, baseURL, state string) statusResponse {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	var last statusResponse
	for time.Now().Before(deadline) {
		last = getStatus(t, baseURL)
		if last.State == state {
			return last
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatalf("instance never reached state %q, last status: %+v", state, last)
	return last
}

// Tests

func TestCLI_ConnectHostsSession(t *testing.T) {
	binary := binaryPath(t)

	inst := startInstance(t, binary, map[string]string{
		"SESSIONFLOW_PLAYER_NAME": "Alice",
	}, "connect")

	status := waitForState(t, inst.addr, "connected")
	assert.Equal(t, "Alice", status.PlayerName)
	assert.True(t, status.Authenticated)
	assert.NotEmpty(t, status.PlayerID)
	require.NotNil(t, status.Session)
	assert.Equal(t, "Alice's Room", status.Session.Name)
	assert.True(t, status.Session.Host)
	assert.Len(t, status.Session.JoinCode, 6)

	output := inst.stop(t)
	assert.Contains(t, output, "state: connecting -> connected")
}

func TestCLI_StatusCommandQueriesRunningInstance(t *testing.T) {
	binary := binaryPath(t)

	inst := startInstance(t, binary, map[string]string{
		"SESSIONFLOW_PLAYER_NAME": "Alice",
	}, "connect")
	defer inst.stop(t)

	waitForState(t, inst.addr, "connected")

	cmd := exec.Command(binary, "status", "--server", inst.addr)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "output: %s", output)

	// stderr carries logs; the status JSON is the first stdout line
	var status statusResponse
	line := strings.SplitN(string(output), "\n", 2)[0]
	require.NoError(t, json.Unmarshal([]byte(line), &status))
	assert.Equal(t, "connected", status.State)
	assert.Equal(t, "Alice", status.PlayerName)
}

func TestCLI_CreateNamedPrivateSession(t *testing.T) {
	binary := binaryPath(t)

	inst := startInstance(t, binary, map[string]string{
		"SESSIONFLOW_PLAYER_NAME": "Bob",
	}, "create", "--name", "Test Room", "--private", "--max-players", "4")
	defer inst.stop(t)

	status := waitForState(t, inst.addr, "connected")
	require.NotNil(t, status.Session)
	assert.Equal(t, "Test Room", status.Session.Name)
	assert.True(t, status.Session.IsPrivate)
	assert.Equal(t, 4, status.Session.MaxPlayers)
	assert.True(t, status.Session.Host)
}

func TestCLI_JoinUnknownCodeFailsBackToAuthenticated(t *testing.T) {
	binary := binaryPath(t)

	inst := startInstance(t, binary, nil, "join", "ZZZZZZ")

	status := waitForState(t, inst.addr, "authenticated")
	assert.Nil(t, status.Session)

	// The failed attempt must not flip the process back to connecting
	time.Sleep(200 * time.Millisecond)
	status = getStatus(t, inst.addr)
	assert.Equal(t, "authenticated", status.State)

	output := inst.stop(t)
	assert.Contains(t, output, "connection failed")
}

func TestCLI_RejectsUnknownBackend(t *testing.T) {
	binary := binaryPath(t)

	cmd := exec.Command(binary, "connect", "--backend", "bogus")
	output, err := cmd.CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(output), "invalid SESSIONFLOW_BACKEND")
}

func TestCLI_Help(t *testing.T) {
	binary := binaryPath(t)

	cmd := exec.Command(binary, "--help")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err)
	for _, sub := range []string{"connect", "create", "join", "status", "assignment"} {
		assert.Contains(t, string(output), sub)
	}
}
