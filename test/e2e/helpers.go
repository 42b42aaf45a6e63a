//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/cloo-solutions/truststack/internal/registry/registrytest"
	"github.com/cloo-solutions/truststack/internal/testutil"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	BinaryDir  string
	ConfigRoot string
	Workspace  string
	ServerURL  string
	HTTPClient *http.Client

	server *exec.Cmd
	logs   syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// EnvOptions selects the optional backends the server is started with.
type EnvOptions struct {
	// Postgres enables the audit mirror and the postgres lock backend.
	Postgres bool
	// S3 enables the evidence mirror on a RustFS container.
	S3 bool
}

// SetupE2EEnv builds both binaries, writes a configuration root and starts
// truststackd against it.
func SetupE2EEnv(t *testing.T, opts EnvOptions) *E2ETestEnv {
	env := &E2ETestEnv{
		T:          t,
		Ctx:        context.Background(),
		ConfigRoot: registrytest.NewRoot(t, nil),
		Workspace:  t.TempDir(),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	t.Cleanup(env.Cleanup)

	env.BuildBinaries()

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	vars := map[string]string{
		"TRUSTSTACK_PORT":               fmt.Sprint(port),
		"TRUSTSTACK_CONFIG_ROOT":        env.ConfigRoot,
		"TRUSTSTACK_WORKSPACE_ROOT":     env.Workspace,
		"TRUSTSTACK_RELOAD_INTERVAL":    "200ms",
		"TRUSTSTACK_MAX_EVIDENCE_BYTES": "1048576",
		"TRUSTSTACK_ENVIRONMENT":        "test",
	}

	if opts.Postgres {
		env.PostgresC = testutil.NewPostgresContainer(env.Ctx, t)
		migrations, err := filepath.Abs("../../migrations")
		if err != nil {
			t.Fatalf("failed to resolve migrations dir: %v", err)
		}
		vars["TRUSTSTACK_DATABASE_URL"] = env.PostgresC.ConnectionString()
		vars["TRUSTSTACK_MIGRATIONS_DIR"] = migrations
		vars["TRUSTSTACK_LOCK_BACKEND"] = "postgres"
	}
	if opts.S3 {
		env.RustFSC = testutil.NewRustFSContainer(env.Ctx, t)
		vars["TRUSTSTACK_S3_ENDPOINT"] = env.RustFSC.Endpoint()
		vars["TRUSTSTACK_S3_ACCESS_KEY_ID"] = "rustfsadmin"
		vars["TRUSTSTACK_S3_SECRET_ACCESS_KEY"] = "rustfsadmin"
		vars["TRUSTSTACK_S3_BUCKET"] = "e2e-evidence"
	}

	env.startServer(port, vars)
	return env
}

// Cleanup stops the server and releases containers and binaries
func (e *E2ETestEnv) Cleanup() {
	if e.server != nil && e.server.Process != nil {
		_ = e.server.Process.Signal(os.Interrupt)
		done := make(chan struct{})
		go func() {
			_ = e.server.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			_ = e.server.Process.Kill()
		}
		e.server = nil
		if e.T.Failed() {
			e.T.Logf("truststackd output:\n%s", e.logs.String())
		}
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
		e.RustFSC = nil
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
		e.PostgresC = nil
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
		e.BinaryDir = ""
	}
}

// BuildBinaries builds the truststack and truststackd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "truststack-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"truststackd", "truststack"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

func (e *E2ETestEnv) startServer(port int, vars map[string]string) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "truststackd"))
	cmd.Dir = e.T.TempDir()
	cmd.Env = os.Environ()
	for k, v := range vars {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdout = &e.logs
	cmd.Stderr = &e.logs

	if err := cmd.Start(); err != nil {
		e.T.Fatalf("failed to start truststackd: %v", err)
	}
	e.server = cmd
	e.ServerURL = fmt.Sprintf("http://localhost:%d", port)
	e.waitForServer(30 * time.Second)
}

// Reload asks the running server to re-read its configuration root.
func (e *E2ETestEnv) Reload() {
	if err := e.server.Process.Signal(syscall.SIGHUP); err != nil {
		e.T.Fatalf("failed to signal truststackd: %v", err)
	}
}

// Logs returns what the server has written so far.
func (e *E2ETestEnv) Logs() string {
	return e.logs.String()
}

// RunCLI runs the truststack CLI and returns stdout. Stderr is folded into
// the error.
func (e *E2ETestEnv) RunCLI(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "truststack"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"TRUSTSTACK_API_URL="+e.ServerURL,
		"TRUSTSTACK_ACTOR=e2e",
		"HOME="+workDir,
		"XDG_CONFIG_HOME="+filepath.Join(workDir, ".config"),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RunCLIJSON runs the CLI with --output and decodes stdout into out.
func (e *E2ETestEnv) RunCLIJSON(workDir string, out any, args ...string) error {
	stdout, err := e.RunCLI(workDir, append([]string{"--output"}, args...)...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(stdout), out); err != nil {
		return fmt.Errorf("failed to decode CLI output %q: %w", stdout, err)
	}
	return nil
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Field string          `json:"field,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body)
}

// Patch performs a PATCH request
func (e *E2ETestEnv) Patch(path string, body any) (*APIResponse, error) {
	return e.doRequest(http.MethodPatch, path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body any) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor", "e2e-api")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// Raw performs a GET and returns the undecoded body.
func (e *E2ETestEnv) Raw(path string) (*http.Response, []byte, error) {
	resp, err := e.HTTPClient.Get(e.ServerURL + path)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp, body, err
}

func (e *E2ETestEnv) waitForServer(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(e.ServerURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("server did not start within %v:\n%s", timeout, e.logs.String())
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
