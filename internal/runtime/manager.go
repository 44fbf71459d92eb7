package runtime

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// Info is a snapshot of the supervised engine process.
type Info struct {
	Running    bool
	BaseURL    string
	PID        int
	RSSBytes   uint64
	CPUPercent float64
	LastStdout string
	LastStderr string
}

// Manager spawns the engine with `serve` and supervises it for the lifetime
// of the panel.
type Manager struct {
	log *zap.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	baseURL    string
	lastStdout string
	lastStderr string
	exited     bool
}

// NewManager creates an idle manager.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{log: log}
}

// FindFreePort asks the kernel for an unused TCP port on localhost.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Start launches the engine in dir. A zero port picks a free one. The call
// returns as soon as the process is running; readiness is the caller's
// health check.
func (m *Manager) Start(binPath, hostname string, port int, dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != nil && !m.exited {
		return m.baseURL, nil
	}

	if port == 0 {
		p, err := FindFreePort()
		if err != nil {
			return "", fmt.Errorf("find free port: %w", err)
		}
		port = p
	}

	cmd := exec.Command(binPath, "serve", "--hostname", hostname, "--port", strconv.Itoa(port))
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "OPENDECK=1")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", err
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start engine: %w", err)
	}

	m.cmd = cmd
	m.exited = false
	m.baseURL = fmt.Sprintf("http://%s:%d", hostname, port)
	m.log.Info("engine started",
		zap.String("bin", binPath),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("url", m.baseURL),
	)

	go m.tail(stdout, &m.lastStdout)
	go m.tail(stderr, &m.lastStderr)
	go func() {
		err := cmd.Wait()
		m.mu.Lock()
		m.exited = true
		m.mu.Unlock()
		m.log.Warn("engine exited", zap.Error(err))
	}()

	return m.baseURL, nil
}

// tail keeps the most recent line of an output stream for diagnostics.
func (m *Manager) tail(r interface{ Read([]byte) (int, error) }, dst *string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		m.mu.Lock()
		*dst = line
		m.mu.Unlock()
	}
}

// Stop terminates the engine process if one is running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	cmd := m.cmd
	exited := m.exited
	m.mu.Unlock()
	if cmd == nil || exited {
		return nil
	}
	return cmd.Process.Kill()
}

// Info reports the supervised process state, including memory and CPU usage
// when the process is alive.
func (m *Manager) Info() Info {
	m.mu.Lock()
	info := Info{
		BaseURL:    m.baseURL,
		LastStdout: m.lastStdout,
		LastStderr: m.lastStderr,
	}
	cmd := m.cmd
	exited := m.exited
	m.mu.Unlock()

	if cmd == nil || cmd.Process == nil || exited {
		return info
	}
	info.Running = true
	info.PID = cmd.Process.Pid

	proc, err := process.NewProcess(int32(info.PID))
	if err != nil {
		return info
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		info.CPUPercent = cpu
	}
	return info
}
