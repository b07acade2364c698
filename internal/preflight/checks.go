package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"lootwatch/internal/config"
)

// chromeCandidates mirrors the executable names the browser allocator probes.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
}

// ResolveChromePath returns the configured browser path, or the first
// candidate found on PATH, or "" when none is installed.
func ResolveChromePath(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	for _, candidate := range chromeCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path
		}
	}
	return ""
}

// CheckBinary verifies that command resolves to an executable.
func CheckBinary(name, command string) Result {
	command = strings.TrimSpace(command)
	if command == "" {
		return Result{Name: name, Detail: "not found on PATH"}
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("binary %q not found", command)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckSession verifies that a marketplace session cookie is configured.
// Stash polling cannot work without one; search only degrades.
func CheckSession(cfg config.Marketplace, required bool) Result {
	const name = "Marketplace session"
	if strings.TrimSpace(cfg.SessionID) != "" {
		return Result{Name: name, Passed: true, Detail: "POESESSID set"}
	}
	if required {
		return Result{Name: name, Detail: "missing session_id (required for stash polling)"}
	}
	return Result{Name: name, Passed: true, Detail: "anonymous (private leagues need session_id)"}
}

// CheckViewer verifies that the viewer the renderer captures from answers.
func CheckViewer(ctx context.Context, viewerURL string) Result {
	const name = "Viewer"

	base := strings.TrimRight(strings.TrimSpace(viewerURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing renderer.viewer_url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", base, err)}
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (unreachable: %v)", base, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("%s (status %d)", base, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: base + " (reachable)"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
