// Package runtime resolves, spawns and supervises the engine process.
package runtime

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBinary is the engine executable name looked up when no explicit
// path is configured.
const DefaultBinary = "openagent"

// DoctorReport describes whether a usable engine binary was found and what
// it supports.
type DoctorReport struct {
	Found         bool
	InPath        bool
	ResolvedPath  string
	Version       string
	SupportsServe bool
	Notes         []string
}

// Resolve locates the engine binary: an explicit path wins, then bundled
// sidecar directories, then $PATH. Notes record every candidate considered.
func Resolve(explicit string, sidecarDirs []string) (path string, inPath bool, notes []string) {
	if explicit != "" {
		return explicit, false, []string{"using configured path: " + explicit}
	}

	for _, dir := range sidecarDirs {
		candidate := filepath.Join(dir, DefaultBinary)
		if _, err := exec.LookPath(candidate); err == nil {
			notes = append(notes, "using bundled sidecar: "+candidate)
			return candidate, false, notes
		}
		notes = append(notes, "sidecar missing: "+candidate)
	}

	found, err := exec.LookPath(DefaultBinary)
	if err != nil {
		notes = append(notes, fmt.Sprintf("%s not found in PATH", DefaultBinary))
		return "", false, notes
	}
	notes = append(notes, "found in PATH: "+found)
	return found, true, notes
}

// Doctor resolves the engine binary and probes it: a version query and a
// check that the serve subcommand exists. The probes run concurrently since
// neither depends on the other.
func Doctor(ctx context.Context, explicit string, sidecarDirs []string) DoctorReport {
	path, inPath, notes := Resolve(explicit, sidecarDirs)
	report := DoctorReport{
		Found:        path != "",
		InPath:       inPath,
		ResolvedPath: path,
		Notes:        notes,
	}
	if !report.Found {
		return report
	}

	// The probes are independent: a missing serve subcommand must not
	// cancel the version query, so errors become notes, not aborts.
	var mu sync.Mutex
	var g errgroup.Group
	g.Go(func() error {
		out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Notes = append(report.Notes, "version probe failed: "+err.Error())
			return nil
		}
		report.Version = strings.TrimSpace(string(out))
		return nil
	})
	g.Go(func() error {
		err := exec.CommandContext(ctx, path, "serve", "--help").Run()
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Notes = append(report.Notes, "serve probe failed: "+err.Error())
			return nil
		}
		report.SupportsServe = true
		return nil
	})
	_ = g.Wait()
	return report
}
