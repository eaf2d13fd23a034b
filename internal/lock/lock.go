// Package lock guards the data directory against concurrent instances.
// The snapshot and activity databases assume a single writer process;
// the guard makes a second instance fail fast with the holder's identity.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// GuardFileName is the name of the guard file inside the data directory
	GuardFileName = ".mrg.lock"

	// DefaultStaleTimeout bounds how long a cross-host guard survives
	// without its holder being verifiable
	DefaultStaleTimeout = 30 * time.Minute
)

// HolderInfo identifies the process holding the guard
type HolderInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"startTime"`
	Command   string    `json:"command,omitempty"`
}

// Guard is a file-based mutual exclusion over one data directory
type Guard struct {
	path         string
	staleTimeout time.Duration
	info         *HolderInfo
}

// NewGuard creates a guard for the given data directory
func NewGuard(dataDir string) (*Guard, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Guard{
		path:         filepath.Join(dataDir, GuardFileName),
		staleTimeout: DefaultStaleTimeout,
	}, nil
}

// SetStaleTimeout overrides the cross-host staleness bound
func (g *Guard) SetStaleTimeout(d time.Duration) {
	g.staleTimeout = d
}

// Acquire takes the guard, naming the command that holds it. A guard left
// behind by a dead process is reclaimed; a live holder makes Acquire fail
// with a HeldError.
func (g *Guard) Acquire(command string) error {
	if g.info != nil {
		// Re-acquiring within the same instance only updates the command
		existing, err := g.readInfo()
		if err == nil && g.heldByThisInstance(existing) {
			existing.Command = command
			if err := g.writeInfo(existing); err != nil {
				return err
			}
			g.info.Command = command
			return nil
		}
	}

	if existing, err := g.readInfo(); err == nil {
		if !g.isStale(existing) {
			return &HeldError{Holder: existing}
		}
		if err := os.Remove(g.path); err != nil {
			return fmt.Errorf("failed to remove stale guard: %w", err)
		}
	}

	hostname, _ := os.Hostname()
	info := &HolderInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		Command:   command,
	}

	// O_EXCL makes creation atomic against racing instances
	file, err := os.OpenFile(g.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			if existing, readErr := g.readInfo(); readErr == nil {
				return &HeldError{Holder: existing}
			}
		}
		return fmt.Errorf("failed to create guard file: %w", err)
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(info); err != nil {
		os.Remove(g.path)
		return fmt.Errorf("failed to write guard info: %w", err)
	}

	g.info = info
	return nil
}

// Release removes the guard if this instance still holds it
func (g *Guard) Release() error {
	if g.info == nil {
		return nil
	}

	existing, err := g.readInfo()
	if err != nil {
		g.info = nil
		return nil // guard file already gone
	}

	if !g.heldByThisInstance(existing) {
		g.info = nil
		return fmt.Errorf("guard was taken over by another process")
	}

	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove guard file: %w", err)
	}

	g.info = nil
	return nil
}

// IsLocked reports whether a live holder exists
func (g *Guard) IsLocked() bool {
	info, err := g.readInfo()
	if err != nil {
		return false
	}
	return !g.isStale(info)
}

// Holder returns the live holder, or an error when none exists
func (g *Guard) Holder() (*HolderInfo, error) {
	info, err := g.readInfo()
	if err != nil {
		return nil, err
	}
	if g.isStale(info) {
		return nil, fmt.Errorf("guard is stale")
	}
	return info, nil
}

// ForceRelease removes the guard file unconditionally
func (g *Guard) ForceRelease() error {
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to force remove guard: %w", err)
	}
	g.info = nil
	return nil
}

func (g *Guard) readInfo() (*HolderInfo, error) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return nil, err
	}

	var info HolderInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid guard file format: %w", err)
	}
	return &info, nil
}

func (g *Guard) writeInfo(info *HolderInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(g.path, data, 0644)
}

// isStale reports whether the holder can be presumed dead. Same-host holders
// are verified by PID; cross-host holders fall back to the stale timeout.
func (g *Guard) isStale(info *HolderInfo) bool {
	hostname, _ := os.Hostname()
	if info.Hostname == hostname {
		return !processExists(info.PID)
	}
	return time.Since(info.StartTime) > g.staleTimeout
}

func (g *Guard) heldByThisInstance(info *HolderInfo) bool {
	if g.info == nil {
		return false
	}
	hostname, _ := os.Hostname()
	return info.PID == os.Getpid() &&
		info.Hostname == hostname &&
		g.info.StartTime.Equal(info.StartTime) &&
		g.info.Command == info.Command
}

// HeldError reports that the guard is held by a live process
type HeldError struct {
	Holder *HolderInfo
}

func (e *HeldError) Error() string {
	if e.Holder == nil {
		return "data directory is locked by another instance"
	}
	return fmt.Sprintf("data directory is locked by PID %d on %s since %s (command: %s)",
		e.Holder.PID,
		e.Holder.Hostname,
		e.Holder.StartTime.Format(time.RFC3339),
		e.Holder.Command,
	)
}

// IsHeldError checks if an error reports a live holder
func IsHeldError(err error) bool {
	_, ok := err.(*HeldError)
	return ok
}
