// Package docker runs the throwaway containers used by integration tests.
package docker

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Container describes an image built from a Dockerfile at the repo root and
// published on a fixed host port.
type Container struct {
	Name          string
	Dockerfile    string
	HostPort      string
	ContainerPort string
}

// Addr is the host:port the container is reachable on.
func (c Container) Addr() string { return "127.0.0.1:" + c.HostPort }

// Start builds the image, replaces any stale container and waits until
// ready reports success or timeout elapses.
func (c Container) Start(timeout time.Duration, ready func() error) error {
	if _, err := exec.LookPath("docker"); err != nil {
		return fmt.Errorf("docker executable not found: %w", err)
	}
	_ = c.Stop()

	root := RepoRoot()
	if err := run("build", "-f", filepath.Join(root, c.Dockerfile), "-t", c.Name, root); err != nil {
		return err
	}
	if err := run("run", "-d", "--rm", "--name", c.Name, "-p", c.HostPort+":"+c.ContainerPort, c.Name); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		err := ready()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("container %s not ready: %w", c.Name, err)
		}
		time.Sleep(150 * time.Millisecond)
	}
}

// Stop removes the container. A missing container is not an error.
func (c Container) Stop() error {
	err := run("stop", c.Name)
	if err != nil && strings.Contains(err.Error(), "No such container") {
		return nil
	}
	return err
}

func run(args ...string) error {
	cmd := exec.Command("docker", args...)
	cmd.Dir = RepoRoot()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker %s failed: %w: %s", args[0], err, output)
	}
	return nil
}

// RepoRoot locates the module root from this file's position.
func RepoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}
