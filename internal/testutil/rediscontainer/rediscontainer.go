// Package rediscontainer starts a Redis server in docker for integration
// tests of the Redis flag store.
package rediscontainer

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/adeilh/go-flagcheck/internal/testutil/docker"
)

var (
	container = docker.Container{
		Name:          "flagcheck-redis-test",
		Dockerfile:    "Dockerfile.redis.test",
		HostPort:      "6390",
		ContainerPort: "6379",
	}

	mu      sync.Mutex
	started bool
)

// Addr exposes the Redis host:port used by integration tests.
func Addr() string { return container.Addr() }

// Setup runs the container once and waits until it answers PING.
func Setup() error {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return nil
	}
	if err := container.Start(5*time.Second, ping); err != nil {
		return err
	}
	started = true
	return nil
}

// Teardown stops the container if Setup started it.
func Teardown() error {
	mu.Lock()
	defer mu.Unlock()
	if !started {
		return nil
	}
	started = false
	return container.Stop()
}

func ping() error {
	conn, err := net.DialTimeout("tcp", Addr(), 200*time.Millisecond)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(200 * time.Millisecond))
	if _, err := conn.Write([]byte("*1\r\n$4\r\nPING\r\n")); err != nil {
		return err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.Contains(line, "PONG") {
		return errors.New("unexpected PING reply: " + strings.TrimSpace(line))
	}
	return nil
}
