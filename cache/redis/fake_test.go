package redis

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
)

// fakeServer speaks just enough RESP to exercise Store without a real Redis.
type fakeServer struct {
	mu       sync.Mutex
	data     map[string]string
	password string
	dials    int
	commands []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{data: make(map[string]string)}
}

func (f *fakeServer) dial(context.Context, Options) (net.Conn, error) {
	client, server := net.Pipe()
	f.mu.Lock()
	f.dials++
	f.mu.Unlock()
	go f.serve(server)
	return client, nil
}

func (f *fakeServer) serve(c net.Conn) {
	defer c.Close()
	r := bufio.NewReader(c)
	for {
		req, err := decodeReply(r)
		if err != nil {
			return
		}
		items, _ := req.([]any)
		args := make([]string, len(items))
		for i, it := range items {
			b, _ := it.([]byte)
			args[i] = string(b)
		}
		if _, err := c.Write([]byte(f.handle(args))); err != nil {
			return
		}
	}
}

func (f *fakeServer) handle(args []string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(args) == 0 {
		return "-ERR empty command\r\n"
	}
	f.commands = append(f.commands, strings.Join(args, " "))

	switch strings.ToUpper(args[0]) {
	case "PING":
		return "+PONG\r\n"
	case "AUTH":
		if len(args) == 2 && args[1] == f.password {
			return "+OK\r\n"
		}
		return "-WRONGPASS invalid password\r\n"
	case "SELECT":
		return "+OK\r\n"
	case "GET":
		v, ok := f.data[args[1]]
		if !ok {
			return "$-1\r\n"
		}
		return bulk(v)
	case "SET":
		f.data[args[1]] = args[2]
		return "+OK\r\n"
	case "DEL":
		if _, ok := f.data[args[1]]; !ok {
			return ":0\r\n"
		}
		delete(f.data, args[1])
		return ":1\r\n"
	case "MGET":
		var b strings.Builder
		fmt.Fprintf(&b, "*%d\r\n", len(args)-1)
		for _, k := range args[1:] {
			if v, ok := f.data[k]; ok {
				b.WriteString(bulk(v))
			} else {
				b.WriteString("$-1\r\n")
			}
		}
		return b.String()
	default:
		return "-ERR unknown command\r\n"
	}
}

func (f *fakeServer) lastCommand() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		return ""
	}
	return f.commands[len(f.commands)-1]
}

func bulk(v string) string { return fmt.Sprintf("$%d\r\n%s\r\n", len(v), v) }
