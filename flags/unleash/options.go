package unleash

import (
	"strings"
	"time"

	"github.com/adeilh/go-flagcheck/flags"
)

// Mode selects which Unleash API the client talks to.
type Mode string

const (
	// ModeFrontend polls the frontend API, which returns already evaluated
	// toggles for the token's environment.
	ModeFrontend Mode = "frontend"
	// ModeClient polls the server-side client API and evaluates toggles
	// locally.
	ModeClient Mode = "client"
)

// Options configures a Client.
type Options struct {
	URL              string
	Token            string
	AppName          string
	InstanceID       string
	Mode             Mode
	RefreshInterval  time.Duration
	RequestTimeout   time.Duration
	SynchronousFetch bool
	Logger           flags.Logger
	// OnError receives every failed fetch. The default logs it.
	OnError func(error)
}

func (o Options) withDefaults() Options {
	o.URL = strings.TrimRight(o.URL, "/")
	if o.URL == "" {
		o.URL = "http://localhost:4242/api/frontend"
	}
	if o.AppName == "" {
		o.AppName = "default"
	}
	if o.InstanceID == "" {
		o.InstanceID = "flagcheck"
	}
	if o.Mode == "" {
		o.Mode = ModeFrontend
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = 5 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	return o
}
