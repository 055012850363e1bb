package common

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate = validator.New()

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultReadBufferSize   = 64 * 1024        // 64 KB per read
	DefaultMaxContentLength = 16 * 1024 * 1024 // 16 MB payload limit
	DefaultIOLoops          = 2
)

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

// LoopSelection selects how the server assigns new connections to I/O loops
type LoopSelection string

const (
	LoopSelectionRoundRobin LoopSelection = "round-robin"
	LoopSelectionHash       LoopSelection = "hash"
)

// DispatchMode selects where decoded messages are handed to business handlers
type DispatchMode string

const (
	// DispatchInline runs handlers on the connection's loop (ordered per connection)
	DispatchInline DispatchMode = "inline"
	// DispatchPool runs handlers on a worker pool (no ordering guarantee)
	DispatchPool DispatchMode = "pool"
)

// ServerConfig holds all configuration parameters of one pipe server role.
type ServerConfig struct {
	// Name of the server role, used as prefix for connection names
	Name string `validate:"required"`

	// Endpoint is the well-known pipe name (socket path on unix, \\.\pipe\... on windows)
	Endpoint string `validate:"required"`

	// IOLoops is the number of pooled I/O loops, 0 runs everything on the control loop
	IOLoops int `validate:"gte=0"`

	// LoopSelection is the assignment strategy for new connections
	LoopSelection LoopSelection `validate:"oneof=round-robin hash"`

	// ReadBufferSize is the number of bytes requested per read
	ReadBufferSize int `validate:"gt=0"`

	// MaxContentLength is the largest accepted payload of a single frame
	MaxContentLength uint32

	// AcceptRate limits new connections per second, 0 accepts without limit.
	// Connections above the rate are closed right after accept.
	AcceptRate float64 `validate:"gte=0"`

	// Dispatch settings
	DispatchMode    DispatchMode `validate:"oneof=inline pool"`
	DispatchWorkers int          `validate:"gte=1"`

	// RelayNotify forwards notify messages from one peer to all others
	RelayNotify bool

	// Logging configuration
	LogLevel string
}

// ApplyDefaults fills zero values with defaults
func (c *ServerConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "main"
	}
	if c.IOLoops < 0 {
		c.IOLoops = 0
	}
	if c.LoopSelection == "" {
		c.LoopSelection = LoopSelectionRoundRobin
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.MaxContentLength == 0 {
		c.MaxContentLength = DefaultMaxContentLength
	}
	if c.DispatchMode == "" {
		c.DispatchMode = DispatchInline
	}
	if c.DispatchWorkers <= 0 {
		c.DispatchWorkers = 16
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for values that can't be defaulted
func (c *ServerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("server %q: invalid %s %q (%s)", c.Name, e.Field(), fmt.Sprint(e.Value()), describeTag(e))
		}
		return fmt.Errorf("server %q: %w", c.Name, err)
	}
	return nil
}

// describeTag turns a failed validation tag into a readable constraint
func describeTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return "expected one of: " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be at least " + e.Param()
	default:
		return "failed on " + e.Tag()
	}
}

// ParseEndpoints parses a comma-separated list of NAME=ENDPOINT pairs.
// A single value without '=' is accepted as endpoint of the role "main".
func ParseEndpoints(value string) (map[string]string, error) {
	endpoints := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, endpoint, found := strings.Cut(part, "=")
		if !found {
			name, endpoint = "main", part
		}
		name, endpoint = strings.TrimSpace(name), strings.TrimSpace(endpoint)
		if name == "" || endpoint == "" {
			return nil, fmt.Errorf("invalid endpoint format: %s (expected NAME=ENDPOINT)", part)
		}
		if _, dup := endpoints[name]; dup {
			return nil, fmt.Errorf("duplicate server name: %s", name)
		}
		endpoints[name] = endpoint
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints provided")
	}
	return endpoints, nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Pipe Server " + c.Name)
	addField("Endpoint", c.Endpoint)
	addField("I/O Loops", strconv.Itoa(c.IOLoops))
	addField("Loop Selection", string(c.LoopSelection))
	addField("Read Buffer", fmt.Sprintf("%d KB", c.ReadBufferSize/1024))
	addField("Max Content Length", fmt.Sprintf("%d KB", c.MaxContentLength/1024))
	if c.AcceptRate > 0 {
		addField("Accept Rate", fmt.Sprintf("%g/s", c.AcceptRate))
	}

	addSection("Dispatch")
	addField("Mode", string(c.DispatchMode))
	if c.DispatchMode == DispatchPool {
		addField("Workers", strconv.Itoa(c.DispatchWorkers))
	}
	addField("Relay Notify", strconv.FormatBool(c.RelayNotify))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a dialing peer
type ClientConfig struct {
	Endpoint         string
	TimeoutSecond    int
	RetryCount       int
	ReadBufferSize   int
	MaxContentLength uint32
}

// ApplyDefaults fills zero values with defaults
func (c *ClientConfig) ApplyDefaults() {
	if c.RetryCount < 1 {
		c.RetryCount = 1
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.MaxContentLength == 0 {
		c.MaxContentLength = DefaultMaxContentLength
	}
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Read Buffer", fmt.Sprintf("%d KB", c.ReadBufferSize/1024))

	return sb.String()
}

// SortedNames returns the keys of an endpoint map in stable order
func SortedNames(endpoints map[string]string) []string {
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
