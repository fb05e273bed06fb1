package config

import (
	"log"
	"os"
	"text/tabwriter"

	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "inbound"
	tableFormat = `The inbound tool is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main
	Version = ""

	// BuildDate for this build, set by main
	BuildDate = ""
)

// Root wraps all other configurations.
type Root struct {
	LogLevel string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	Extract  Extract
	Lua      Lua
}

// Extract contains the attachment extraction configuration.
type Extract struct {
	Dir          string   `required:"true" default:"attachments/" desc:"Directory prefix attachments are written to"`
	AllowedTypes []string `desc:"Comma separated MIME types to save, empty allows all"`
	SanitizeHTML bool     `required:"true" default:"true" desc:"Sanitize HTML bodies before display?"`
}

// Lua contains the Lua extension host configuration.
type Lua struct {
	Path string `required:"true" default:"inbound.lua" desc:"Lua script path"`
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	err := envconfig.Process(prefix, c)
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	tabs.Flush()
}
