package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/inbucket/mandrill-inbound/pkg/extension"
	"github.com/inbucket/mandrill-inbound/pkg/extension/luahost"
	"github.com/inbucket/mandrill-inbound/pkg/extract"
	"github.com/inbucket/mandrill-inbound/pkg/inbound"
	"github.com/rs/zerolog/log"
)

type extractCmd struct {
	dir   string
	types string
}

func (*extractCmd) Name() string {
	return "extract"
}

func (*extractCmd) Synopsis() string {
	return "save the attachments of an inbound webhook payload"
}

func (*extractCmd) Usage() string {
	return `extract [flags] <payload.json|->:
	write each attachment into the extraction directory, consulting the Lua
	script before every write
`
}

func (e *extractCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.dir, "dir", "", "directory prefix, overrides INBOUND_EXTRACT_DIR")
	f.StringVar(&e.types, "types", "",
		"comma separated MIME types to save, overrides INBOUND_EXTRACT_ALLOWEDTYPES")
}

func (e *extractCmd) Execute(
	_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	name := f.Arg(0)
	if name == "" {
		return usage("payload file required")
	}
	conf := configFrom(args)
	dir := conf.Extract.Dir
	if e.dir != "" {
		dir = e.dir
	}
	allowed := conf.Extract.AllowedTypes
	if e.types != "" {
		allowed = splitTypes(e.types)
	}

	data, err := readPayload(name)
	if err != nil {
		return fatal("Couldn't read payload", err)
	}
	msg, err := inbound.Parse(data)
	if err != nil {
		return fatal("Invalid payload", err)
	}

	extHost := extension.NewHost()
	if _, err := luahost.New(log.Logger, conf.Lua, extHost); err != nil {
		return fatal("Couldn't load Lua script", err)
	}
	results, err := extract.New(dir, allowed, extHost).Extract(msg)
	extHost.Wait()
	for _, r := range results {
		fmt.Println(formatResult(r))
	}
	if err != nil {
		return fatal("Extraction failed", err)
	}

	return subcommands.ExitSuccess
}

func formatResult(r extract.Result) string {
	if r.Saved {
		return fmt.Sprintf("saved   %s -> %s", r.Name, r.Path)
	}
	return fmt.Sprintf("skipped %s: %s", r.Name, r.Reason)
}

func splitTypes(s string) []string {
	var types []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}
