package commands

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"
)

const APP = "project-portal"

// Options are the global command line options, shared by all commands.
type Options struct {
	Config string
	Debug  bool
}

// Command is the interface implemented by the project-portal subcommands.
type Command interface {
	Name() string
	Description() string
	Usage() string
	Help()
	FlagSet() *flag.FlagSet
	Execute(args ...any) error
}

// Parse resolves the subcommand named in args and parses the remaining
// arguments against its flag set.
func Parse(cli []Command, args []string) (Command, error) {
	if len(args) == 0 {
		return nil, nil
	}

	for _, c := range cli {
		if c.Name() == args[0] {
			flagset := c.FlagSet()
			if flagset == nil {
				panic(fmt.Sprintf("'%s' command implementation without a flagset", c.Name()))
			}

			return c, flagset.Parse(args[1:])
		}
	}

	return nil, fmt.Errorf("unknown command '%s'", args[0])
}

// command is the base struct for the subcommands, with the flags common to
// anything that touches the spreadsheet or the configuration.
type command struct {
	config      string
	workdir     string
	credentials string
	tokens      string
	url         string
	debug       bool
}

func (cmd *command) flagset(name string) *flag.FlagSet {
	flagset := flag.NewFlagSet(name, flag.ExitOnError)

	flagset.StringVar(&cmd.config, "config", cmd.config, "Configuration file path")
	flagset.StringVar(&cmd.workdir, "workdir", cmd.workdir, "Directory for working files (tokens, revisions, etc)")
	flagset.StringVar(&cmd.credentials, "credentials", cmd.credentials, "Path for the Google API 'credentials.json' file")
	flagset.StringVar(&cmd.tokens, "tokens", cmd.tokens, "Directory for the cached OAuth2 tokens")
	flagset.StringVar(&cmd.url, "url", cmd.url, "Spreadsheet URL")

	return flagset
}

// tokensDir returns the OAuth2 token cache directory, defaulting to
// <workdir>/.google.
func (cmd *command) tokensDir() string {
	if cmd.tokens != "" {
		return cmd.tokens
	}

	return filepath.Join(cmd.workdir, ".google")
}

// spreadsheetID extracts the document ID from a Google Sheets URL.
func spreadsheetID(url string) (string, error) {
	match := regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`).FindStringSubmatch(strings.TrimSpace(url))
	if len(match) < 2 {
		return "", fmt.Errorf("invalid spreadsheet URL - expected something like 'https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms'")
	}

	return match[1], nil
}

func helpOptions(flagset *flag.FlagSet) {
	flagset.VisitAll(func(f *flag.Flag) {
		fmt.Printf("    --%-13s %s\n", f.Name, f.Usage)
	})
}

func debugf(format string, args ...any) {
	log.Printf("%-5s %s", "DEBUG", fmt.Sprintf(format, args...))
}

func infof(format string, args ...any) {
	log.Printf("%-5s %s", "INFO", fmt.Sprintf(format, args...))
}

func warnf(format string, args ...any) {
	log.Printf("%-5s %s", "WARN", fmt.Sprintf(format, args...))
}

func errorf(format string, args ...any) {
	log.Printf("%-5s %s", "ERROR", fmt.Sprintf(format, args...))
}
