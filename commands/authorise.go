package commands

import (
	"flag"
	"fmt"
	"strings"
)

var AuthoriseCmd = Authorise{
	command: command{
		workdir:     DEFAULT_WORKDIR,
		credentials: DEFAULT_CREDENTIALS,
		tokens:      "",
		url:         "",
		debug:       false,
	},
}

// Authorise is the CLI command that runs the OAuth2 flow once and caches the
// granted tokens for the other commands.
type Authorise struct {
	command
}

func (cmd *Authorise) Name() string {
	return "authorise"
}

func (cmd *Authorise) Description() string {
	return "Authorises project-portal to access the projects worksheet"
}

func (cmd *Authorise) Usage() string {
	return "--credentials <file> --url <url>"
}

func (cmd *Authorise) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] authorise [options] --url <URL>\n", APP)
	fmt.Println()
	fmt.Println("  Runs the Google OAuth2 authorisation flow and caches the tokens for the 'get', 'sync' and 'watch' commands")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf(`    %s authorise --credentials "credentials.json" --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"`, APP)
	fmt.Println()
	fmt.Println()
}

func (cmd *Authorise) FlagSet() *flag.FlagSet {
	return cmd.flagset("authorise")
}

func (cmd *Authorise) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.debug = options.Debug

	if strings.TrimSpace(cmd.credentials) == "" {
		return fmt.Errorf("--credentials is a required option")
	}

	if strings.TrimSpace(cmd.url) == "" {
		return fmt.Errorf("--url is a required option")
	}

	if _, err := spreadsheetID(cmd.url); err != nil {
		return err
	}

	for _, scope := range []string{SHEETS, DRIVE} {
		if _, err := authorize(cmd.credentials, scope, cmd.tokensDir()); err != nil {
			return fmt.Errorf("authorisation error (%v)", err)
		}
	}

	infof("Authorised - tokens cached in %s", cmd.tokensDir())

	return nil
}
