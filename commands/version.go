package commands

import (
	"flag"
	"fmt"
)

const VERSION = "v0.1.0"

// VersionCmd is an initialized Version command for the main() command list
var VersionCmd = Version{}

// Version is the CLI command that displays the CLI version information.
type Version struct {
}

func (cmd *Version) FlagSet() *flag.FlagSet {
	return flag.NewFlagSet("version", flag.ExitOnError)
}

// Execute prints the current project-portal version
func (cmd *Version) Execute(args ...any) error {
	fmt.Printf("%s\n", VERSION)

	return nil
}

func (cmd *Version) Name() string {
	return "version"
}

func (cmd *Version) Description() string {
	return "Displays the current version"
}

func (cmd *Version) Usage() string {
	return ""
}

func (cmd *Version) Help() {
	fmt.Printf("Displays the %s version in the format v<major>.<minor>.<build> e.g. v0.1.0\n", APP)
	fmt.Println()
}
