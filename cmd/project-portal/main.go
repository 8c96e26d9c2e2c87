package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Dev-debug-web-coder/Project-Portal/commands"
)

var cli = []commands.Command{
	&commands.VersionCmd,
	&commands.AuthoriseCmd,
	&commands.GetCmd,
	&commands.SyncCmd,
	&commands.WatchCmd,
	&commands.ServeCmd,
}

var options = commands.Options{
	Config: "",
	Debug:  false,
}

func main() {
	flag.StringVar(&options.Config, "config", options.Config, "Configuration file path")
	flag.BoolVar(&options.Debug, "debug", options.Debug, "Enable debugging information")
	flag.Parse()

	args := flag.Args()
	if len(args) > 0 && args[0] == "help" {
		help(args[1:])
		return
	}

	cmd, err := commands.Parse(cli, args)
	if err != nil {
		fmt.Printf("\nError parsing command line: %v\n\n", err)
		usage()
		os.Exit(1)
	}

	if cmd == nil {
		usage()
		os.Exit(1)
	}

	if err := cmd.Execute(&options); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

func help(args []string) {
	if len(args) > 0 {
		for _, c := range cli {
			if c.Name() == args[0] {
				c.Help()
				return
			}
		}

		fmt.Printf("\nUnknown command '%s'\n", args[0])
	}

	usage()
}

func usage() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] [--config <file>] <command> [options]\n", commands.APP)
	fmt.Println()
	fmt.Println("  Commands:")
	fmt.Println()

	for _, c := range cli {
		fmt.Printf("    %-10s %s\n", c.Name(), c.Description())
	}

	fmt.Println()
	fmt.Printf("  Use '%s help <command>' or '%s <command> --help' for command details\n", commands.APP, commands.APP)
	fmt.Println()
}
