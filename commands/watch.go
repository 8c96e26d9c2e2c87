package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"google.golang.org/api/drive/v3"

	portal "github.com/Dev-debug-web-coder/Project-Portal/sync"
)

var WatchCmd = Watch{
	sync: Sync{
		command: command{
			workdir:     DEFAULT_WORKDIR,
			credentials: DEFAULT_CREDENTIALS,
			tokens:      "",
			url:         "",
			debug:       false,
		},
	},
}

// Watch is the CLI command that runs the reconciliation continuously: a
// trigger scheduler coalesces edit events (Drive revision polling or
// fsnotify for a local TSV source) and interval fires into serialized sync
// runs.
type Watch struct {
	sync Sync
}

func (cmd *Watch) Name() string {
	return "watch"
}

func (cmd *Watch) Description() string {
	return "Runs the worksheet/backing store reconciliation on edit and on a fixed interval"
}

func (cmd *Watch) Usage() string {
	return "--credentials <file> --url <url> --range <range>"
}

func (cmd *Watch) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] watch [options] --url <URL> --range <range>\n", APP)
	fmt.Println()
	fmt.Println("  Watches the projects worksheet (or a local TSV file) and reconciles it against the")
	fmt.Println("  backing store whenever it is edited, and at the configured sync interval regardless.")
	fmt.Println("  Triggers that arrive while a run is in progress coalesce into a single follow-up run.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf(`    %s watch --credentials "credentials.json" \
             --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \
             --range "Projects!A1:G"`, APP)
	fmt.Println()
	fmt.Println()
}

func (cmd *Watch) FlagSet() *flag.FlagSet {
	return cmd.sync.FlagSet()
}

func (cmd *Watch) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.sync.config = options.Config
	cmd.sync.debug = options.Debug

	s, err := cmd.sync.syncer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := portal.NewScheduler(ctx, s.cfg.Sync.RunTimeout, func(ctx context.Context, reason string) {
		if err := s.reconcile(ctx, reason); err != nil {
			errorf("%v", err)
		}
	})

	// ... edit detection
	if s.file != "" {
		watcher, err := cmd.watchFile(s.file, scheduler)
		if err != nil {
			return err
		}

		defer watcher.Close()
	} else {
		gdrive, err := cmd.drive(ctx)
		if err != nil {
			return err
		}

		go cmd.pollRevisions(ctx, gdrive, s, scheduler)
	}

	// ... interval trigger
	go func() {
		tick := time.NewTicker(s.cfg.Sync.Interval)
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case <-tick.C:
				scheduler.Trigger("interval")
			}
		}
	}()

	infof("Watching (interval %v, edit poll %v)", s.cfg.Sync.Interval, s.cfg.Spreadsheet.PollInterval)

	// ... initial run
	scheduler.Trigger("startup")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	infof("Shutting down")

	cancel()
	scheduler.Wait()

	return nil
}

func (cmd *Watch) drive(ctx context.Context) (*drive.Service, error) {
	client, err := authorize(cmd.sync.credentials, DRIVE, cmd.sync.tokensDir())
	if err != nil {
		return nil, fmt.Errorf("authentication/authorization error (%v)", err)
	}

	return newDrive(ctx, client)
}

// pollRevisions polls the Drive revisions list and triggers a sync when the
// latest revision changes. Errors are logged and the poll continues - a
// transient Drive failure should not stop edit detection.
func (cmd *Watch) pollRevisions(ctx context.Context, gdrive *drive.Service, s *syncer, scheduler *portal.Scheduler) {
	tick := time.NewTicker(s.cfg.Spreadsheet.PollInterval)
	defer tick.Stop()

	last := ""

	for {
		select {
		case <-ctx.Done():
			return

		case <-tick.C:
			latest, err := getRevision(gdrive, s.spreadsheet, ctx)
			if err != nil {
				warnf("Unable to poll spreadsheet revisions (%v)", err)
				continue
			}

			if last != "" && latest.id != last {
				if cmd.sync.debug {
					debugf("Spreadsheet revision %s -> %s", last, latest.id)
				}

				scheduler.Trigger("edit")
			}

			last = latest.id
		}
	}
}

// watchFile triggers a sync whenever the local TSV source is written. The
// watch is on the containing directory because editors typically replace the
// file rather than write it in place.
func (cmd *Watch) watchFile(file string, scheduler *portal.Scheduler) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(filepath.Dir(file)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if filepath.Clean(event.Name) == filepath.Clean(file) && event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					scheduler.Trigger("edit")
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				warnf("File watch error (%v)", err)
			}
		}
	}()

	return watcher, nil
}
