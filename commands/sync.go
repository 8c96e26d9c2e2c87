package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/api/sheets/v4"

	"github.com/Dev-debug-web-coder/Project-Portal/config"
	"github.com/Dev-debug-web-coder/Project-Portal/projects"
	"github.com/Dev-debug-web-coder/Project-Portal/store"
	portal "github.com/Dev-debug-web-coder/Project-Portal/sync"
)

var SyncCmd = Sync{
	command: command{
		workdir:     DEFAULT_WORKDIR,
		credentials: DEFAULT_CREDENTIALS,
		tokens:      "",
		url:         "",
		debug:       false,
	},

	area:     "",
	file:     "",
	logRange: "",
	nolog:    false,
	dryrun:   false,
}

// Sync is the CLI command that runs one reconciliation of the worksheet
// against the backing store.
type Sync struct {
	command
	area     string
	file     string
	logRange string
	nolog    bool
	dryrun   bool
}

func (cmd *Sync) Name() string {
	return "sync"
}

func (cmd *Sync) Description() string {
	return "Reconciles the projects worksheet against the backing store"
}

func (cmd *Sync) Usage() string {
	return "--credentials <file> --url <url> --range <range>"
}

func (cmd *Sync) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] sync [options] --url <URL> --range <range>\n", APP)
	fmt.Println()
	fmt.Println("  Retrieves the projects worksheet (or a local TSV file), reconciles it against the")
	fmt.Println("  backing store table and prints a report of the applied changes")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf(`    %s sync --credentials "credentials.json" \
            --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms" \
            --range "Projects!A1:G"`, APP)
	fmt.Println()
	fmt.Printf("    %s sync --file projects.tsv --dryrun", APP)
	fmt.Println()
	fmt.Println()
}

func (cmd *Sync) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("sync")

	flagset.StringVar(&cmd.area, "range", cmd.area, "Worksheet range e.g. 'Projects!A1:G'")
	flagset.StringVar(&cmd.file, "file", cmd.file, "Reconcile from a local TSV file instead of the worksheet")
	flagset.StringVar(&cmd.logRange, "log-range", cmd.logRange, "Worksheet range for the sync log e.g. 'Log!A1:H'")
	flagset.BoolVar(&cmd.nolog, "no-log", cmd.nolog, "Disables writing a summary row to the log worksheet")
	flagset.BoolVar(&cmd.dryrun, "dryrun", cmd.dryrun, "Computes the reconciliation without writing to the backing store")

	return flagset
}

func (cmd *Sync) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.config = options.Config
	cmd.debug = options.Debug

	s, err := cmd.syncer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Sync.RunTimeout)
	defer cancel()

	return s.reconcile(ctx, "manual")
}

// syncer assembles the moving parts shared by the 'sync' and 'watch'
// commands: the worksheet (or TSV) source, the backing store client and the
// reconciliation engine.
func (cmd *Sync) syncer() (*syncer, error) {
	cfg, err := config.Load(cmd.config)
	if err != nil {
		return nil, err
	}

	// ... flags override configuration
	if strings.TrimSpace(cmd.url) == "" {
		cmd.url = cfg.Spreadsheet.URL
	}

	if strings.TrimSpace(cmd.area) == "" {
		cmd.area = cfg.Spreadsheet.Range
	}

	if strings.TrimSpace(cmd.logRange) == "" {
		cmd.logRange = cfg.Spreadsheet.LogRange
	}

	if strings.TrimSpace(cmd.credentials) == "" || cmd.credentials == DEFAULT_CREDENTIALS {
		if cfg.Spreadsheet.Credentials != "" {
			cmd.credentials = cfg.Spreadsheet.Credentials
		}
	}

	if strings.TrimSpace(cfg.Store.Endpoint) == "" {
		return nil, fmt.Errorf("backing store endpoint is not configured")
	}

	if strings.TrimSpace(cfg.Store.Table) == "" {
		return nil, fmt.Errorf("backing store table is not configured")
	}

	policy, err := portal.ParseRemovalPolicy(cfg.Sync.RemovalPolicy)
	if err != nil {
		return nil, err
	}

	client := store.NewClient(cfg.Store.Endpoint, cfg.Store.APIKey, cfg.Store.Table, cfg.Store.Timeout)

	engine, err := portal.NewEngine(portal.EngineConfig{
		Store:          client,
		Policy:         policy,
		BatchSize:      cfg.Sync.BatchSize,
		FanOut:         cfg.Sync.FanOut,
		PageSize:       cfg.Sync.PageSize,
		MaxAttempts:    cfg.Sync.MaxAttempts,
		InitialBackoff: cfg.Sync.InitialBackoff,
		MaxBackoff:     cfg.Sync.MaxBackoff,
		DryRun:         cmd.dryrun,
	})
	if err != nil {
		return nil, err
	}

	s := syncer{
		cfg:      cfg,
		engine:   engine,
		file:     cmd.file,
		area:     cmd.area,
		logRange: cmd.logRange,
		nolog:    cmd.nolog || cmd.dryrun,
		debug:    cmd.debug,
	}

	// ... worksheet source unless reconciling from a local TSV file
	if cmd.file == "" {
		if strings.TrimSpace(cmd.url) == "" {
			return nil, fmt.Errorf("--url is a required option")
		}

		if strings.TrimSpace(cmd.area) == "" {
			return nil, fmt.Errorf("--range is a required option")
		}

		spreadsheet, err := spreadsheetID(cmd.url)
		if err != nil {
			return nil, err
		}

		client, err := authorize(cmd.credentials, SHEETS, cmd.tokensDir())
		if err != nil {
			return nil, fmt.Errorf("authentication/authorization error (%v)", err)
		}

		google, err := newSheets(context.Background(), client)
		if err != nil {
			return nil, err
		}

		// ... check the named worksheets exist before reconciling
		document, err := getSpreadsheet(google, spreadsheet)
		if err != nil {
			return nil, err
		}

		if _, err := getSheet(document, cmd.area); err != nil {
			return nil, err
		}

		if !s.nolog && strings.TrimSpace(cmd.logRange) != "" {
			if _, err := getSheet(document, cmd.logRange); err != nil {
				return nil, err
			}
		}

		s.google = google
		s.spreadsheet = spreadsheet
	}

	return &s, nil
}

type syncer struct {
	cfg         *config.Config
	engine      *portal.Engine
	google      *sheets.Service
	spreadsheet string
	area        string
	file        string
	logRange    string
	nolog       bool
	debug       bool
}

// rows reads the current source snapshot - worksheet range or local TSV
// file - as column-keyed row maps.
func (s *syncer) rows(ctx context.Context) ([]map[string]string, error) {
	if s.file != "" {
		f, err := os.Open(s.file)
		if err != nil {
			return nil, err
		}

		defer f.Close()

		return tsvToRows(f)
	}

	response, err := s.google.Spreadsheets.Values.Get(s.spreadsheet, s.area).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve data from sheet (%v)", err)
	}

	if len(response.Values) == 0 {
		return nil, fmt.Errorf("no data in spreadsheet/range")
	}

	return projects.MakeRows(response.Values)
}

// reconcile runs one sync pass and logs the report. The report is also
// appended to the log worksheet unless that is disabled.
func (s *syncer) reconcile(ctx context.Context, reason string) error {
	rows, err := s.rows(ctx)
	if err != nil {
		return err
	}

	infof("Reconciling %v source rows (%s)", len(rows), reason)

	report, err := s.engine.Reconcile(ctx, rows)
	logReport(report)

	if err != nil {
		return err
	}

	if !s.nolog && s.google != nil && strings.TrimSpace(s.logRange) != "" {
		if err := s.appendLog(ctx, report); err != nil {
			warnf("Unable to update log worksheet (%v)", err)
		}
	}

	return nil
}

// appendLog appends a summary row to the log worksheet.
func (s *syncer) appendLog(ctx context.Context, report *portal.Report) error {
	rows := sheets.ValueRange{
		Values: [][]interface{}{
			{
				report.Started.Format("2006-01-02 15:04:05"),
				report.RunID,
				report.Inserted,
				report.Updated,
				report.Skipped,
				report.Removed,
				report.Failed,
				len(report.Invalid) + len(report.Conflicts),
			},
		},
	}

	if _, err := s.google.Spreadsheets.Values.Append(s.spreadsheet, s.logRange, &rows).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("error writing log to Google Sheets (%w)", err)
	}

	return nil
}

func logReport(report *portal.Report) {
	format := "%v  run:%v  inserted:%v  updated:%v  skipped:%v  removed:%v  failed:%v  retries:%v  (%v)"
	verb := "Reconciled"
	if report.DryRun {
		verb = "Planned"
	}

	infof(format, verb, report.RunID, report.Inserted, report.Updated, report.Skipped, report.Removed, report.Failed, report.Retries, report.Duration.Round(time.Millisecond))

	for _, conflict := range report.Conflicts {
		warnf("Duplicate serial %v - row %v supersedes row %v", conflict.Serial, conflict.KeptRow, conflict.DroppedRow)
	}

	for _, invalid := range report.Invalid {
		warnf("Skipped %v", invalid.Reason)
	}

	for _, failure := range report.Errors {
		errorf("serial %v  %v", failure.Serial, failure.Reason)
	}
}
