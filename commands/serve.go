package commands

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Dev-debug-web-coder/Project-Portal/cache"
	"github.com/Dev-debug-web-coder/Project-Portal/config"
	"github.com/Dev-debug-web-coder/Project-Portal/projects"
	"github.com/Dev-debug-web-coder/Project-Portal/store"
)

var ServeCmd = Serve{
	command: command{
		workdir: DEFAULT_WORKDIR,
		debug:   false,
	},

	addr: "",
}

// Serve is the CLI command that exposes the cached project records over
// HTTP for the dashboard viewer.
type Serve struct {
	command
	addr string
}

// project is the viewer-facing JSON shape of a ProjectRecord.
type project struct {
	Serial          int64   `json:"serial"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	BudgetAllocated float64 `json:"budgetAllocated"`
	BudgetSpent     float64 `json:"budgetSpent"`
	Progress        float64 `json:"progress"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
}

func (cmd *Serve) Name() string {
	return "serve"
}

func (cmd *Serve) Description() string {
	return "Serves the cached project records over HTTP for the dashboard viewer"
}

func (cmd *Serve) Usage() string {
	return "--addr <address>"
}

func (cmd *Serve) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] serve [options]\n", APP)
	fmt.Println()
	fmt.Println("  Serves GET /projects from the read cache, refreshing from the backing store only when")
	fmt.Println("  the cached snapshot is older than the configured TTL. During a backing store outage the")
	fmt.Println("  last good snapshot is served with an 'X-Stale: true' header.")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf("    %s serve --addr :8080", APP)
	fmt.Println()
	fmt.Println()
}

func (cmd *Serve) FlagSet() *flag.FlagSet {
	flagset := flag.NewFlagSet("serve", flag.ExitOnError)

	flagset.StringVar(&cmd.config, "config", cmd.config, "Configuration file path")
	flagset.StringVar(&cmd.addr, "addr", cmd.addr, "Listen address e.g. ':8080'")

	return flagset
}

func (cmd *Serve) Execute(args ...any) error {
	options := args[0].(*Options)

	cmd.config = options.Config
	cmd.debug = options.Debug

	cfg, err := config.Load(cmd.config)
	if err != nil {
		return err
	}

	if strings.TrimSpace(cmd.addr) == "" {
		cmd.addr = cfg.Serve.Addr
	}

	if strings.TrimSpace(cfg.Store.Endpoint) == "" {
		return fmt.Errorf("backing store endpoint is not configured")
	}

	client := store.NewClient(cfg.Store.Endpoint, cfg.Store.APIKey, cfg.Store.Table, cfg.Store.Timeout)
	projectsCache := cache.NewCache(client, cfg.Cache.TTL)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/projects", func(w http.ResponseWriter, rq *http.Request) {
		force := rq.URL.Query().Get("refresh") == "true"

		records, err := projectsCache.GetProjects(rq.Context(), force)
		if err != nil && records == nil {
			errorf("%v", err)
			http.Error(w, "backing store unavailable", http.StatusBadGateway)
			return
		}

		if err != nil {
			// degraded - serving the last good snapshot
			warnf("%v", err)
			w.Header().Set("X-Stale", "true")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(makeProjects(records))
	})

	r.Get("/healthz", func(w http.ResponseWriter, rq *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:    cmd.addr,
		Handler: r,
	}

	shutdown := make(chan struct{})

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
		<-interrupt

		infof("Shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			warnf("%v", err)
		}

		close(shutdown)
	}()

	infof("Listening on %s", cmd.addr)

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-shutdown

	return nil
}

func makeProjects(records []projects.ProjectRecord) []project {
	list := make([]project, 0, len(records))
	for _, record := range records {
		p := project{
			Serial:          record.Serial,
			Name:            record.Name,
			Status:          string(record.Status),
			BudgetAllocated: record.BudgetAllocated,
			BudgetSpent:     record.BudgetSpent,
			Progress:        record.Progress,
		}

		if !record.UpdatedAt.IsZero() {
			p.UpdatedAt = record.UpdatedAt.Format(time.RFC3339)
		}

		list = append(list, p)
	}

	return list
}
