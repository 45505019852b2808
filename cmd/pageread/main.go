package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atinylittleshell/pageread/internal/backend"
	"github.com/atinylittleshell/pageread/internal/config"
	"github.com/atinylittleshell/pageread/internal/core"
	"github.com/atinylittleshell/pageread/internal/journal"
	"github.com/atinylittleshell/pageread/internal/readtool"
	"github.com/atinylittleshell/pageread/internal/remote"
	"github.com/atinylittleshell/pageread/internal/render"
	"github.com/atinylittleshell/pageread/internal/server"
	"go.uber.org/zap"
)

var BUILD_VERSION = "dev"

var offsetFlag = flag.Int("offset", 1, "line number to start reading from (1-indexed)")
var limitFlag = flag.Int("limit", 0, "maximum number of lines to read")
var jsonFlag = flag.Bool("json", false, "print the read outcome as JSON")

var serveFlag = flag.Bool("serve", false, "serve the read tool over MCP (stdio unless -http is set)")
var httpFlag = flag.String("http", "", "address to serve MCP over streamable HTTP, e.g. 127.0.0.1:8080")

var historyFlag = flag.Bool("history", false, "print recent reads from the journal")
var historyCountFlag = flag.Int("n", 20, "number of journal entries to print")

var configFlag = flag.String("config", "", "config file (default ~/.pageread/config.yaml)")
var cwdFlag = flag.String("cwd", "", "directory relative paths resolve against")
var remoteFlag = flag.String("remote", "", "read through the named MCP server from the config")
var timeoutFlag = flag.Duration("timeout", 0, "abort the read after this long")

var helpFlag = flag.Bool("h", false, "display help information")
var versionFlag = flag.Bool("ver", false, "display build version")

const helpText = `pageread - bounded, resumable file reads for coding agents

USAGE:
  pageread [options] PATH

MODES:
  pageread PATH                 Read PATH, at most 2000 lines or 50 KiB
  pageread -offset 2001 PATH    Continue a truncated read
  pageread -serve               Serve the read tool over MCP on stdio
  pageread -serve -http ADDR    Serve the read tool over MCP on HTTP
  pageread -history             Show recent reads

OPTIONS:
`

const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitCancelled = 130
)

// invocation is everything main derived from the command line.
type invocation struct {
	args    []string
	offset  *int
	limit   *int
	json    bool
	serve   bool
	http    string
	history bool
	count   int
	remote  string
	timeout time.Duration
}

type app struct {
	cfg         *config.Config
	cwd         string
	journalPath string
	logger      *zap.Logger
	stdout      io.Writer
	stderr      io.Writer
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if *helpFlag {
		fmt.Print(helpText)
		flag.PrintDefaults()
		return
	}

	cfg := loadConfig(*configFlag)
	if *cwdFlag != "" {
		cfg.Cwd = *cwdFlag
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		panic(err)
	}

	logger.Info("-------- new pageread session --------", zap.Any("args", os.Args))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{
		cfg:         cfg,
		cwd:         cfg.Cwd,
		journalPath: core.JournalFile(),
		logger:      logger,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	code := a.run(ctx, parseInvocation())

	stop()
	_ = logger.Sync()
	os.Exit(code)
}

func parseInvocation() invocation {
	inv := invocation{
		args:    flag.Args(),
		json:    *jsonFlag,
		serve:   *serveFlag,
		http:    *httpFlag,
		history: *historyFlag,
		count:   *historyCountFlag,
		remote:  *remoteFlag,
		timeout: *timeoutFlag,
	}

	// Only flags given explicitly become part of the request.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "offset":
			inv.offset = offsetFlag
		case "limit":
			inv.limit = limitFlag
		}
	})
	return inv
}

func loadConfig(path string) *config.Config {
	if path == "" {
		path = core.ConfigFile()
	}

	result, err := config.NewLoader(nil).LoadFromFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", path, err)
		return config.DefaultConfig()
	}
	for _, loadErr := range result.Errors {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, loadErr)
	}
	return result.Config
}

func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		level = zap.InfoLevel
	}
	logLevel := zap.NewAtomicLevelAt(level)
	if BUILD_VERSION == "dev" {
		logLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	// stdout carries read output and MCP frames, so logs only go to file.
	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = logLevel
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}

	return loggerConfig.Build()
}

func (a *app) run(ctx context.Context, inv invocation) int {
	if inv.history {
		return a.runHistory(inv.count)
	}

	if !inv.serve && len(inv.args) != 1 {
		fmt.Fprintln(a.stderr, "usage: pageread [options] PATH (see pageread -h)")
		return exitUsage
	}

	cwd := a.cwd
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(a.stderr, "failed to get working directory: %v\n", err)
			return exitFailed
		}
		cwd = wd
	}

	b, closeBackend, err := a.openBackend(inv.remote)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return exitFailed
	}
	defer closeBackend()

	opts := readtool.Options{
		Backend:  b,
		Logger:   a.logger,
		MaxLines: a.cfg.MaxLines,
		MaxBytes: a.cfg.MaxBytes,
	}
	if a.cfg.Journal {
		j, err := journal.Open(a.journalPath, a.logger)
		if err != nil {
			// The journal is observational; reads work without it.
			a.logger.Warn("journal unavailable", zap.Error(err))
		} else {
			defer j.Close()
			opts.Recorder = j
		}
	}
	reader := readtool.New(cwd, opts)

	if inv.serve {
		return a.runServer(ctx, reader, inv.http)
	}
	return a.runRead(ctx, reader, inv)
}

func (a *app) openBackend(name string) (backend.Backend, func(), error) {
	if name == "" {
		local := backend.NewLocal()
		local.MaxFileSize = a.cfg.MaxFileSize()
		return local, func() {}, nil
	}

	serverConfig := a.cfg.GetRemote(name)
	if serverConfig == nil {
		return nil, nil, fmt.Errorf("remote %q is not configured", name)
	}

	manager := remote.NewManager(a.logger, BUILD_VERSION)
	if err := manager.RegisterServer(name, *serverConfig); err != nil {
		_ = manager.Close()
		return nil, nil, err
	}
	b, err := remote.NewBackend(manager, name)
	if err != nil {
		_ = manager.Close()
		return nil, nil, err
	}
	return b, func() { _ = manager.Close() }, nil
}

func (a *app) runRead(ctx context.Context, reader *readtool.Reader, inv invocation) int {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	outcome, err := reader.Read(ctx, readtool.Request{
		Path:   inv.args[0],
		Offset: inv.offset,
		Limit:  inv.limit,
	})

	if inv.json {
		return a.printJSON(outcome, err)
	}

	printer := render.NewPrinter(a.stdout)
	if err != nil {
		_ = render.NewPrinter(a.stderr).Error(err)
		return exitCode(err)
	}
	if err := printer.Outcome(outcome); err != nil {
		a.logger.Error("failed to write output", zap.Error(err))
		return exitFailed
	}
	return exitOK
}

type jsonError struct {
	Kind        readtool.Kind `json:"kind"`
	Message     string        `json:"message"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

func (a *app) printJSON(outcome *readtool.Outcome, err error) int {
	var payload any = outcome
	if err != nil {
		jerr := jsonError{Kind: readtool.KindOf(err), Message: err.Error()}
		var readErr *readtool.Error
		if errors.As(err, &readErr) {
			jerr.Suggestions = readErr.Suggestions
		}
		payload = map[string]jsonError{"error": jerr}
	}

	encoder := json.NewEncoder(a.stdout)
	encoder.SetIndent("", "  ")
	if encErr := encoder.Encode(payload); encErr != nil {
		a.logger.Error("failed to write output", zap.Error(encErr))
		return exitFailed
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, readtool.ErrCancelled):
		return exitCancelled
	case errors.Is(err, readtool.ErrInvalidRequest), errors.Is(err, readtool.ErrInvalidPath):
		return exitUsage
	default:
		return exitFailed
	}
}

func (a *app) runServer(ctx context.Context, reader *readtool.Reader, addr string) int {
	srv := server.New(reader, server.Options{
		Version: BUILD_VERSION,
		Logger:  a.logger,
	})

	var err error
	if addr != "" {
		var listener net.Listener
		listener, err = net.Listen("tcp", addr)
		if err == nil {
			fmt.Fprintf(a.stderr, "serving MCP on http://%s\n", listener.Addr())
			err = srv.ServeHTTP(ctx, listener)
		}
	} else {
		err = srv.RunStdio(ctx)
	}

	if err != nil && ctx.Err() == nil {
		a.logger.Error("server stopped", zap.Error(err))
		fmt.Fprintln(a.stderr, err)
		return exitFailed
	}
	return exitOK
}

func (a *app) runHistory(count int) int {
	j, err := journal.Open(a.journalPath, a.logger)
	if err != nil {
		fmt.Fprintf(a.stderr, "failed to open journal: %v\n", err)
		return exitFailed
	}
	defer j.Close()

	entries, err := j.Recent(count)
	if err != nil {
		fmt.Fprintf(a.stderr, "failed to read journal: %v\n", err)
		return exitFailed
	}
	if err := render.NewPrinter(a.stdout).History(entries); err != nil {
		return exitFailed
	}
	return exitOK
}
