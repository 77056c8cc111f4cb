package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/bibliotecavirtual/biblioteca-sheets/httpd"
	"github.com/bibliotecavirtual/biblioteca-sheets/log"
)

var RunCmd = Run{
	command: command{},
	addr:    "",
}

// Run starts the access request service.
type Run struct {
	command
	addr string
}

func (cmd *Run) Name() string {
	return "run"
}

func (cmd *Run) Description() string {
	return "Runs the access request HTTP service"
}

func (cmd *Run) Usage() string {
	return "[--addr <address>] [--url <url>] [--sheet <sheet>]"
}

func (cmd *Run) Help() {
	fmt.Println()
	fmt.Printf("  Usage: %s [--debug] run [options]\n", APP)
	fmt.Println()
	fmt.Println("  Runs the HTTP service that handles access requests (/solicitar), approvals (/autorizar),")
	fmt.Println("  token validation (/validar) and token consumption (/marcar). Settings not given on the")
	fmt.Println("  command line are taken from the environment (PORT, SPREADSHEET_ID, JWT_SECRET, etc).")
	fmt.Println()

	helpOptions(cmd.FlagSet())

	fmt.Println()
	fmt.Println("  Examples:")
	fmt.Printf("    %s run --credentials \"credentials.json\" \\\n", APP)
	fmt.Println(`                          --url "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms"`)
	fmt.Println()
}

func (cmd *Run) FlagSet() *flag.FlagSet {
	flagset := cmd.flagset("run")

	flagset.StringVar(&cmd.addr, "addr", cmd.addr, "HTTP listen address (defaults to HTTP_ADDR or :PORT)")

	return flagset
}

func (cmd *Run) Execute(args ...any) error {
	options := args[0].(*Options)

	cfg, err := cmd.configure(options)
	if err != nil {
		return err
	}

	if cmd.addr != "" {
		cfg.HTTPAddr = cmd.addr
	}

	rows, err := openStore(cfg)
	if err != nil {
		return err
	}

	l, err := newLedger(cfg, rows)
	if err != nil {
		return err
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}

	if cfg.NotifyUser && cfg.AccessURL == "" {
		log.Warnf("ACCESS_URL not set, approved users will not be sent an access link")
	}

	if !log.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := httpd.New(cfg.HTTPAddr, l, notifier, httpd.Options{
		AccessURL:   cfg.AccessURL,
		NotifyUser:  cfg.NotifyUser,
		CORSOrigins: cfg.CORSOrigins,
	})

	errs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-interrupt:
		log.Infof("received signal %v, shutting down", sig)

	case err := <-errs:
		return fmt.Errorf("HTTP server error (%w)", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed (%w)", err)
	}

	log.Infof("server stopped")

	return nil
}
