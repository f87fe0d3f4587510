package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/metrico/qryn-ai/shared/commonroutes"
	"github.com/metrico/qryn-ai/writer"
	"github.com/metrico/qryn-ai/writer/config"
	apihttp "github.com/metrico/qryn-ai/writer/http"
	"github.com/metrico/qryn-ai/writer/service"
	"github.com/metrico/qryn-ai/writer/utils/logger"
)

// set with -ldflags
var (
	version = "dev"
	branch  = "main"
)

const shutdownTimeout = 10 * time.Second

var appFlags CommandLineFlags

// params for Flags
type CommandLineFlags struct {
	ShowHelpMessage *bool   `json:"help"`
	ShowVersion     *bool   `json:"version"`
	ConfigPath      *string `json:"config_path"`
}

/* init flags */
func initFlags() {
	appFlags.ShowHelpMessage = flag.Bool("help", false, "show help")
	appFlags.ShowVersion = flag.Bool("version", false, "show version")
	appFlags.ConfigPath = flag.String("config", "", "the path to the config file")
	flag.Parse()
}

func main() {
	os.Exit(run())
}

// run returns the process exit code; deferred cleanup runs before main exits.
func run() int {
	initFlags()
	if *appFlags.ShowHelpMessage {
		flag.Usage()
		return 0
	}
	if *appFlags.ShowVersion {
		fmt.Printf("qryn-ai %s (%s)\n", version, branch)
		return 0
	}

	cfg, err := config.Load(*appFlags.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	config.Setting = cfg
	logger.InitLogger()
	commonroutes.Version, commonroutes.Branch = version, branch

	app := mux.NewRouter()
	app.Use(apihttp.LogStatusMiddleware)
	commonroutes.RegisterCommonRoutes(app)

	w, err := writer.Init(cfg, app, service.NewLogSink(os.Stdout))
	if err != nil {
		logger.Error("writer init failed: ", err)
		return 1
	}
	defer func() {
		if err := w.Close(); err != nil {
			logger.Error("Error closing merge store: ", err)
		}
	}()

	httpURL := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := httpStart(ctx, app, httpURL); err != nil {
		logger.Error("Error serving: ", err)
		return 1
	}
	return 0
}

func httpStart(ctx context.Context, router *mux.Router, httpURL string) error {
	logger.Info("Starting service")
	listener, err := net.Listen("tcp", httpURL)
	if err != nil {
		return err
	}
	server := &http.Server{Handler: router}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down: ", err)
		}
	}()
	logger.Info("Server is listening on ", httpURL)
	if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
