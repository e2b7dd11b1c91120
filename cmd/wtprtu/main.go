// Command wtprtu simulates the Tunnel Hill water treatment plant's
// RTU/PLC: it runs the stochastic process model and scan-cycle control
// logic, and exposes the result over a Modbus-TCP-shaped fieldbus
// listener and an HTTP/websocket operator dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/tunnelhill/wtprtu/internal/config"
	"github.com/tunnelhill/wtprtu/internal/console"
	"github.com/tunnelhill/wtprtu/internal/dashboard"
	"github.com/tunnelhill/wtprtu/internal/fieldbus"
	"github.com/tunnelhill/wtprtu/internal/plant"
	"github.com/tunnelhill/wtprtu/internal/wtplog"
)

func main() {
	cfgFile := flag.String("config", "", "path to config file (optional; built-in defaults otherwise)")
	speed := flag.Float64("speed", 0, "override simulation.speed (0 = use config)")
	seed := flag.Int64("seed", 0, "override simulation.seed (0 = use config)")
	noAutoEvents := flag.Bool("no-auto-events", false, "disable the automatic rain-event scheduler")
	fieldbusPort := flag.Int("fieldbus-port", 0, "override fieldbus.port (0 = use config)")
	dashboardPort := flag.Int("dashboard-port", 0, "override dashboard.port (0 = use config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	logFile := flag.String("log-file", "", "rotate JSON logs to this file in addition to stdout")
	flag.Parse()

	var cfg config.Config
	var err error
	if *cfgFile != "" {
		filename, _ := filepath.Abs(*cfgFile)
		cfg, err = config.Load(filename)
	} else {
		cfg, err = config.Load("")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config file: %v\n", err)
		os.Exit(1)
	}

	if *speed != 0 {
		cfg.Simulation.Speed = *speed
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if *noAutoEvents {
		cfg.Simulation.AutoEvents = false
	}
	if *fieldbusPort != 0 {
		cfg.Fieldbus.Port = *fieldbusPort
	}
	if *dashboardPort != 0 {
		cfg.Dashboard.Port = *dashboardPort
	}
	if *debug {
		cfg.Log.Debug = true
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := wtplog.New(wtplog.Options{Debug: cfg.Log.Debug, FilePath: cfg.Log.File})
	defer logger.Sync()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())

	p := plant.New(cfg, logger)
	p.Run(ctx, &wg)

	fb := fieldbus.New(fmt.Sprintf("%s:%d", cfg.Fieldbus.Address, cfg.Fieldbus.Port), p.Registers(), logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fb.Run(); err != nil {
			logger.Errorw("fieldbus server exited", "err", err)
		}
	}()

	dash := dashboard.New(fmt.Sprintf("%s:%d", cfg.Dashboard.Address, cfg.Dashboard.Port), p, logger)
	dash.Run(ctx, &wg)

	con := console.New(p, os.Stdin, os.Stdout)
	if con.IsInteractive(os.Stdin.Fd()) {
		fmt.Fprintln(os.Stdout, "wtprtu: interactive console ready, type 'help' for commands")
	}
	go func() {
		if err := con.Run(); err != nil {
			logger.Errorw("console reader exited", "err", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs
	logger.Info("shutting down")
	cancel()
	_ = fb.Stop(context.Background())
	wg.Wait()
}
