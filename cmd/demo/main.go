// Command demo opens a window with the clickable duck.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"metal-duck/config"
	"metal-duck/core"
	"metal-duck/internal/ebitenaudio"
	"metal-duck/internal/opengl"
	"metal-duck/logging"
	"metal-duck/loop"
	"metal-duck/platform"
	"metal-duck/stage"
)

const (
	flagConfig   = "config"
	flagModel    = "model"
	flagLogLevel = "log-level"
	flagDebug    = "debug"
)

func main() {
	app := &cli.App{
		Name:  "metal-duck",
		Usage: "click the duck",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagModel,
				Usage: "model path or URL, overriding the config",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: "info",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:      "config",
				Usage:     "write the default configuration",
				ArgsUsage: "FILE",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: metal-duck config FILE", 2)
					}
					return config.Save(c.Args().First(), config.Default())
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*log.Logger, error) {
	level := c.String(flagLogLevel)
	if c.Bool(flagDebug) {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, ReportCaller: c.Bool(flagDebug)})
}

func run(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return err
	}
	if m := c.String(flagModel); m != "" {
		cfg.Model.URL = m
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	win, err := platform.NewWindow(platform.WindowConfig{
		Width:          cfg.Window.Width,
		Height:         cfg.Window.Height,
		Title:          cfg.Window.Title,
		VSync:          true,
		ResizeDebounce: cfg.Window.ResizeDebounce.Duration,
	})
	if err != nil {
		return err
	}
	defer win.Destroy()

	lc := stage.New(cfg, stage.Deps{
		Backend: opengl.NewRenderer(logging.Named(logger, "gl")),
		Device:  ebitenaudio.New(cfg.Audio.SampleRate),
		Logger:  logger,
	})
	if err := lc.Attach(ctx, win, win.Size()); err != nil {
		var ue *core.UnsupportedEnvironmentError
		if errors.As(err, &ue) {
			logger.Error("cannot render here", "err", err)
		}
		return err
	}

	sched := &statusScheduler{win: win, lc: lc, title: cfg.Window.Title, every: 250 * time.Millisecond}
	runErr := lc.Run(ctx, sched)
	if errors.Is(runErr, platform.ErrClosed) {
		runErr = nil
	}
	return multierr.Combine(runErr, lc.Detach())
}

// statusScheduler paces frames on the window and mirrors the click count and
// loading message into the title bar.
type statusScheduler struct {
	win   *platform.Window
	lc    *stage.Lifecycle
	title string
	every time.Duration
	last  time.Time
}

func (s *statusScheduler) Next(ctx context.Context) error {
	if now := time.Now(); now.Sub(s.last) >= s.every {
		s.last = now
		ctrl := s.lc.Controller()
		status := fmt.Sprintf("%s | clicks: %d", s.title, ctrl.ClickCount())
		if msg := ctrl.LoadingMessage(); msg != "" {
			status += " | " + msg
		}
		s.win.SetTitle(status)
	}
	return s.win.Next(ctx)
}

var _ loop.Scheduler = (*statusScheduler)(nil)
