package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"k8s.io/klog/v2"

	"github.com/journal/mediadeck/internal/app"
	"github.com/journal/mediadeck/internal/client"
	"github.com/journal/mediadeck/internal/config"
	"github.com/journal/mediadeck/internal/logging"
	"github.com/journal/mediadeck/internal/media"
	"github.com/journal/mediadeck/internal/playback"
	"github.com/journal/mediadeck/internal/player"
	"github.com/journal/mediadeck/internal/viewer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.DefaultPath(), "Path to the config file")
	baseURL := flag.String("url", "", "HTTP base URL of the journal API")
	wsURL := flag.String("ws-url", "", "WebSocket URL for live event updates")
	token := flag.String("token", "", "Auth token (if the API requires it)")
	eventID := flag.String("event", "", "Event to open (default: the first one)")
	dir := flag.String("dir", "", "Read events from this directory instead of the API")
	demo := flag.Bool("demo", false, "Simulate playback instead of launching mpv")
	logFile := flag.String("log-file", "", "Log file (default from config)")
	klog.InitFlags(nil)
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}
	if *wsURL != "" {
		cfg.API.WSURL = *wsURL
		if *baseURL == "" {
			cfg.API.BaseURL = deriveHTTPBase(*wsURL)
		}
	}
	if *token != "" {
		cfg.API.Token = *token
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *demo {
		cfg.Playback.Player = "simulated"
	}

	closer, err := logging.Setup(flag.CommandLine, cfg.Log.File, cfg.Log.Verbosity)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := app.Options{
		Coordinator: playback.NewCoordinator(newProvider(cfg.Playback)),
		Loader:      viewer.NewHTTPLoader(cfg.API.Token, cfg.API.Timeout),
		Config:      cfg,
	}

	if *dir != "" {
		src := media.NewDirSource(*dir)
		id, err := pickDirEvent(src, *eventID)
		if err != nil {
			return err
		}
		opts.Source, opts.EventID = src, id
		if changes, err := src.Watch(ctx, id); err != nil {
			klog.Warningf("not watching %s: %v", id, err)
		} else {
			opts.Changes = changes
		}
	} else {
		httpClient := client.NewHTTPClient(cfg.API.BaseURL, cfg.API.Token, cfg.API.Timeout)
		id, err := pickAPIEvent(ctx, httpClient, *eventID)
		if err != nil {
			return err
		}
		opts.Source, opts.EventID = httpClient, id
		if cfg.API.WSURL != "" {
			opts.WS = client.NewWSClient(cfg.API.WSURL, cfg.API.Token, id)
		}
	}

	if _, err := os.Stat(*configPath); err == nil {
		if updates, err := config.Watch(ctx, *configPath); err != nil {
			klog.Warningf("not watching config: %v", err)
		} else {
			opts.ConfigUpdates = updates
		}
	}

	klog.Infof("mediadeck starting: event=%s player=%s", opts.EventID, cfg.Playback.Player)
	p := tea.NewProgram(app.New(opts), tea.WithAltScreen(), tea.WithReportFocus(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

func newProvider(cfg config.PlaybackConfig) playback.Provider {
	if cfg.Player == "simulated" {
		return player.NewSimulated(player.SimulatedOptions{Tick: cfg.StatusInterval})
	}
	return player.NewMPV(player.MPVOptions{
		Binary:      cfg.Binary,
		ExtraArgs:   cfg.ExtraArgs,
		StopTimeout: cfg.StopTimeout,
	})
}

func pickDirEvent(src *media.DirSource, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	ids, err := src.Events()
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("no events under %s", src.Root)
	}
	return ids[0], nil
}

func pickAPIEvent(ctx context.Context, c *client.HTTPClient, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	events, err := c.ListEvents(ctx)
	if err != nil {
		return "", fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return "", errors.New("the API has no events")
	}
	return events[0].ID, nil
}

// deriveHTTPBase converts ws://host:port/ws → http://host:port
func deriveHTTPBase(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "http://127.0.0.1:8080"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
