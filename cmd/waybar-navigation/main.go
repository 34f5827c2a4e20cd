// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package main implements the waybar-navigation service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wneessen/waybar-navigation/internal/config"
	"github.com/wneessen/waybar-navigation/internal/i18n"
	"github.com/wneessen/waybar-navigation/internal/logger"
	"github.com/wneessen/waybar-navigation/internal/service"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGKILL,
		syscall.SIGABRT, os.Interrupt)
	defer cancel()

	log := logger.NewLogger(slog.LevelError)

	confPath := flag.String("config", "", "path to the config file")
	destination := flag.String("destination", "", "destination address or \"lat,lon\" (overrides the config)")
	origin := flag.String("origin", "", "origin address or \"lat,lon\" (overrides the config)")
	simulate := flag.Bool("simulate", false, "drive along the route instead of using real location sources")
	flag.Parse()

	conf, err := loadConfig(*confPath)
	if err != nil {
		log.Error("failed to load config", logger.Err(err))
		os.Exit(1)
	}

	if err = conf.Override(*destination, *origin, *simulate); err != nil {
		log.Error("invalid command line settings", logger.Err(err))
		os.Exit(1)
	}
	if conf.Navigation.Destination == "" {
		log.Error("no destination configured, use -destination or the navigation.destination setting")
		os.Exit(1)
	}

	log = logger.NewLogger(conf.LogLevel)
	t, err := i18n.New(conf.Locale)
	if err != nil {
		log.Error("failed to initialize localizer", logger.Err(err))
		os.Exit(1)
	}

	// Initialize the service
	serv, err := service.New(conf, log, t)
	if err != nil {
		log.Error("failed to initialize waybar-navigation service", logger.Err(err))
		os.Exit(1)
	}

	log.Info(t.Get("starting waybar-navigation service"), slog.String("version", version),
		slog.String("commit", commit), slog.String("date", date))
	if err = serv.Run(ctx); err != nil {
		log.Error(t.Get("failed to start waybar-navigation service"), logger.Err(err))
	}
	log.Info(t.Get("shutting down waybar-navigation service"))
}

// loadConfig reads the config file given on the command line, the config file in the default
// location or, if there is none, the defaults and environment.
func loadConfig(confPath string) (*config.Config, error) {
	if confPath != "" {
		return config.NewFromFile(filepath.Dir(confPath), filepath.Base(confPath))
	}
	if path, file := findConfigFile(); path != "" && file != "" {
		return config.NewFromFile(path, file)
	}
	return config.New()
}

func findConfigFile() (string, string) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	exts := []string{"toml", "yaml", "yml", "json"}
	for _, ext := range exts {
		path := filepath.Join(homedir, ".config", "waybar-navigation", "config."+ext)
		if _, err = os.Stat(path); err == nil {
			return filepath.Dir(path), filepath.Base(path)
		}
	}
	return "", ""
}
