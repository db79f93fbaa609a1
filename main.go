package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"dnsmanager/internal/config"
	"dnsmanager/internal/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger := cfg.Log.NewLogger()
	logger.WithField("version", version).Info("starting dnsmanager")
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	if len(cfg.HostedZones) > 0 {
		logger.Infof("managing %d hosted zone(s)", len(cfg.HostedZones))
	} else {
		logger.Info("managing all hosted zones in the account")
	}

	if err := server.Start(cfg, version, logger); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}
