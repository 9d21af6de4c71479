package main

import (
	logger "github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	//nolint:exhaustruct // Minimal TextFormatter initialization with required fields only
	logger.SetFormatter(&logger.TextFormatter{
		ForceColors:   true,
		FullTimestamp: true,
	})

	if err := newRootCommand().Execute(); err != nil {
		logger.Fatalf("Error executing 'repogov': %s", err)
	}
}
