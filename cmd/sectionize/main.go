package main

import (
	"os"

	applog "chat-timeline/internal/infra/log"
)

func main() {
	logger := applog.NewConsoleLogger(os.Getenv("APP_ENV"))
	if err := newRootCmd(logger).Execute(); err != nil {
		os.Exit(1)
	}
}
