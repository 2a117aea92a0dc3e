package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "labctl",
		Usage:     "Pathlab administration: classify values, run migrations, pair WhatsApp, move reports",
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			classifyCommand(),
			migrateCommand(),
			whatsAppCommand(),
			reportsCommand(),
			mcpCommand(),
		},
	}
}

// cliLogger writes to stderr so command output stays pipeable.
func cliLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if level, err := logrus.ParseLevel(os.Getenv("PATHLAB_LOGGING_LEVEL")); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env: %v", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
