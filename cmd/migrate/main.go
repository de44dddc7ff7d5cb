// Command migrate applies or rolls back the database schema.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"smart-helmet-backend/internal/config"
	"smart-helmet-backend/internal/infrastructure/database/migrate"
)

func main() {
	direction := pflag.StringP("direction", "d", migrate.DirectionUp, "migration direction: up or down")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" {
		fmt.Fprintln(os.Stderr, "database configuration is missing: set DB_HOST and DB_NAME")
		os.Exit(1)
	}

	if err := migrate.Run(cfg.Database.URL(), *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("migrations applied (%s)\n", *direction)
}
