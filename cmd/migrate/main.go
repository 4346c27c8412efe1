// Command migrate applies or rolls back the Postgres schema.
//
//	migrate up | down | version | to <n>
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"venuly/internal/config"
	"venuly/internal/database"
	"venuly/internal/database/migrations"
	"venuly/internal/logger"
)

func main() {
	log := logger.NewLogger("venuly-migrate")
	defer log.Close()

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.Database.Driver != "postgres" {
		log.Fatal("CONFIG", "migrations only apply to DB_DRIVER=postgres; sqlite builds its schema on open")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	bunDB, err := database.Connect(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, log)
	defer runner.Close()

	switch cmd {
	case "up":
		err = runner.RunMigrations()
	case "down":
		err = runner.MigrateDown()
	case "to":
		if len(os.Args) < 3 {
			log.Fatal("MIGRATE", "usage: migrate to <version>")
		}
		var v uint64
		v, err = strconv.ParseUint(os.Args[2], 10, 32)
		if err == nil {
			err = runner.MigrateTo(uint(v))
		}
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = runner.Version()
		if err == nil {
			log.Info("MIGRATE", fmt.Sprintf("Schema version %d (dirty: %t)", v, dirty))
		}
	default:
		log.Fatal("MIGRATE", fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("%s complete", cmd))
}
