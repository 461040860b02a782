package main

import (
	"flag"
	"os"

	"github.com/sengunthar/matrimony/internal/config"
	"github.com/sengunthar/matrimony/internal/db"
	"github.com/sengunthar/matrimony/internal/logger"
)

func main() {
	demo := flag.Bool("demo", false, "reset member data and insert demo profiles")
	flag.Parse()

	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg, log)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}
	defer db.Close(database)

	admin, err := db.SeedAdmin(database, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name)
	if err != nil {
		log.Error("failed to seed admin", "err", err)
		os.Exit(1)
	}
	log.Info("admin ready", "id", admin.ID, "email", admin.Email)

	if *demo {
		if cfg.App.ENV == "production" {
			log.Error("refusing to seed demo data in production")
			os.Exit(1)
		}
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
			os.Exit(1)
		}
	}

	log.Info("Seeding completed.")
}
