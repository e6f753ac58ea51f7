// cmd/seed/main.go
package main

import (
	"flag"

	"github.com/sirupsen/logrus"

	"github.com/abc-portal/internship-credits/internal/config"
	"github.com/abc-portal/internship-credits/internal/database"
)

func main() {
	file := flag.String("file", "seed.yaml", "YAML fixture with institutes, users and internships")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}
	if err := database.SeedInitialData(db, cfg.AdminPassword); err != nil {
		logrus.WithError(err).Fatal("Failed to create admin user")
	}

	seed, err := database.LoadSeedFile(*file)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to read seed file")
	}
	if err := database.ApplySeed(db, seed); err != nil {
		logrus.WithError(err).Fatal("Failed to apply seed")
	}

	logrus.WithFields(logrus.Fields{
		"file":        *file,
		"institutes":  len(seed.Institutes),
		"users":       len(seed.Users),
		"internships": len(seed.Internships),
	}).Info("Seed applied")
}
