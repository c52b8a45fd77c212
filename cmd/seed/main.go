// Command seed creates or updates a login account.
//
//	seed -email a@x.com -password secret -name "Ada Lovelace" -title President -roles admin,editor
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/devclub/orgsite/internal/config"
	"github.com/devclub/orgsite/internal/db"
	"github.com/devclub/orgsite/internal/hash"
	"github.com/devclub/orgsite/internal/logging"
	"github.com/devclub/orgsite/internal/models"
	"github.com/devclub/orgsite/internal/repo"
)

type options struct {
	email, password string
	name, title     string
	roles           string
}

func main() {
	var opts options
	flag.StringVar(&opts.email, "email", "", "login email")
	flag.StringVar(&opts.password, "password", "", "plain password (max 72 bytes)")
	flag.StringVar(&opts.name, "name", "", "member profile name; empty skips the profile")
	flag.StringVar(&opts.title, "title", "", "member profile title")
	flag.StringVar(&opts.roles, "roles", "", "comma separated role names")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatalf("seed: %v", err)
	}
}

func run(opts options) (err error) {
	if opts.email == "" || opts.password == "" {
		flag.Usage()
		return errors.New("-email and -password are required")
	}

	logger := logging.New(config.EnvDefault("LOG_LEVEL", "info"))

	driver := config.EnvDefault("DB_DRIVER", "postgres")
	dsn := (&config.Config{
		DBDriver:    driver,
		DatabaseURL: config.EnvDefault("DATABASE_URL", ""),
		DBHost:      config.EnvDefault("DB_HOST", ""),
		DBPort:      config.EnvDefault("DB_PORT", "5432"),
		DBUser:      config.EnvDefault("DB_USER", ""),
		DBPassword:  config.EnvDefault("DB_PASSWORD", ""),
		DBName:      config.EnvDefault("DB_NAME", ""),
	}).DSN()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gdb, err := db.Open(ctx, driver, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(gdb); cerr != nil && err == nil {
			err = fmt.Errorf("close db: %w", cerr)
		}
	}()

	// same cost the server uses for its dummy comparison
	pwHash, err := hash.HashPasswordCost(opts.password, config.EnvIntDefault("BCRYPT_COST", 0))
	if err != nil {
		return err
	}

	var member *models.Member
	if opts.name != "" {
		member = &models.Member{Name: opts.name, Title: opts.title}
	}

	user, err := repo.NewGormRepo(gdb).UpsertUser(ctx, opts.email, pwHash, config.CSV(opts.roles), member)
	if err != nil {
		return err
	}
	logger.Info("user_seeded", "user_id", user.ID, "email", user.Email, "roles", user.RoleNames())
	return nil
}
