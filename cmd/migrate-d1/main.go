// Command migrate-d1 applies the embedded D1 schema to the configured
// database, either the Cloudflare REST API or a local SQLite file.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/opendots/opendots-backend/config"
	"github.com/opendots/opendots-backend/logger"
	"github.com/opendots/opendots-backend/store/d1"
)

func main() {
	local := flag.String("local", "", "Apply to a local SQLite file instead of the configured database")
	list := flag.Bool("list", false, "List embedded migrations and exit")
	flag.Parse()

	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	migrations, err := d1.Migrations()
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
	}
	if *list {
		for _, m := range migrations {
			log.Info(m.Name)
		}
		return
	}

	cf := config.CloudflareConfig{D1LocalPath: *local}
	if *local == "" {
		cf = config.CloudflareConfig{
			AccountID:        os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			APIToken:         os.Getenv("CLOUDFLARE_API_TOKEN"),
			D1DatabaseID:     os.Getenv("D1_DATABASE_ID"),
			D1LocalPath:      os.Getenv("D1_LOCAL_PATH"),
			D1TimeoutSeconds: 30,
		}
	}

	exec, closeFn, err := d1.Open(&cf)
	if err != nil {
		log.Fatalf("Failed to open D1: %v", err)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := d1.Migrate(ctx, exec, migrations)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Infow("D1 migrations complete", "applied", applied, "total", len(migrations))
}
