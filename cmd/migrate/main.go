// Command migrate applies the SQL migrations under ops/migrations.
//
//	migrate -dir ops/migrations up
//	migrate -dir ops/migrations status
package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	dir := flag.String("dir", "ops/migrations", "directory with migration files")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("usage: migrate [-dir dir] <up|down|status|version> [args]")
	}
	command := args[0]

	dsn := os.Getenv("DEALORA_PG_DSN")
	if dsn == "" {
		log.Fatal("DEALORA_PG_DSN is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	if err := goose.Run(command, db, *dir, args[1:]...); err != nil {
		log.Fatalf("goose %s: %v", command, err)
	}
}
