package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/chrissnell/statgis/internal/database"
	"github.com/chrissnell/statgis/internal/log"
	"github.com/chrissnell/statgis/pkg/config"
	"github.com/chrissnell/statgis/pkg/migrate"
)

func main() {
	var (
		dbDriver      = flag.String("driver", "sqlite", "Database driver (sqlite, postgres)")
		dbDSN         = flag.String("dsn", "", "Database connection string")
		command       = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion = flag.String("target", "", "Target version for down/to commands")
		helpFlag      = flag.Bool("help", false, "Show help")
	)

	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}

	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	if err := log.Init(false); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	client := database.NewClient(&config.DatabaseData{Driver: *dbDriver, DSN: *dbDSN}, log.GetSugaredLogger())
	if err := client.Open(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer client.Close()

	migrator, err := client.Migrator()
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	ctx := context.Background()

	// Execute command
	switch *command {
	case "up":
		err = migrator.Up(ctx)
	case "down", "to":
		if *targetVersion == "" {
			fmt.Fprintf(os.Stderr, "Error: -target flag is required for %s command\n", *command)
			os.Exit(1)
		}
		target, convErr := strconv.Atoi(*targetVersion)
		if convErr != nil {
			log.Fatalf("Invalid target version: %v", convErr)
		}
		if *command == "down" {
			err = migrator.Down(ctx, target)
		} else {
			err = migrator.To(ctx, target)
		}
	case "version":
		version, err := migrator.Version()
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}

	fmt.Println("Migration completed successfully")
}

func showStatus(migrator *migrate.Migrator) error {
	st, err := migrator.Status()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Printf("Current version: %d\n", st.Version)
	fmt.Printf("Latest version: %d\n", st.Latest)
	fmt.Printf("Pending migrations: %d\n", len(st.Pending))

	if len(st.Pending) > 0 {
		fmt.Println("\nPending migrations:")
		for _, migration := range st.Pending {
			fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
		}
	}

	return nil
}

func showHelp() {
	fmt.Println("Result Database Migration Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -driver string     Database driver: sqlite or postgres (default: sqlite)")
	fmt.Println("  -dsn string        Database connection string (required)")
	fmt.Println("  -command string    Migration command (default: up)")
	fmt.Println("  -target string     Target version for down/to commands")
	fmt.Println("  -help              Show this help message")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up                 Apply all pending migrations")
	fmt.Println("  down               Roll back to target version")
	fmt.Println("  to                 Migrate to specific version (up or down)")
	fmt.Println("  version            Show current migration version")
	fmt.Println("  status             Show migration status")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn results.db -command up")
	fmt.Println("  migrate -dsn results.db -command down -target 0")
	fmt.Println("  migrate -driver postgres -dsn 'postgres://statgis@localhost/statgis' -command status")
}
