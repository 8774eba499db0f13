package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"tg-broadcast/internal/config"
	"tg-broadcast/internal/models"
	"tg-broadcast/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	action := flag.String("action", "migrate", "Action to perform (migrate, reset, status)")
	yes := flag.Bool("yes", false, "Skip the confirmation prompt of reset")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	switch *action {
	case "migrate":
		if err := migrateDatabase(db); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed successfully")
	case "reset":
		if err := resetDatabase(db, *yes); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Database reset completed successfully")
	case "status":
		if err := checkStatus(db); err != nil {
			log.Fatalf("Status check failed: %v", err)
		}
	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

// migrateDatabase performs database migration
func migrateDatabase(db *gorm.DB) error {
	fmt.Println("Migrating database...")
	return storage.Migrate(db)
}

// resetDatabase drops tables and recreates them
func resetDatabase(db *gorm.DB, confirmed bool) error {
	fmt.Println("Resetting database...")

	if !confirmed {
		fmt.Print("WARNING: This will delete all scheduled posts, links and audit logs! Are you sure? (y/N): ")
		var confirmation string
		fmt.Scanln(&confirmation)

		if confirmation != "y" && confirmation != "Y" {
			return fmt.Errorf("operation cancelled by user")
		}
	}

	for _, m := range storage.AllModels() {
		if err := db.Migrator().DropTable(m); err != nil {
			return fmt.Errorf("failed to drop %T table: %w", m, err)
		}
	}

	return migrateDatabase(db)
}

// checkStatus prints each table with its row count
func checkStatus(db *gorm.DB) error {
	fmt.Println("Checking database status...")

	for _, m := range storage.AllModels() {
		name := fmt.Sprintf("%T", m)
		if !db.Migrator().HasTable(m) {
			fmt.Printf("❌ %s table does not exist\n", name)
			continue
		}
		var count int64
		if err := db.Model(m).Count(&count).Error; err != nil {
			return fmt.Errorf("count %s: %w", name, err)
		}
		fmt.Printf("✅ %s table exists\n", name)
		fmt.Printf("   - Contains %d records\n", count)
	}

	var pending int64
	if db.Migrator().HasTable(&models.ScheduledTask{}) {
		db.Model(&models.ScheduledTask{}).Where("status = ?", models.TaskPending).Count(&pending)
		fmt.Printf("Pending scheduled posts: %d\n", pending)
	}

	return nil
}
