package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// Applies every migrations/*.sql file in filename order. AutoMigrate handles
// the schema itself; these files hold what gorm cannot express, like partial
// unique indexes.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Build connection string
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	// Connect to database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	// Collect migration files in filename order
	entries, err := os.ReadDir("migrations")
	if err != nil {
		log.Fatalf("Failed to read migrations directory: %v", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		log.Println("No migration files found")
		return
	}

	// Execute migrations
	for _, name := range files {
		migrationSQL, err := os.ReadFile(filepath.Join("migrations", name))
		if err != nil {
			log.Fatalf("Failed to read migration file %s: %v", name, err)
		}

		log.Printf("Applying migration: %s", name)
		if _, err := db.Exec(string(migrationSQL)); err != nil {
			log.Fatalf("Failed to execute migration %s: %v", name, err)
		}
	}

	log.Printf("✅ Applied %d migrations successfully!", len(files))
}
