package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// One-off repair tool: recomputes every user's cached balance, direct_income
// and passive_income from the ledger. Run it after manual ledger surgery.
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))

	// Connect to database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Test connection
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	fmt.Println("✅ Connected to database")

	// Step 1: Count users whose cached totals drifted from the ledger
	var drifted int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM users u
		WHERE u.balance <>
			COALESCE((SELECT SUM(CASE WHEN kind = 'WITHDRAWAL' THEN -amount ELSE amount END)
			          FROM ledger_entries WHERE user_id = u.id), 0)
	`).Scan(&drifted)
	if err != nil {
		log.Fatal("❌ Failed to count drifted balances:", err)
	}
	fmt.Printf("📊 Users with drifted balances: %d\n", drifted)

	if drifted == 0 {
		fmt.Println("✅ All cached balances match the ledger, nothing to do")
		return
	}

	// Step 2: Recompute cached totals from the ledger
	result, err := db.Exec(`
		UPDATE users SET
			direct_income = COALESCE((SELECT SUM(amount) FROM ledger_entries
			                          WHERE user_id = users.id AND kind = 'DIRECT'), 0),
			passive_income = COALESCE((SELECT SUM(amount) FROM ledger_entries
			                           WHERE user_id = users.id AND kind = 'PASSIVE'), 0)
			               - COALESCE((SELECT SUM(amount) FROM ledger_entries
			                           WHERE user_id = users.id AND kind = 'WITHDRAWAL'), 0),
			balance = COALESCE((SELECT SUM(CASE WHEN kind = 'WITHDRAWAL' THEN -amount ELSE amount END)
			                    FROM ledger_entries WHERE user_id = users.id), 0)
	`)
	if err != nil {
		log.Fatal("❌ Failed to recompute balances:", err)
	}
	rows, _ := result.RowsAffected()
	fmt.Printf("🔧 Recomputed cached totals for %d users\n", rows)

	// Verify repair
	fmt.Println("\n📊 Verification:")
	var count int

	db.QueryRow(`
		SELECT COUNT(*) FROM users u
		WHERE u.balance <>
			COALESCE((SELECT SUM(CASE WHEN kind = 'WITHDRAWAL' THEN -amount ELSE amount END)
			          FROM ledger_entries WHERE user_id = u.id), 0)
	`).Scan(&count)
	fmt.Printf("   Still drifted: %d\n", count)

	db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	fmt.Printf("   Total users: %d\n", count)

	fmt.Println("\n✅ Balance reconciliation complete!")
}
