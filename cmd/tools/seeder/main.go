package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	adminID := seedAdmin(db)
	userID := seedDemoUser(db)
	seedCars(db, userID)
	seedDefaultOverride(db)
	_ = adminID

	log.Println("Seeding completed successfully!")
}

func seedAdmin(db *sql.DB) string {
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin-change-me"
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (name, email, password_hash, role)
		VALUES ('Admin', 'admin@westgate.test', $1, 'ADMIN')
		ON CONFLICT (email) DO UPDATE SET role = 'ADMIN'
		RETURNING id`, hash).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}
	log.Printf("Admin user: %s", id)
	return id
}

func seedDemoUser(db *sql.DB) string {
	hash, err := argon2id.CreateHash("demo-change-me", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash demo password: %v", err)
	}

	var id string
	err = db.QueryRow(`
		INSERT INTO users (name, email, password_hash, role)
		VALUES ('Demo Buyer', 'buyer@westgate.test', $1, 'USER')
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, hash).Scan(&id)
	if err != nil {
		log.Fatalf("Failed to seed demo user: %v", err)
	}
	log.Printf("Demo user: %s", id)
	return id
}

func seedCars(db *sql.DB, ownerID string) {
	cars := []struct {
		vin, make, model        string
		year                    int
		auction, location, port string
		bodyType, fuelType      string
		price                   float64
		insurance               bool
	}{
		{"1FTEW1EP5NKD12345", "Ford", "F-150", 2022, "Copart", "GA - Savannah", "Savannah, GA", "PICKUP", "GASOLINE", 5000, true},
		{"JTDKARFU0L3123456", "Toyota", "Prius", 2020, "IAAI", "CA - Los Angeles", "CA", "SEDAN", "HYBRID_ELECTRIC", 8200, false},
		{"WBA5A5C50FD123456", "BMW", "528i", 2015, "Copart", "NJ - Somerville", "NJ", "SEDAN", "GASOLINE", 6400, false},
	}

	for _, c := range cars {
		_, err := db.Exec(`
			INSERT INTO cars (owner_id, vin, make, model, year, auction, auction_location, port,
				body_type, fuel_type, purchase_price, insurance)
			SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
			WHERE NOT EXISTS (SELECT 1 FROM cars WHERE vin = $2)`,
			ownerID, c.vin, c.make, c.model, c.year, c.auction, c.location, c.port,
			c.bodyType, c.fuelType, c.price, c.insurance)
		if err != nil {
			log.Fatalf("Failed to seed car %s: %v", c.vin, err)
		}
	}
	log.Printf("Seeded %d cars", len(cars))
}

func seedDefaultOverride(db *sql.DB) {
	_, err := db.Exec(`
		INSERT INTO pricing_overrides (user_id, ocean_rates, ground_fee_delta, is_active)
		SELECT NULL, '[]', 0, FALSE
		WHERE NOT EXISTS (SELECT 1 FROM pricing_overrides WHERE user_id IS NULL)`)
	if err != nil {
		log.Fatalf("Failed to seed default override: %v", err)
	}
	log.Println("Seeded inactive default override")
}
