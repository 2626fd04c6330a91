package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/riadtaziri/booking-backend/internal/config"
	"github.com/riadtaziri/booking-backend/internal/database"
	"github.com/riadtaziri/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

func main() {
	var seedPath, dbURLFlag, driver string
	flag.StringVar(&seedPath, "file", "seed.yaml", "YAML file with booking_settings, rooms and admin")
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
	flag.StringVar(&driver, "driver", "postgres", "database driver: postgres or pgx")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Only the database settings are needed, so the full config is not loaded
	_ = godotenv.Load()
	dbURL := dbURLFlag
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set and -database-url was not provided")
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		logger.Fatalf("Failed to read %s: %v", seedPath, err)
	}
	seed, err := parseSeed(data)
	if err != nil {
		logger.Fatalf("Failed to parse %s: %v", seedPath, err)
	}

	db, err := database.NewConnection(config.DatabaseConfig{
		URL:                dbURL,
		Driver:             driver,
		MaxConnections:     2,
		MaxIdleConnections: 1,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if seed.BookingSettings != nil {
		// Written directly so seeding works without Redis
		resolver := services.NewSettingsResolver(database.NewSettingsRepository(db), logger)
		if err := resolver.Save(ctx, *seed.BookingSettings); err != nil {
			logger.Fatalf("Failed to save booking settings: %v", err)
		}
		encoded, _ := json.Marshal(seed.BookingSettings)
		logger.WithField("settings", string(encoded)).Info("Booking settings seeded")
	}

	roomRepo := database.NewRoomRepository(db)
	for i := range seed.Rooms {
		room := &seed.Rooms[i]
		if err := roomRepo.Upsert(ctx, room); err != nil {
			logger.Fatalf("Failed to seed room: %v", err)
		}
		logger.WithFields(logrus.Fields{
			"room_id": room.ID,
			"slug":    room.Slug,
		}).Info("Room seeded")
	}

	if seed.Admin != nil {
		password, err := seed.Admin.Password()
		if err != nil {
			logger.Fatalf("Failed to seed admin: %v", err)
		}
		authService := services.NewAdminAuthService(database.NewAdminUserRepository(db), nil, bcryptCost(), logger)
		admin, err := authService.EnsureAdmin(ctx, seed.Admin.Email, seed.Admin.FullName, password)
		if err != nil {
			logger.Fatalf("Failed to seed admin: %v", err)
		}
		logger.WithField("email", admin.Email).Info("Admin user seeded")
	}

	logger.Info("Seed complete")
}

func bcryptCost() int {
	cost, err := strconv.Atoi(os.Getenv("BCRYPT_COST"))
	if err != nil {
		return 12
	}
	return cost
}
