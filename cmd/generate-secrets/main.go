package main

import (
	"fmt"
	"log"

	"github.com/riadtaziri/booking-backend/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	fmt.Println("===========================================")
	fmt.Println("Secret generator for the riad booking backend")
	fmt.Println("===========================================")
	fmt.Println()

	jwtSecret, err := utils.GenerateJWTSecret()
	if err != nil {
		log.Fatalf("Failed to generate JWT secret: %v", err)
	}
	adminPassword, err := utils.GenerateSecret(12)
	if err != nil {
		log.Fatalf("Failed to generate admin password: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	fmt.Println("Add these to your .env file or deployment secrets:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", jwtSecret)
	fmt.Printf("SEED_ADMIN_PASSWORD=%s\n", adminPassword)
	fmt.Println()
	fmt.Println("bcrypt hash of the admin password, for inserting into admin_users by hand:")
	fmt.Println(string(hash))
	fmt.Println()
	fmt.Println("Keep these values out of version control.")
	fmt.Println("===========================================")
}
