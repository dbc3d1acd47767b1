//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/meridianlaw/caseflow/internal/auth"
	"github.com/meridianlaw/caseflow/internal/database"
	"github.com/meridianlaw/caseflow/internal/database/models"
	"github.com/meridianlaw/caseflow/internal/mailer"
	"github.com/meridianlaw/caseflow/internal/tasks"
	"github.com/meridianlaw/caseflow/pkg/config"
	"github.com/meridianlaw/caseflow/pkg/util"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Create admin user
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	resetSender := tasks.NewMailSender(mailer.NewLogMailer(logger), logger)
	authService := auth.NewService(db, jwtService, resetSender, cfg.Server.BaseURL)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	firstName := os.Getenv("ADMIN_FIRST_NAME")
	lastName := os.Getenv("ADMIN_LAST_NAME")

	if email == "" {
		email = "admin@meridianlaw.example"
	}
	if password == "" {
		password = "ChangeMe123"
	}
	if firstName == "" {
		firstName = "Admin"
	}
	if lastName == "" {
		lastName = "User"
	}

	resp, err := authService.RegisterStaff(context.Background(), auth.RegisterInput{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  password,
		Role:      models.RoleAdmin,
	})

	if err != nil {
		if err == auth.ErrUserExists {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Role: %s\n", resp.User.Role)
	fmt.Printf("Token: %s\n", resp.Token)
}
