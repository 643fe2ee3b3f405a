package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/kabantay/kabantay-api/config"
	userapp "github.com/kabantay/kabantay-api/internal/application"
	"github.com/kabantay/kabantay-api/internal/domain/entity"
	fsinfra "github.com/kabantay/kabantay-api/internal/infrastructure/firestore"
	"github.com/kabantay/kabantay-api/pkg/helpers"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	fsClient, err := fsinfra.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsJSON)
	if err != nil {
		log.Fatalf("failed to connect to firestore: %v", err)
	}
	defer func() { _ = fsClient.Close() }()

	svc := userapp.NewService(
		fsinfra.NewDocStore(fsClient),
		helpers.NewBcryptHasher(cfg.BcryptCost),
		helpers.NewUUID,
		nil, nil, nil, nil, "", nil, "", nil, false,
	)

	email := "demo@kabantay.ph"
	password := "password123"

	res, err := svc.Create(ctx, userapp.CreateUserInput{
		Email:         email,
		Password:      password,
		IsUserInGroup: true,
		IsUserHead:    true,
		Address: entity.Address{
			StreetName: "12 Mabini St",
			Barangay:   "Poblacion",
			Town:       "Taal",
			Province:   "Batangas",
			ZipCode:    "4208",
		},
		Profile: entity.Profile{
			FirstName:   "Demo",
			LastName:    "Santos",
			BirthDate:   "1990-01-15",
			PhoneNumber: "+639171234567",
		},
	})
	if err != nil {
		if errors.Is(err, userapp.ErrEmailExists) {
			fmt.Printf("seed user already exists: email=%s\n", email)
			return
		}
		log.Fatalf("failed to seed user: %v", err)
	}
	fmt.Printf("seeded user: id=%s email=%s password=%s address=%s profile=%s\n",
		res.UserID, email, password, res.AddressID, res.ProfileID)
}
