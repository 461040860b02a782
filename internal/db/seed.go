package db

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sengunthar/matrimony/internal/logger"
)

// SeedAdmin creates the operator account or, when the email already exists,
// resets its name and password.
func SeedAdmin(db *gorm.DB, email, password, name string) (*Admin, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("admin email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := Admin{Name: name, Email: email, PasswordHash: string(hash)}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash"}),
	}).Create(&admin).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert admin: %w", err)
	}

	// the upsert does not reliably hand back the id on every driver
	if err := db.Where("email = ?", email).First(&admin).Error; err != nil {
		return nil, fmt.Errorf("failed to reload admin: %w", err)
	}
	return &admin, nil
}

// SeedTestData resets member data and populates demo profiles.
//
//  1. Clears notifications, matches, match requests, documents and users.
//  2. Creates 20 users (10 male, 10 female), password "password". Every
//     fifth user is left pending so the admin queue is not empty.
//  3. Sends a handful of match requests from the men to the women, with
//     every third one accepted so demo matches exist.
//
// Admins are left untouched; use SeedAdmin for those.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{"notifications", "matches", "match_requests", "user_docs", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE match_requests AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('users', 'match_requests', 'matches', 'notifications')")
	}
	logger.Info("cleared existing member data")

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	stars := []string{"Ashwini", "Rohini", "Mrigashira", "Pushya", "Hasta", "Swati", "Anuradha"}
	cities := []string{"Chennai", "Coimbatore", "Salem", "Erode", "Madurai", "Tiruppur"}

	var men, women []User
	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}
		status := UserActive
		if i%5 == 0 {
			status = UserPending
		}
		age := 24 + r.Intn(10)

		u := User{
			Name:         fmt.Sprintf("Demo User %d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Phone:        fmt.Sprintf("98400%05d", i),
			Status:       status,
			LastLoginAt:  time.Now().UTC().Add(-time.Duration(r.Intn(400)) * time.Hour),
			Profile: Profile{
				Age:                  &age,
				Gender:               gender,
				Religion:             "Hindu",
				Caste:                "SENGUNTHAR",
				Star:                 stars[r.Intn(len(stars))],
				City:                 cities[r.Intn(len(cities))],
				State:                "Tamil Nadu",
				MotherTongue:         "Tamil",
				Disability:           "no",
				PartnerMaritalStatus: "unmarried",
			},
		}
		if err := db.Create(&u).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		if status != UserActive {
			continue
		}
		if gender == "male" {
			men = append(men, u)
		} else {
			women = append(women, u)
		}
	}
	logger.Info("seeded users", "count", 20)

	counter := 0
	for i, m := range men {
		for j, w := range women {
			if (i+j)%2 != 0 {
				continue
			}
			req := MatchRequest{SenderID: m.ID, ReceiverID: w.ID, Status: RequestPending}
			if counter%3 == 0 {
				now := time.Now().UTC()
				req.Status = RequestAccepted
				req.RespondedAt = &now
			}
			if err := db.Create(&req).Error; err != nil {
				return fmt.Errorf("failed to seed match request: %w", err)
			}
			if req.Status == RequestAccepted {
				a, b := OrderedPair(m.ID, w.ID)
				if err := db.Create(&Match{UserA: a, UserB: b}).Error; err != nil {
					return fmt.Errorf("failed to seed match: %w", err)
				}
			}
			counter++
		}
	}
	logger.Info("seeded match requests", "count", counter)

	return nil
}
