// internal/database/seed.go
package database

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@abc-portal.local"
)

type SeedFile struct {
	Institutes  []SeedInstitute  `yaml:"institutes"`
	Users       []SeedUser       `yaml:"users"`
	Internships []SeedInternship `yaml:"internships"`
}

type SeedInstitute struct {
	Name string `yaml:"name"`
	Code string `yaml:"code"`
}

type SeedUser struct {
	Username   string `yaml:"username"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	FullName   string `yaml:"full_name"`
	Role       string `yaml:"role"`
	Institute  string `yaml:"institute"`
	RegistryID string `yaml:"registry_id"`
}

type SeedInternship struct {
	Company       string  `yaml:"company"`
	Title         string  `yaml:"title"`
	Description   string  `yaml:"description"`
	Policy        string  `yaml:"policy"`
	ExpectedHours float64 `yaml:"expected_hours"`
	Closed        bool    `yaml:"closed"`
}

func LoadSeedFile(path string) (*SeedFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(raw)
}

func ParseSeed(raw []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB, adminPassword string) error {
	var adminCount int64
	if err := db.Model(&models.User{}).Where("role = ?", workflow.RoleAdmin).Count(&adminCount).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if adminCount > 0 {
		return nil
	}

	admin := &models.User{
		Username: defaultAdminUsername,
		Email:    defaultAdminEmail,
		FullName: "System Administrator",
		Role:     workflow.RoleAdmin,
	}
	if err := admin.SetPassword(adminPassword); err != nil {
		return fmt.Errorf("failed to set admin password: %w", err)
	}
	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logrus.WithField("username", admin.Username).Info("Default admin user created")
	return nil
}

// ApplySeed inserts the fixture in one transaction. Rows that already exist
// (matched by institute name, username, or company+title) are left untouched.
func ApplySeed(db *gorm.DB, seed *SeedFile) error {
	return WithTransaction(db, func(tx *gorm.DB) error {
		institutes := make(map[string]*models.Institute)
		for _, si := range seed.Institutes {
			inst := models.Institute{}
			err := tx.Where("name = ?", si.Name).First(&inst).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				inst = models.Institute{Name: si.Name, Code: si.Code}
				err = tx.Create(&inst).Error
			}
			if err != nil {
				return fmt.Errorf("institute %q: %w", si.Name, err)
			}
			institutes[si.Name] = &inst
		}

		users := make(map[string]*models.User)
		for _, su := range seed.Users {
			role, err := workflow.ParseRole(su.Role)
			if err != nil {
				return fmt.Errorf("user %q: %w", su.Username, err)
			}

			user := models.User{}
			err = tx.Where("username = ?", su.Username).First(&user).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				user = models.User{
					Username:   su.Username,
					Email:      strings.ToLower(su.Email),
					FullName:   su.FullName,
					Role:       role,
					RegistryID: su.RegistryID,
				}
				if su.Institute != "" {
					inst, ok := institutes[su.Institute]
					if !ok {
						return fmt.Errorf("user %q: unknown institute %q", su.Username, su.Institute)
					}
					user.InstituteID = &inst.ID
				}
				if err := user.SetPassword(su.Password); err != nil {
					return fmt.Errorf("user %q: %w", su.Username, err)
				}
				err = tx.Create(&user).Error
			}
			if err != nil {
				return fmt.Errorf("user %q: %w", su.Username, err)
			}
			users[su.Username] = &user
		}

		for _, si := range seed.Internships {
			company, ok := users[si.Company]
			if !ok || company.Role != workflow.RoleCompany {
				return fmt.Errorf("internship %q: %q is not a seeded company", si.Title, si.Company)
			}
			policy, err := credits.ParsePolicy(si.Policy)
			if err != nil {
				return fmt.Errorf("internship %q: %w", si.Title, err)
			}

			var count int64
			if err := tx.Model(&models.Internship{}).
				Where("company_id = ? AND title = ?", company.ID, si.Title).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}

			internship := models.Internship{
				CompanyID:     company.ID,
				Title:         si.Title,
				Description:   si.Description,
				Policy:        policy,
				ExpectedHours: si.ExpectedHours,
				IsOpen:        !si.Closed,
			}
			if err := tx.Create(&internship).Error; err != nil {
				return fmt.Errorf("internship %q: %w", si.Title, err)
			}
		}

		logrus.WithFields(logrus.Fields{
			"institutes":  len(seed.Institutes),
			"users":       len(seed.Users),
			"internships": len(seed.Internships),
		}).Info("Seed data applied")
		return nil
	})
}
