package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/config"
	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/database"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

// lifecycleSuite wires every service over a fresh in-memory database with
// one institute, two companies, two students and an open UGC internship.
type lifecycleSuite struct {
	suite.Suite
	db  *gorm.DB
	cfg *config.Config

	audit         *AuditService
	notifications *NotificationService
	storage       *StorageService
	applications  *ApplicationService
	creditsSvc    *CreditService
	reports       *ReportService
	internships   *InternshipService
	registry      *fakeRegistry

	institute      models.Institute
	otherInstitute models.Institute
	company        workflow.Principal
	otherCompany   workflow.Principal
	student        workflow.Principal
	otherStudent   workflow.Principal
	instituteUser  workflow.Principal
	foreignInst    workflow.Principal
	admin          workflow.Principal
	internship     models.Internship
}

type fakeRegistry struct {
	calls   int
	receipt string
	err     error
}

func (f *fakeRegistry) Push(_ context.Context, _ RegistrySubmission) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.receipt, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(db))
	t.Cleanup(func() { database.Close(db) })
	return db
}

func (s *lifecycleSuite) SetupTest() {
	t := s.T()
	s.db = newTestDB(t)
	s.cfg = &config.Config{
		JWT:     config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 1},
		Storage: config.StorageConfig{LocalDir: t.TempDir(), MaxUploadBytes: 1 << 20},
	}

	var err error
	s.audit = NewAuditService(s.db)
	s.notifications = NewNotificationService(s.db, "en")
	s.storage, err = NewStorageService(s.cfg)
	require.NoError(t, err)
	s.registry = &fakeRegistry{receipt: "REG-0001"}
	s.applications = NewApplicationService(s.db, s.notifications, s.audit, s.storage)
	s.creditsSvc = NewCreditService(s.db, s.registry, s.notifications, s.audit)
	s.reports = NewReportService(s.db)
	s.internships = NewInternshipService(s.db, s.audit)

	s.institute = models.Institute{Name: "Govt College of Engineering", Code: "GCE"}
	s.otherInstitute = models.Institute{Name: "City Polytechnic", Code: "CPT"}
	require.NoError(t, s.db.Create(&s.institute).Error)
	require.NoError(t, s.db.Create(&s.otherInstitute).Error)

	s.company = s.createUser("acme", workflow.RoleCompany, nil, "")
	s.otherCompany = s.createUser("globex", workflow.RoleCompany, nil, "")
	s.student = s.createUser("asha", workflow.RoleStudent, &s.institute.ID, "APAAR-001")
	s.otherStudent = s.createUser("ravi", workflow.RoleStudent, &s.otherInstitute.ID, "")
	s.instituteUser = s.createUser("gce-office", workflow.RoleInstitute, &s.institute.ID, "")
	s.foreignInst = s.createUser("cpt-office", workflow.RoleInstitute, &s.otherInstitute.ID, "")
	s.admin = s.createUser("root", workflow.RoleAdmin, nil, "")

	s.internship = models.Internship{
		CompanyID:     s.company.UserID,
		Title:         "Backend Intern",
		Policy:        credits.PolicyUGC,
		ExpectedHours: 90,
		IsOpen:        true,
	}
	require.NoError(t, s.db.Create(&s.internship).Error)
}

func (s *lifecycleSuite) createUser(username string, role workflow.Role, instituteID *uuid.UUID, registryID string) workflow.Principal {
	u := models.User{
		Username:    username,
		Email:       username + "@example.com",
		Role:        role,
		InstituteID: instituteID,
		RegistryID:  registryID,
	}
	s.Require().NoError(u.SetPassword("secret123"))
	s.Require().NoError(s.db.Create(&u).Error)
	return u.Principal()
}

// apply creates an application by s.student against s.internship.
func (s *lifecycleSuite) apply() *models.Application {
	app, err := s.applications.Apply(s.student, s.internship.ID)
	s.Require().NoError(err)
	return app
}

// reviewed drives a fresh application to institute_review with hours worked.
func (s *lifecycleSuite) reviewed(hours float64) *models.Application {
	app := s.apply()
	_, err := s.applications.Accept(s.company, app.ID)
	s.Require().NoError(err)
	app, err = s.applications.Complete(s.company, app.ID, hours)
	s.Require().NoError(err)
	return app
}

func (s *lifecycleSuite) notificationsFor(appID uuid.UUID) []models.Notification {
	var out []models.Notification
	s.Require().NoError(s.db.Where("application_id = ?", appID).Order("created_at").Find(&out).Error)
	return out
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(lifecycleSuite))
}
