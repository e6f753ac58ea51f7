package services

import (
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

func (s *lifecycleSuite) TestRegisterAndLogin() {
	utils.SetJWTSecret(s.cfg.JWT.SecretKey)
	auth := NewAuthService(s.db, s.cfg)

	resp, err := auth.Register(&RegisterRequest{
		Username:      "meera",
		Email:         "Meera@Example.com",
		Password:      "password123",
		Role:          "student",
		InstituteName: "govt college of engineering",
		RegistryID:    "APAAR-777",
	})
	s.Require().NoError(err)
	s.Equal("Bearer", resp.TokenType)
	s.Equal(3600, resp.ExpiresIn)
	s.Equal("meera@example.com", resp.User.Email)
	s.Require().NotNil(resp.User.InstituteID)
	s.Equal(s.institute.ID, *resp.User.InstituteID)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	s.Require().NoError(err)
	p, err := claims.Principal()
	s.Require().NoError(err)
	s.Equal(workflow.RoleStudent, p.Role)
	s.True(p.BelongsTo(&s.institute.ID))

	_, err = auth.Register(&RegisterRequest{Username: "meera", Email: "x@example.com", Password: "password123", Role: "company"})
	s.ErrorIs(err, ErrConflict)

	_, err = auth.Register(&RegisterRequest{Username: "boss", Email: "boss@example.com", Password: "password123", Role: "admin"})
	s.ErrorIs(err, ErrForbidden)

	_, err = auth.Register(&RegisterRequest{Username: "loner", Email: "loner@example.com", Password: "password123", Role: "student"})
	s.ErrorIs(err, ErrValidation)

	logged, err := auth.Login(&LoginRequest{Login: "MEERA@example.com", Password: "password123"})
	s.Require().NoError(err)
	s.NotNil(logged.User.LastLoginAt)

	_, err = auth.Login(&LoginRequest{Login: "meera", Password: "wrong-password"})
	s.ErrorIs(err, ErrUnauthorized)
	_, err = auth.Login(&LoginRequest{Login: "nobody", Password: "password123"})
	s.ErrorIs(err, ErrUnauthorized)

	me, err := auth.Me(p.UserID)
	s.Require().NoError(err)
	s.Require().NotNil(me.Institute)
	s.Equal(s.institute.Name, me.Institute.Name)
}

func (s *lifecycleSuite) TestRegisterInstituteCreatesInstitute() {
	auth := NewAuthService(s.db, s.cfg)

	resp, err := auth.Register(&RegisterRequest{
		Username:      "nit_office",
		Email:         "office@nit.example",
		Password:      "password123",
		Role:          "institute",
		InstituteName: "National Institute of Technology",
	})
	s.Require().NoError(err)
	s.Equal(workflow.RoleInstitute, resp.User.Role)

	var count int64
	s.db.Model(&models.Institute{}).Where("name = ?", "National Institute of Technology").Count(&count)
	s.EqualValues(1, count)
}

func (s *lifecycleSuite) TestRegisterInstituteCannotJoinClaimedInstitute() {
	auth := NewAuthService(s.db, s.cfg)

	_, err := auth.Register(&RegisterRequest{
		Username:      "mallory",
		Email:         "mallory@example.com",
		Password:      "password123",
		Role:          "institute",
		InstituteName: "govt college of engineering",
	})
	s.ErrorIs(err, ErrConflict)

	var users int64
	s.db.Model(&models.User{}).Where("username = ?", "mallory").Count(&users)
	s.Zero(users)

	// Students may still join an institute that already has staff.
	_, err = auth.Register(&RegisterRequest{
		Username:      "meena",
		Email:         "meena@example.com",
		Password:      "password123",
		Role:          "student",
		InstituteName: "GOVT COLLEGE OF ENGINEERING",
	})
	s.NoError(err)
}

func (s *lifecycleSuite) TestUpdateProfile() {
	users := NewUserService(s.db)

	name := "  Asha Verma "
	reg := "APAAR-002"
	u, err := users.UpdateProfile(s.student, &UpdateUserProfileRequest{FullName: &name, RegistryID: &reg})
	s.Require().NoError(err)
	s.Equal("Asha Verma", u.FullName)
	s.Equal("APAAR-002", u.RegistryID)

	_, err = users.UpdateProfile(s.company, &UpdateUserProfileRequest{RegistryID: &reg})
	s.ErrorIs(err, ErrValidation)

	role := workflow.RoleStudent
	list, total, err := users.List(&AdminUserFilter{PaginationParams: defaultPage(), Role: &role})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Len(list, 2)
}

func (s *lifecycleSuite) TestDashboardStats() {
	s.approved(90)
	_, err := s.applications.Apply(s.otherStudent, s.internship.ID)
	s.Require().NoError(err)

	stats, err := NewAdminService(s.db).GetDashboardStats()
	s.Require().NoError(err)
	s.EqualValues(2, stats.UsersByRole["student"])
	s.EqualValues(2, stats.UsersByRole["company"])
	s.EqualValues(1, stats.UsersByRole["admin"])
	s.EqualValues(1, stats.ApplicationsByStatus["completed"])
	s.EqualValues(1, stats.ApplicationsByStatus["applied"])
	s.EqualValues(0, stats.ApplicationsByStatus["exception"])
	s.EqualValues(1, stats.CreditsByStatus["approved"])
	s.Equal(3.0, stats.CreditsIssued)
	s.EqualValues(2, stats.Institutes)
	s.EqualValues(1, stats.OpenInternships)
}
