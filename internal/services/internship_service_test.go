package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/models"
)

func (s *lifecycleSuite) TestCreateInternship() {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 2, 0)

	internship, err := s.internships.Create(s.company, &CreateInternshipRequest{
		Title:         "Frontend Intern",
		Policy:        "aicte",
		ExpectedHours: 120,
		StartDate:     &start,
		EndDate:       &end,
	})
	s.Require().NoError(err)
	s.Equal(credits.PolicyAICTE, internship.Policy)
	s.True(internship.IsOpen)

	_, err = s.internships.Create(s.student, &CreateInternshipRequest{Title: "x", Policy: "UGC"})
	s.ErrorIs(err, ErrForbidden)
	_, err = s.internships.Create(s.company, &CreateInternshipRequest{Title: "x", Policy: "NAAC"})
	s.ErrorIs(err, ErrValidation)
	_, err = s.internships.Create(s.company, &CreateInternshipRequest{Title: "   ", Policy: "UGC"})
	s.ErrorIs(err, ErrValidation)
	_, err = s.internships.Create(s.company, &CreateInternshipRequest{Title: "x", Policy: "UGC", StartDate: &end, EndDate: &start})
	s.ErrorIs(err, ErrValidation)

	var audits int64
	s.db.Model(&models.AuditLog{}).Where("action = ? AND resource_id = ?", "create_internship", internship.ID).Count(&audits)
	s.EqualValues(1, audits)
}

func (s *lifecycleSuite) TestUpdateFrozenOnceApplied() {
	title := "Senior Backend Intern"
	updated, err := s.internships.Update(s.company, s.internship.ID, &UpdateInternshipRequest{Title: &title})
	s.Require().NoError(err)
	s.Equal(title, updated.Title)

	_, err = s.internships.Update(s.otherCompany, s.internship.ID, &UpdateInternshipRequest{Title: &title})
	s.ErrorIs(err, ErrForbidden)

	s.apply()
	policy := "AICTE"
	_, err = s.internships.Update(s.company, s.internship.ID, &UpdateInternshipRequest{Policy: &policy})
	s.ErrorIs(err, ErrConflict)

	toggled, err := s.internships.Toggle(s.company, s.internship.ID)
	s.Require().NoError(err)
	s.False(toggled.IsOpen)
}

func (s *lifecycleSuite) TestClosedInternshipsHiddenFromStudents() {
	_, err := s.internships.Toggle(s.company, s.internship.ID)
	s.Require().NoError(err)

	_, err = s.internships.Get(s.student, s.internship.ID)
	s.ErrorIs(err, ErrNotFound)
	got, err := s.internships.Get(s.company, s.internship.ID)
	s.Require().NoError(err)
	s.False(got.IsOpen)

	_, total, err := s.internships.List(s.student, &InternshipSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.Zero(total)

	_, total, err = s.internships.List(s.company, &InternshipSearchParams{PaginationParams: defaultPage(), Mine: true})
	s.Require().NoError(err)
	s.EqualValues(1, total)

	_, total, err = s.internships.List(s.otherCompany, &InternshipSearchParams{PaginationParams: defaultPage(), Mine: true})
	s.Require().NoError(err)
	s.Zero(total)

	_, err = s.internships.Get(s.student, uuid.New())
	s.ErrorIs(err, ErrNotFound)
}

func (s *lifecycleSuite) TestAuditListScope() {
	s.apply()

	logs, total, err := s.audit.List(s.student, &AuditSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal("apply", logs[0].Action)

	_, total, err = s.audit.List(s.company, &AuditSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.Zero(total)

	_, total, err = s.audit.List(s.admin, &AuditSearchParams{PaginationParams: defaultPage(), ActorID: &s.student.UserID})
	s.Require().NoError(err)
	s.EqualValues(1, total)

	s.audit.RecordAsync(AuditEntry{Actor: &s.company, Action: "login", ResourceType: "user", ResourceID: &s.company.UserID})
	s.audit.Wait()
	_, total, err = s.audit.List(s.company, &AuditSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.EqualValues(1, total)
}
