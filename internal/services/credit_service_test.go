package services

import (
	"context"
	"errors"

	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

func (s *lifecycleSuite) approved(hours float64) *models.Application {
	app := s.reviewed(hours)
	app, err := s.applications.ApproveCredits(s.instituteUser, app.ID)
	s.Require().NoError(err)
	return app
}

func (s *lifecycleSuite) TestPushToRegistry() {
	app := s.approved(90)
	ctx := context.Background()

	_, err := s.creditsSvc.PushToRegistry(ctx, s.company, app.ID)
	s.ErrorIs(err, ErrForbidden)
	_, err = s.creditsSvc.PushToRegistry(ctx, s.foreignInst, app.ID)
	s.ErrorIs(err, ErrForbidden)

	record, err := s.creditsSvc.PushToRegistry(ctx, s.instituteUser, app.ID)
	s.Require().NoError(err)
	s.True(record.IsPushedToExternalRegistry)
	s.Equal("REG-0001", record.RegistryReceipt)
	s.NotNil(record.PushedAt)

	_, err = s.creditsSvc.PushToRegistry(ctx, s.instituteUser, app.ID)
	s.ErrorIs(err, ErrInvalidTransition)
	s.Equal(1, s.registry.calls)

	var n models.Notification
	s.Require().NoError(s.db.Where("application_id = ? AND event = ?", app.ID, "push_to_registry").First(&n).Error)
	s.Equal(s.student.UserID, *n.RecipientID)
}

func (s *lifecycleSuite) TestPushRequiresApprovedAndRegistryID() {
	ctx := context.Background()

	pending := s.reviewed(90)
	_, err := s.creditsSvc.PushToRegistry(ctx, s.instituteUser, pending.ID)
	s.ErrorIs(err, ErrInvalidTransition)

	s.Require().NoError(s.db.Model(&models.User{}).Where("id = ?", s.student.UserID).Update("registry_id", "").Error)
	app, err := s.applications.ApproveCredits(s.instituteUser, pending.ID)
	s.Require().NoError(err)
	_, err = s.creditsSvc.PushToRegistry(ctx, s.instituteUser, app.ID)
	s.ErrorIs(err, ErrValidation)
	s.Zero(s.registry.calls)
}

func (s *lifecycleSuite) TestPushUpstreamFailureLeavesRecordUnpushed() {
	app := s.approved(60)
	s.registry.err = errors.New("connection refused")

	_, err := s.creditsSvc.PushToRegistry(context.Background(), s.instituteUser, app.ID)
	s.ErrorIs(err, ErrUpstream)

	var record models.CreditRecord
	s.Require().NoError(s.db.Where("application_id = ?", app.ID).First(&record).Error)
	s.False(record.IsPushedToExternalRegistry)
	s.Empty(record.RegistryReceipt)
}

func (s *lifecycleSuite) TestStudentSummary() {
	s.approved(90)

	second := models.Internship{CompanyID: s.company.UserID, Title: "Data Intern", Policy: "AICTE", IsOpen: true}
	s.Require().NoError(s.db.Create(&second).Error)
	app, err := s.applications.Apply(s.student, second.ID)
	s.Require().NoError(err)
	_, err = s.applications.Accept(s.company, app.ID)
	s.Require().NoError(err)
	_, err = s.applications.Complete(s.company, app.ID, 50)
	s.Require().NoError(err)

	summary, err := s.creditsSvc.Summary(s.student)
	s.Require().NoError(err)
	s.Equal(3.0, summary.ApprovedCredits)
	s.Equal(1.25, summary.PendingCredits)
	s.Equal(4.25, summary.TotalCredits)
	s.Equal(90.0, summary.ApprovedHours)
	s.EqualValues(2, summary.Records)

	_, err = s.creditsSvc.Summary(s.instituteUser)
	s.ErrorIs(err, ErrForbidden)
}

func (s *lifecycleSuite) TestListCreditsScope() {
	s.approved(90)

	cases := map[string]struct {
		p     workflow.Principal
		total int64
	}{
		"student":         {s.student, 1},
		"company":         {s.company, 1},
		"institute":       {s.instituteUser, 1},
		"admin":           {s.admin, 1},
		"other student":   {s.otherStudent, 0},
		"other company":   {s.otherCompany, 0},
		"other institute": {s.foreignInst, 0},
	}
	for name, tc := range cases {
		list, total, err := s.creditsSvc.List(tc.p, &CreditSearchParams{PaginationParams: defaultPage()})
		s.Require().NoError(err, name)
		s.Equal(tc.total, total, name)
		s.Len(list, int(tc.total), name)
	}

	approved := models.CreditStatusApproved
	_, total, err := s.creditsSvc.List(s.admin, &CreditSearchParams{PaginationParams: defaultPage(), Status: &approved})
	s.Require().NoError(err)
	s.EqualValues(1, total)
}
