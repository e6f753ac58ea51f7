package services

import (
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

func defaultPage() utils.PaginationParams {
	return utils.DefaultPagination()
}

func (s *lifecycleSuite) TestCompletionNotifiesInstitute() {
	app := s.reviewed(90)

	var n models.Notification
	s.Require().NoError(s.db.Where("application_id = ? AND event = ?", app.ID, "complete").First(&n).Error)
	s.Nil(n.RecipientID)
	s.Equal(workflow.RoleInstitute, n.RecipientRole)
	s.Equal(s.institute.ID, *n.InstituteID)
	s.Contains(n.Message, "Backend Intern")

	list, total, err := s.notifications.List(s.instituteUser, &NotificationSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(n.ID, list[0].ID)

	_, total, err = s.notifications.List(s.foreignInst, &NotificationSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *lifecycleSuite) TestStudentSeesOwnNotificationsNewestFirst() {
	app := s.apply()
	_, err := s.applications.Reject(s.company, app.ID, "position filled")
	s.Require().NoError(err)

	list, total, err := s.notifications.List(s.student, &NotificationSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Equal(string(workflow.EventReject), list[0].Event)
	s.Contains(list[0].Message, "position filled")

	list, _, err = s.notifications.List(s.company, &NotificationSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("apply", list[0].Event)

	_, total, err = s.notifications.List(s.otherStudent, &NotificationSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.Zero(total)
}

func (s *lifecycleSuite) TestMarkReadAndMarkAllRead() {
	app := s.apply()
	_, err := s.applications.Accept(s.company, app.ID)
	s.Require().NoError(err)
	_, err = s.applications.Complete(s.company, app.ID, 30)
	s.Require().NoError(err)
	_, err = s.applications.MarkException(s.instituteUser, app.ID, "hours disputed")
	s.Require().NoError(err)

	unread, err := s.notifications.UnreadCount(s.student)
	s.Require().NoError(err)
	s.EqualValues(2, unread)

	list, _, err := s.notifications.List(s.student, &NotificationSearchParams{PaginationParams: defaultPage(), UnreadOnly: true})
	s.Require().NoError(err)
	s.Require().Len(list, 2)

	_, err = s.notifications.MarkRead(s.otherStudent, list[0].ID)
	s.ErrorIs(err, ErrNotFound)

	n, err := s.notifications.MarkRead(s.student, list[0].ID)
	s.Require().NoError(err)
	s.True(n.IsRead)
	s.NotNil(n.ReadAt)
	_, err = s.notifications.MarkRead(s.student, list[0].ID)
	s.NoError(err)

	changed, err := s.notifications.MarkAllRead(s.student)
	s.Require().NoError(err)
	s.EqualValues(1, changed)

	changed, err = s.notifications.MarkAllRead(s.student)
	s.Require().NoError(err)
	s.Zero(changed)

	unread, err = s.notifications.UnreadCount(s.student)
	s.Require().NoError(err)
	s.Zero(unread)
}

func (s *lifecycleSuite) TestInstituteReadStateIsPerUser() {
	colleague := s.createUser("gce-registrar", workflow.RoleInstitute, &s.institute.ID, "")
	app := s.reviewed(90)

	var shared models.Notification
	s.Require().NoError(s.db.Where("application_id = ? AND event = ?", app.ID, "complete").First(&shared).Error)

	for _, p := range []workflow.Principal{s.instituteUser, colleague} {
		unread, err := s.notifications.UnreadCount(p)
		s.Require().NoError(err)
		s.EqualValues(1, unread)
	}

	n, err := s.notifications.MarkRead(s.instituteUser, shared.ID)
	s.Require().NoError(err)
	s.True(n.IsRead)
	s.NotNil(n.ReadAt)
	_, err = s.notifications.MarkRead(s.instituteUser, shared.ID)
	s.NoError(err)

	unread, err := s.notifications.UnreadCount(s.instituteUser)
	s.Require().NoError(err)
	s.Zero(unread)

	unread, err = s.notifications.UnreadCount(colleague)
	s.Require().NoError(err)
	s.EqualValues(1, unread)

	list, _, err := s.notifications.List(colleague, &NotificationSearchParams{PaginationParams: defaultPage()})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.False(list[0].IsRead)
	s.Nil(list[0].ReadAt)

	list, _, err = s.notifications.List(s.instituteUser, &NotificationSearchParams{PaginationParams: defaultPage(), UnreadOnly: true})
	s.Require().NoError(err)
	s.Empty(list)

	changed, err := s.notifications.MarkAllRead(colleague)
	s.Require().NoError(err)
	s.EqualValues(1, changed)
	changed, err = s.notifications.MarkAllRead(colleague)
	s.Require().NoError(err)
	s.Zero(changed)

	var stored models.Notification
	s.Require().NoError(s.db.First(&stored, "id = ?", shared.ID).Error)
	s.False(stored.IsRead)

	var receipts int64
	s.Require().NoError(s.db.Model(&models.NotificationRead{}).Where("notification_id = ?", shared.ID).Count(&receipts).Error)
	s.EqualValues(2, receipts)
}
