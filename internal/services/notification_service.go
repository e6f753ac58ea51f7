// internal/services/notification_service.go
package services

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/abc-portal/internship-credits/internal/i18n"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type NotificationService struct {
	db   *gorm.DB
	lang string
}

// TransitionEvent describes a committed-in-progress status change. Application
// must have its Internship loaded.
type TransitionEvent struct {
	Application *models.Application
	Event       workflow.Event
	From        workflow.Status
	To          workflow.Status
	Actor       workflow.Principal
}

type NotificationSearchParams struct {
	utils.PaginationParams
	UnreadOnly bool
}

func NewNotificationService(db *gorm.DB, lang string) *NotificationService {
	if lang == "" {
		lang = i18n.DefaultLanguage()
	}
	return &NotificationService{db: db, lang: lang}
}

// OnTransition appends exactly one notification for ev inside tx. Delivery is
// best-effort: failures are logged and never returned.
func (s *NotificationService) OnTransition(tx *gorm.DB, ev TransitionEvent) {
	n, ok := s.buildForTransition(ev)
	if !ok {
		return
	}
	s.append(tx, n)
}

// OnApply tells the owning company about a new application.
func (s *NotificationService) OnApply(tx *gorm.DB, app *models.Application) {
	companyID := app.Internship.CompanyID
	appID := app.ID
	s.append(tx, &models.Notification{
		RecipientID:   &companyID,
		RecipientRole: workflow.RoleCompany,
		ApplicationID: &appID,
		Event:         "apply",
		Message:       i18n.T(s.lang, i18n.KeyNotifyApplied, app.Internship.Title),
	})
}

// OnRegistryPush tells the student their approved credits were submitted.
func (s *NotificationService) OnRegistryPush(tx *gorm.DB, record *models.CreditRecord, title string) {
	studentID := record.StudentID
	appID := record.ApplicationID
	s.append(tx, &models.Notification{
		RecipientID:   &studentID,
		RecipientRole: workflow.RoleStudent,
		ApplicationID: &appID,
		Event:         "push_to_registry",
		Message:       i18n.T(s.lang, i18n.KeyNotifyPushed, title),
	})
}

func (s *NotificationService) buildForTransition(ev TransitionEvent) (*models.Notification, bool) {
	app := ev.Application
	title := ""
	if app.Internship != nil {
		title = app.Internship.Title
	}
	reason := ""
	if app.Reason != nil {
		reason = *app.Reason
	}

	appID := app.ID
	studentID := app.StudentID
	n := &models.Notification{
		RecipientID:   &studentID,
		RecipientRole: workflow.RoleStudent,
		ApplicationID: &appID,
		Event:         string(ev.Event),
	}

	switch ev.Event {
	case workflow.EventAccept:
		n.Message = i18n.T(s.lang, i18n.KeyNotifyAccepted, title)
	case workflow.EventReject:
		n.Message = i18n.T(s.lang, i18n.KeyNotifyRejected, title, reason)
	case workflow.EventComplete:
		// Addressed to every institute user of the student's institute.
		n.RecipientID = nil
		n.RecipientRole = workflow.RoleInstitute
		n.InstituteID = app.InstituteID
		n.Message = i18n.T(s.lang, i18n.KeyNotifyCompleted, title, formatNumber(app.HoursWorked), formatNumber(app.CreditsAwarded))
	case workflow.EventApprove:
		n.Message = i18n.T(s.lang, i18n.KeyNotifyApproved, title, formatNumber(app.CreditsAwarded))
	case workflow.EventRejectCredits:
		n.Message = i18n.T(s.lang, i18n.KeyNotifyCreditsDenied, title, reason)
	case workflow.EventMarkException:
		n.Message = i18n.T(s.lang, i18n.KeyNotifyException, title, reason)
	default:
		logrus.WithField("event", ev.Event).Warn("No notification template for event")
		return nil, false
	}
	return n, true
}

func (s *NotificationService) append(tx *gorm.DB, n *models.Notification) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return sp.Create(n).Error
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event":          n.Event,
			"application_id": n.ApplicationID,
			"recipient_role": n.RecipientRole,
		}).Error("Failed to append notification")
	}
}

func formatNumber(v *float64) string {
	if v == nil {
		return "0"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// scope restricts query to notifications visible to p.
func (s *NotificationService) scope(query *gorm.DB, p workflow.Principal) *gorm.DB {
	if p.Role == workflow.RoleInstitute && p.InstituteID != nil {
		return query.Where(
			"(recipient_id = ? OR (recipient_id IS NULL AND recipient_role = ? AND institute_id = ?))",
			p.UserID, workflow.RoleInstitute, *p.InstituteID,
		)
	}
	return query.Where("recipient_id = ?", p.UserID)
}

// unread keeps rows p has not read: direct rows by their own flag, shared rows
// by the absence of p's receipt.
func (s *NotificationService) unread(query *gorm.DB, p workflow.Principal) *gorm.DB {
	return query.Where(
		"((recipient_id IS NOT NULL AND is_read = ?) OR (recipient_id IS NULL AND NOT EXISTS "+
			"(SELECT 1 FROM notification_reads r WHERE r.notification_id = notifications.id AND r.user_id = ?)))",
		false, p.UserID,
	)
}

// withReceipts overlays p's read receipts onto shared notifications.
func (s *NotificationService) withReceipts(p workflow.Principal, notifications []models.Notification) error {
	var shared []uuid.UUID
	for _, n := range notifications {
		if n.RecipientID == nil {
			shared = append(shared, n.ID)
		}
	}
	if len(shared) == 0 {
		return nil
	}

	var receipts []models.NotificationRead
	if err := s.db.Where("user_id = ? AND notification_id IN ?", p.UserID, shared).
		Find(&receipts).Error; err != nil {
		return err
	}
	readAt := make(map[uuid.UUID]time.Time, len(receipts))
	for _, r := range receipts {
		readAt[r.NotificationID] = r.ReadAt
	}
	for i := range notifications {
		n := &notifications[i]
		if n.RecipientID != nil {
			continue
		}
		n.IsRead, n.ReadAt = false, nil
		if at, ok := readAt[n.ID]; ok {
			at := at
			n.IsRead, n.ReadAt = true, &at
		}
	}
	return nil
}

func (s *NotificationService) List(p workflow.Principal, params *NotificationSearchParams) ([]models.Notification, int64, error) {
	query := s.scope(s.db.Model(&models.Notification{}), p)
	if params.UnreadOnly {
		query = s.unread(query, p)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("failed to count notifications", err)
	}

	var notifications []models.Notification
	if err := utils.ApplyPagination(query.Order("created_at DESC"), params.PaginationParams).
		Find(&notifications).Error; err != nil {
		return nil, 0, internalError("failed to list notifications", err)
	}
	if err := s.withReceipts(p, notifications); err != nil {
		return nil, 0, internalError("failed to load read receipts", err)
	}

	return notifications, total, nil
}

func (s *NotificationService) UnreadCount(p workflow.Principal) (int64, error) {
	var count int64
	if err := s.unread(s.scope(s.db.Model(&models.Notification{}), p), p).
		Count(&count).Error; err != nil {
		return 0, internalError("failed to count notifications", err)
	}
	return count, nil
}

// MarkRead flips a single notification for p. Marking an already read one is
// a no-op. Shared institute notifications get a receipt for p alone.
func (s *NotificationService) MarkRead(p workflow.Principal, id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := s.scope(s.db.Model(&models.Notification{}), p).
		Where("id = ?", id).
		First(&n).Error; err != nil {
		return nil, translate(err, "notification")
	}

	if n.RecipientID == nil {
		receipt := models.NotificationRead{NotificationID: n.ID, UserID: p.UserID, ReadAt: time.Now()}
		if err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt).Error; err != nil {
			return nil, internalError("failed to update notification", err)
		}
		notifications := []models.Notification{n}
		if err := s.withReceipts(p, notifications); err != nil {
			return nil, internalError("failed to load read receipts", err)
		}
		return &notifications[0], nil
	}

	if !n.IsRead {
		now := time.Now()
		if err := s.db.Model(&models.Notification{}).
			Where("id = ? AND is_read = ?", n.ID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
			return nil, internalError("failed to update notification", err)
		}
		n.IsRead = true
		n.ReadAt = &now
	}
	return &n, nil
}

// MarkAllRead returns how many notifications changed state for p.
func (s *NotificationService) MarkAllRead(p workflow.Principal) (int64, error) {
	var changed int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Notification{}).
			Where("recipient_id = ? AND is_read = ?", p.UserID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected

		var shared []uuid.UUID
		if err := s.unread(s.scope(tx.Model(&models.Notification{}), p), p).
			Where("recipient_id IS NULL").
			Pluck("id", &shared).Error; err != nil {
			return err
		}
		if len(shared) == 0 {
			return nil
		}

		now := time.Now()
		receipts := make([]models.NotificationRead, 0, len(shared))
		for _, id := range shared {
			receipts = append(receipts, models.NotificationRead{NotificationID: id, UserID: p.UserID, ReadAt: now})
		}
		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipts)
		if res.Error != nil {
			return res.Error
		}
		changed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, internalError("failed to update notifications", err)
	}
	return changed, nil
}
