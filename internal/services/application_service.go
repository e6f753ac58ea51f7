// internal/services/application_service.go
package services

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/credits"
	"github.com/abc-portal/internship-credits/internal/models"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

type ApplicationService struct {
	db                  *gorm.DB
	notificationService *NotificationService
	auditService        *AuditService
	storageService      *StorageService
}

// TransitionRequest carries the optional inputs of an event. Reason is
// required for reject, reject_credits and mark_exception; Hours for complete.
type TransitionRequest struct {
	Event  workflow.Event
	Reason string
	Hours  *float64
	// Client metadata for the audit trail.
	IPAddress string
	UserAgent string
}

type ApplicationSearchParams struct {
	utils.PaginationParams
	Status       *workflow.Status
	InternshipID *uuid.UUID
}

func NewApplicationService(db *gorm.DB, notificationService *NotificationService, auditService *AuditService, storageService *StorageService) *ApplicationService {
	return &ApplicationService{
		db:                  db,
		notificationService: notificationService,
		auditService:        auditService,
		storageService:      storageService,
	}
}

// Apply creates an application in the applied state. Only students apply,
// and only to open internships.
func (s *ApplicationService) Apply(p workflow.Principal, internshipID uuid.UUID) (*models.Application, error) {
	if p.Role != workflow.RoleStudent {
		return nil, forbidden("only students can apply to internships")
	}

	var application models.Application
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var internship models.Internship
		if err := tx.Where("id = ?", internshipID).First(&internship).Error; err != nil {
			return translate(err, "internship")
		}
		if !internship.IsOpen {
			return validationError("internship is not accepting applications")
		}

		var student models.User
		if err := tx.Where("id = ?", p.UserID).First(&student).Error; err != nil {
			return translate(err, "student")
		}
		if student.InstituteID == nil {
			return validationError("student has no institute affiliation")
		}

		var active int64
		if err := tx.Model(&models.Application{}).
			Where("student_id = ? AND internship_id = ? AND status <> ?", p.UserID, internshipID, workflow.StatusRejected).
			Count(&active).Error; err != nil {
			return internalError("failed to check existing applications", err)
		}
		if active > 0 {
			return newError(KindConflict, "an application for this internship already exists", nil)
		}

		application = models.Application{
			InternshipID: internship.ID,
			StudentID:    student.ID,
			InstituteID:  student.InstituteID,
			Status:       workflow.StatusApplied,
		}
		if err := tx.Create(&application).Error; err != nil {
			return translate(err, "application")
		}
		application.Internship = &internship

		s.auditService.Record(tx, AuditEntry{
			Actor:        &p,
			Action:       "apply",
			ResourceType: "application",
			ResourceID:   &application.ID,
			ToStatus:     string(workflow.StatusApplied),
			Details:      map[string]interface{}{"internship_id": internship.ID.String()},
		})
		s.notificationService.OnApply(tx, &application)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"application_id": application.ID,
		"internship_id":  internshipID,
		"student_id":     p.UserID,
	}).Info("Application created")

	return &application, nil
}

func (s *ApplicationService) Accept(p workflow.Principal, id uuid.UUID) (*models.Application, error) {
	return s.Transition(p, id, TransitionRequest{Event: workflow.EventAccept})
}

func (s *ApplicationService) Reject(p workflow.Principal, id uuid.UUID, reason string) (*models.Application, error) {
	return s.Transition(p, id, TransitionRequest{Event: workflow.EventReject, Reason: reason})
}

func (s *ApplicationService) Complete(p workflow.Principal, id uuid.UUID, hours float64) (*models.Application, error) {
	return s.Transition(p, id, TransitionRequest{Event: workflow.EventComplete, Hours: &hours})
}

func (s *ApplicationService) ApproveCredits(p workflow.Principal, id uuid.UUID) (*models.Application, error) {
	return s.Transition(p, id, TransitionRequest{Event: workflow.EventApprove})
}

func (s *ApplicationService) RejectCredits(p workflow.Principal, id uuid.UUID, reason string) (*models.Application, error) {
	return s.Transition(p, id, TransitionRequest{Event: workflow.EventRejectCredits, Reason: reason})
}

func (s *ApplicationService) MarkException(p workflow.Principal, id uuid.UUID, reason string) (*models.Application, error) {
	return s.Transition(p, id, TransitionRequest{Event: workflow.EventMarkException, Reason: reason})
}

// Transition applies req.Event to application id as p. The status write is a
// compare-and-swap on the status read inside the transaction, so of two
// concurrent identical requests only one succeeds and the other gets
// InvalidTransition. Notification and audit writes share the transaction but
// cannot fail it.
func (s *ApplicationService) Transition(p workflow.Principal, id uuid.UUID, req TransitionRequest) (*models.Application, error) {
	rule, err := workflow.Authorize(req.Event, p.Role)
	if err != nil {
		return nil, translate(err, "application")
	}

	reason := strings.TrimSpace(req.Reason)
	if rule.RequiresReason && reason == "" {
		return nil, validationError("a non-empty reason is required")
	}
	if rule.RequiresHours && req.Hours == nil {
		return nil, validationError("hours is required")
	}

	var application models.Application
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Internship").Where("id = ?", id).First(&application).Error; err != nil {
			return translate(err, "application")
		}
		if err := checkOwnership(p, &application); err != nil {
			return err
		}

		from := application.Status
		to, err := workflow.Next(from, req.Event, p.Role)
		if err != nil {
			return translate(err, "application")
		}

		now := time.Now()
		updates := map[string]interface{}{"status": to}

		var result credits.Result
		switch req.Event {
		case workflow.EventComplete:
			result, err = credits.Compute(*req.Hours, application.Internship.Policy)
			if err != nil {
				return translate(err, "application")
			}
			updates["hours_worked"] = *req.Hours
			updates["credits_awarded"] = result.Credits
			application.HoursWorked = req.Hours
		case workflow.EventReject, workflow.EventMarkException:
			updates["reason"] = reason
			updates["decided_at"] = now
		case workflow.EventRejectCredits:
			updates["reason"] = reason
			updates["credits_awarded"] = nil
			updates["decided_at"] = now
		case workflow.EventApprove:
			updates["decided_at"] = now
		}

		res := tx.Model(&models.Application{}).
			Where("id = ? AND status = ?", application.ID, from).
			Updates(updates)
		if res.Error != nil {
			return internalError("failed to update application", res.Error)
		}
		if res.RowsAffected == 0 {
			return invalidTransition("application status changed concurrently")
		}

		if err := s.applyCreditEffects(tx, p, &application, req.Event, result, reason, now); err != nil {
			return err
		}

		var reloaded models.Application
		if err := tx.Preload("Internship").Preload("CreditRecord").
			Where("id = ?", application.ID).First(&reloaded).Error; err != nil {
			return internalError("failed to reload application", err)
		}
		if err := checkInvariants(&reloaded); err != nil {
			return err
		}
		application = reloaded

		ev := TransitionEvent{Application: &application, Event: req.Event, From: from, To: to, Actor: p}
		details := map[string]interface{}{"event": string(req.Event)}
		if reason != "" {
			details["reason"] = reason
		}
		if req.Event == workflow.EventComplete {
			details["hours_worked"] = *req.Hours
			details["credits"] = result.Credits
			details["is_low"] = result.IsLow
		}
		s.auditService.Record(tx, AuditEntry{
			Actor:        &p,
			Action:       string(req.Event),
			ResourceType: "application",
			ResourceID:   &application.ID,
			FromStatus:   string(from),
			ToStatus:     string(to),
			Details:      details,
			IPAddress:    req.IPAddress,
			UserAgent:    req.UserAgent,
		})
		s.notificationService.OnTransition(tx, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"application_id": application.ID,
		"event":          req.Event,
		"status":         application.Status,
		"actor_id":       p.UserID,
	}).Info("Application transitioned")

	return &application, nil
}

// applyCreditEffects keeps the credit record in step with the application.
func (s *ApplicationService) applyCreditEffects(tx *gorm.DB, p workflow.Principal, app *models.Application, event workflow.Event, result credits.Result, reason string, now time.Time) error {
	var updates map[string]interface{}

	switch event {
	case workflow.EventComplete:
		record := models.CreditRecord{
			ApplicationID:     app.ID,
			StudentID:         app.StudentID,
			InstituteID:       app.InstituteID,
			PolicyType:        app.Internship.Policy,
			Hours:             *app.HoursWorked,
			CreditsCalculated: result.Credits,
			IsLow:             result.IsLow,
			Status:            models.CreditStatusPending,
		}
		if err := tx.Create(&record).Error; err != nil {
			return translate(err, "credit record")
		}
		return nil
	case workflow.EventApprove:
		updates = map[string]interface{}{"status": models.CreditStatusApproved}
	case workflow.EventRejectCredits:
		updates = map[string]interface{}{"status": models.CreditStatusRejected, "remarks": reason}
	case workflow.EventMarkException:
		updates = map[string]interface{}{"is_flagged": true, "remarks": reason}
	default:
		return nil
	}

	updates["reviewed_by"] = p.UserID
	updates["reviewed_at"] = now
	res := tx.Model(&models.CreditRecord{}).
		Where("application_id = ? AND status = ?", app.ID, models.CreditStatusPending).
		Updates(updates)
	if res.Error != nil {
		return internalError("failed to update credit record", res.Error)
	}
	if res.RowsAffected == 0 {
		return invalidTransition("credit record is no longer pending")
	}
	return nil
}

// checkOwnership enforces that companies act on their own internships and
// institutes on their own students.
func checkOwnership(p workflow.Principal, app *models.Application) error {
	switch p.Role {
	case workflow.RoleCompany:
		if app.Internship == nil || app.Internship.CompanyID != p.UserID {
			return forbidden("internship belongs to another company")
		}
	case workflow.RoleInstitute:
		if !p.BelongsTo(app.InstituteID) {
			return forbidden("student is affiliated with another institute")
		}
	case workflow.RoleStudent, workflow.RoleAdmin:
		return forbidden("role cannot transition applications")
	}
	return nil
}

// canView reports read access; admin sees everything.
// checkInvariants verifies the stored row agrees with its status before the
// transition commits.
func checkInvariants(app *models.Application) error {
	if app.Status.HasCredits() != (app.CreditsAwarded != nil) {
		return internalError("application invariant violated",
			fmt.Errorf("status %s with credits_awarded set=%t", app.Status, app.CreditsAwarded != nil))
	}
	hasReason := app.Reason != nil && *app.Reason != ""
	if app.Status.HasReason() != hasReason {
		return internalError("application invariant violated",
			fmt.Errorf("status %s with reason set=%t", app.Status, hasReason))
	}
	return nil
}

func canView(p workflow.Principal, app *models.Application) bool {
	switch p.Role {
	case workflow.RoleAdmin:
		return true
	case workflow.RoleStudent:
		return app.StudentID == p.UserID
	case workflow.RoleCompany:
		return app.Internship != nil && app.Internship.CompanyID == p.UserID
	case workflow.RoleInstitute:
		return p.BelongsTo(app.InstituteID)
	}
	return false
}

// scopeApplications restricts query (over the applications table) to rows p may read.
func scopeApplications(query *gorm.DB, p workflow.Principal) *gorm.DB {
	switch p.Role {
	case workflow.RoleAdmin:
		return query
	case workflow.RoleStudent:
		return query.Where("applications.student_id = ?", p.UserID)
	case workflow.RoleCompany:
		return query.Where("applications.internship_id IN (?)",
			query.Session(&gorm.Session{NewDB: true}).Model(&models.Internship{}).Select("id").Where("company_id = ?", p.UserID))
	case workflow.RoleInstitute:
		if p.InstituteID == nil {
			return query.Where("1 = 0")
		}
		return query.Where("applications.institute_id = ?", *p.InstituteID)
	}
	return query.Where("1 = 0")
}

func (s *ApplicationService) Get(p workflow.Principal, id uuid.UUID) (*models.Application, error) {
	var application models.Application
	if err := s.db.Preload("Internship").Preload("Student").Preload("Institute").Preload("CreditRecord").
		Where("id = ?", id).First(&application).Error; err != nil {
		return nil, translate(err, "application")
	}
	if !canView(p, &application) {
		return nil, forbidden("application is outside your scope")
	}
	application.Actions = workflow.Allowed(application.Status, p.Role)
	return &application, nil
}

func (s *ApplicationService) List(p workflow.Principal, params *ApplicationSearchParams) ([]models.Application, int64, error) {
	query := scopeApplications(s.db.Model(&models.Application{}), p)

	if params.Status != nil {
		query = query.Where("applications.status = ?", *params.Status)
	}
	if params.InternshipID != nil {
		query = query.Where("applications.internship_id = ?", *params.InternshipID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, internalError("failed to count applications", err)
	}

	var applications []models.Application
	query = utils.ApplySort(query, params.PaginationParams, []string{"created_at", "updated_at", "status"})
	if err := utils.ApplyPagination(query, params.PaginationParams).
		Preload("Internship").Preload("Student").Preload("CreditRecord").
		Find(&applications).Error; err != nil {
		return nil, 0, internalError("failed to list applications", err)
	}

	return applications, total, nil
}

// UploadProof stores a completion-proof document for an accepted or
// completed-awaiting-review application owned by the calling company.
func (s *ApplicationService) UploadProof(p workflow.Principal, id uuid.UUID, file FileUpload) (*models.Application, error) {
	if p.Role != workflow.RoleCompany {
		return nil, forbidden("only the owning company can upload completion proof")
	}

	var application models.Application
	if err := s.db.Preload("Internship").Where("id = ?", id).First(&application).Error; err != nil {
		return nil, translate(err, "application")
	}
	if err := checkOwnership(p, &application); err != nil {
		return nil, err
	}
	if application.Status != workflow.StatusAccepted && application.Status != workflow.StatusInstituteReview {
		return nil, invalidTransition("proof can only be attached to accepted or in-review applications")
	}

	result, err := s.storageService.Upload(file, s.storageService.ProofUploadOptions())
	if err != nil {
		return nil, err
	}

	previous := application.ProofKey
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Application{}).
			Where("id = ? AND status IN ?", application.ID, []workflow.Status{workflow.StatusAccepted, workflow.StatusInstituteReview}).
			Update("proof_key", result.Key)
		if res.Error != nil {
			return internalError("failed to save proof", res.Error)
		}
		if res.RowsAffected == 0 {
			return invalidTransition("application status changed during upload")
		}
		s.auditService.Record(tx, AuditEntry{
			Actor:        &p,
			Action:       "upload_proof",
			ResourceType: "application",
			ResourceID:   &application.ID,
			Details:      map[string]interface{}{"key": result.Key, "sha256": result.SHA256, "size": result.Size},
		})
		return nil
	})
	if err != nil {
		if delErr := s.storageService.DeleteFile(result.Key); delErr != nil {
			logrus.WithError(delErr).WithField("key", result.Key).Warn("Failed to remove orphaned proof")
		}
		return nil, err
	}

	if previous != "" {
		if err := s.storageService.DeleteFile(previous); err != nil {
			logrus.WithError(err).WithField("key", previous).Warn("Failed to remove replaced proof")
		}
	}

	application.ProofKey = result.Key
	return &application, nil
}

// proofLinkTTL bounds how long a presigned proof link stays valid.
const proofLinkTTL = 15 * time.Minute

// ProofDownload locates a completion proof. Exactly one of URL (S3) and
// LocalPath (local storage) is set.
type ProofDownload struct {
	URL       string
	LocalPath string
	Filename  string
}

// Proof resolves the completion proof of an application visible to p.
func (s *ApplicationService) Proof(p workflow.Principal, id uuid.UUID) (*ProofDownload, error) {
	application, err := s.Get(p, id)
	if err != nil {
		return nil, err
	}
	if application.ProofKey == "" {
		return nil, notFound("completion proof")
	}

	download := &ProofDownload{Filename: path.Base(application.ProofKey)}
	if s.storageService.Remote() {
		download.URL, err = s.storageService.DownloadURL(application.ProofKey, proofLinkTTL)
		if err != nil {
			return nil, newError(KindUpstream, "failed to sign proof link", err)
		}
		return download, nil
	}

	download.LocalPath, err = s.storageService.LocalPath(application.ProofKey)
	if err != nil {
		logrus.WithError(err).WithField("application_id", id).Warn("Completion proof missing from storage")
		return nil, notFound("completion proof")
	}
	return download, nil
}

// ProofURL returns a download link for the completion proof: a presigned S3
// link, or the authenticated file route when proofs are stored locally.
func (s *ApplicationService) ProofURL(p workflow.Principal, id uuid.UUID) (string, error) {
	download, err := s.Proof(p, id)
	if err != nil {
		return "", err
	}
	if download.URL != "" {
		return download.URL, nil
	}
	return "/application/" + id.String() + "/proof/file", nil
}
