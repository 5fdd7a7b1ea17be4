package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/hireflow/internal/delivery"
	"github.com/timmy/hireflow/internal/domain"
	"github.com/timmy/hireflow/internal/logger"
	"github.com/timmy/hireflow/internal/repository"
	"github.com/timmy/hireflow/internal/retry"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultMaxRetries caps manual retries of a notification record.
const DefaultMaxRetries = 3

// HighScoreCandidate is a match at or above the notification threshold.
type HighScoreCandidate struct {
	ApplicationID  string `json:"applicationId"`
	CandidateName  string `json:"candidateName"`
	CandidateEmail string `json:"candidateEmail"`
	MatchScore     int    `json:"match_score"`
}

// HighScoreNotifySummary counts delivered high-score notifications.
type HighScoreNotifySummary struct {
	CandidateNotificationsSent int `json:"candidateNotificationsSent"`
	RecruiterNotificationsSent int `json:"recruiterNotificationsSent"`
}

// StatusChange is a status transition that may trigger a notification.
type StatusChange struct {
	ApplicationID string                   `json:"applicationId"`
	OldStatus     domain.ApplicationStatus `json:"oldStatus"`
	NewStatus     domain.ApplicationStatus `json:"newStatus"`
}

// AnalysisNotifier informs a candidate that their analysis finished.
type AnalysisNotifier interface {
	NotifyAnalysisComplete(ctx context.Context, app *domain.Application, analysis *domain.AIAnalysis) error
}

// HighScoreNotifier fans out alerts for high-scoring matches.
type HighScoreNotifier interface {
	NotifyHighScorers(ctx context.Context, req *domain.JobRequirement, candidates []HighScoreCandidate, settings RunSettings) (HighScoreNotifySummary, error)
}

// StatusNotifier sends status-change alerts.
type StatusNotifier interface {
	NotifyStatusChange(ctx context.Context, change StatusChange) (bool, error)
}

// NotificationConfig holds configuration for the notification service.
type NotificationConfig struct {
	Enabled    bool
	MaxRetries int
	// MailPolicy wraps every email send so provider rate limits are retried.
	MailPolicy retry.Policy
}

// NotificationService builds templated messages, delivers them, and appends
// every attempt to the audit log.
type NotificationService struct {
	repo       *repository.NotificationRepository
	apps       *repository.ApplicationRepository
	mailer     delivery.Mailer
	pusher     delivery.Pusher
	policy     retry.Policy
	maxRetries int
	enabled    bool
	logger     *logger.Logger
	now        func() time.Time
}

// NewNotificationService creates a new NotificationService.
// Parameters:
//   - repo: audit log, templates, subscriptions and recruiters.
//   - apps: application lookups for status-change alerts.
//   - mailer: email delivery; nil records every email as failed.
//   - pusher: push delivery; nil disables push fan-out.
//   - log: fallback logger.
//   - cfg: enable flag, retry cap and mail retry policy.
func NewNotificationService(
	repo *repository.NotificationRepository,
	apps *repository.ApplicationRepository,
	mailer delivery.Mailer,
	pusher delivery.Pusher,
	log *logger.Logger,
	cfg *NotificationConfig,
) *NotificationService {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &NotificationService{
		repo:       repo,
		apps:       apps,
		mailer:     mailer,
		pusher:     pusher,
		policy:     cfg.MailPolicy,
		maxRetries: maxRetries,
		enabled:    cfg.Enabled,
		logger:     log,
		now:        time.Now,
	}
}

func (s *NotificationService) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, s.logger)
}

// ScoreMessage returns the encouragement line for an overall score.
func ScoreMessage(score int) string {
	switch {
	case score >= 80:
		return "Excellent! Your profile is a strong fit for this role."
	case score >= 60:
		return "Good profile! There are a few areas where you could strengthen your application."
	default:
		return "Keep improving! Building more experience in the key skills for this role will raise your score."
	}
}

var statusMessages = map[domain.ApplicationStatus]string{
	domain.StatusInterview: "We would like to invite you to an interview. A recruiter will reach out to schedule a time.",
	domain.StatusOffer:     "Congratulations! We are preparing an offer for you. Expect the details shortly.",
	domain.StatusHired:     "Welcome aboard! We are excited to have you join the team.",
}

// NotifyAnalysisComplete implements AnalysisNotifier.
func (s *NotificationService) NotifyAnalysisComplete(ctx context.Context, app *domain.Application, analysis *domain.AIAnalysis) error {
	if app.Candidate == nil {
		loaded, err := s.apps.GetByID(ctx, app.ID)
		if err != nil {
			return fmt.Errorf("load application %s: %w", app.ID, err)
		}
		app = loaded
	}
	name, email := candidateContact(app)

	vars := map[string]string{
		VarCandidateName: name,
		VarJobRole:       app.JobRole,
		VarMatchScore:    strconv.Itoa(analysis.OverallScore),
		VarScoreMessage:  ScoreMessage(analysis.OverallScore),
	}
	metadata := map[string]interface{}{
		"application_id": app.ID,
		"overall_score":  analysis.OverallScore,
		"profile":        analysis.Profile,
	}
	_, err := s.sendEmail(ctx, domain.NotificationAnalysisComplete, email, name, vars, metadata)
	return err
}

// NotifyHighScorers implements HighScoreNotifier. Each candidate gets one
// email; when recruiter notifications are enabled every active recruiter
// gets one digest plus push messages. One failed delivery never stops the others.
func (s *NotificationService) NotifyHighScorers(ctx context.Context, req *domain.JobRequirement, candidates []HighScoreCandidate, settings RunSettings) (HighScoreNotifySummary, error) {
	var summary HighScoreNotifySummary
	if len(candidates) == 0 {
		return summary, nil
	}

	var errs []error
	for _, c := range candidates {
		vars := map[string]string{
			VarCandidateName: c.CandidateName,
			VarJobRole:       req.Role,
			VarMatchScore:    strconv.Itoa(c.MatchScore),
			VarThreshold:     strconv.Itoa(settings.Threshold),
		}
		metadata := map[string]interface{}{
			"application_id":     c.ApplicationID,
			"job_requirement_id": req.ID,
			"match_score":        c.MatchScore,
			"threshold":          settings.Threshold,
		}
		rec, err := s.sendEmail(ctx, domain.NotificationHighScore, c.CandidateEmail, c.CandidateName, vars, metadata)
		if err != nil {
			errs = append(errs, err)
		}
		if rec != nil && rec.Status == domain.NotificationSent {
			summary.CandidateNotificationsSent++
		}
	}

	if !settings.RecruiterNotifications {
		return summary, errors.Join(errs...)
	}

	recruiters, err := s.repo.ListActiveRecruiters(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list recruiters: %w", err))
		return summary, errors.Join(errs...)
	}

	plural := ""
	if len(candidates) != 1 {
		plural = "s"
	}
	list := candidatesListHTML(candidates)
	for _, r := range recruiters {
		greeting := "Hello,"
		if r.FullName != "" {
			greeting = fmt.Sprintf("Hi %s,", r.FullName)
		}
		vars := map[string]string{
			VarRecruiterGreeting: greeting,
			VarCount:             strconv.Itoa(len(candidates)),
			VarPlural:            plural,
			VarThreshold:         strconv.Itoa(settings.Threshold),
			VarJobRole:           req.Role,
			VarCandidatesList:    list,
		}
		metadata := map[string]interface{}{
			"job_requirement_id": req.ID,
			"recruiter_id":       r.ID,
			"candidate_count":    len(candidates),
			"threshold":          settings.Threshold,
		}
		rec, err := s.sendEmail(ctx, domain.NotificationRecruiterDigest, r.Email, r.FullName, vars, metadata)
		if err != nil {
			errs = append(errs, err)
		}
		if rec != nil && rec.Status == domain.NotificationSent {
			summary.RecruiterNotificationsSent++
		}

		title := fmt.Sprintf("%d high-scoring candidate%s for %s", len(candidates), plural, req.Role)
		s.pushToUser(ctx, domain.NotificationRecruiterDigest, r.UserID, title, "Open the dashboard to review them.", metadata)
	}

	return summary, errors.Join(errs...)
}

// NotifyStatusChange implements StatusNotifier. Only transitions into
// interview, offer or hired notify; it reports whether a notification was attempted.
func (s *NotificationService) NotifyStatusChange(ctx context.Context, change StatusChange) (bool, error) {
	if !change.NewStatus.NotifyEligible() {
		s.log(ctx).WithFields(logger.Fields{
			logger.FieldApplicationID: change.ApplicationID,
			"new_status":              change.NewStatus,
		}).Debug("Status change is not notify-eligible")
		return false, nil
	}

	app, err := s.apps.GetByID(ctx, change.ApplicationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrApplicationNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load application %s: %w", change.ApplicationID, err)
	}
	name, email := candidateContact(app)

	vars := map[string]string{
		VarCandidateName: name,
		VarJobRole:       app.JobRole,
		VarStatus:        statusLabel(change.NewStatus),
		VarStatusMessage: statusMessages[change.NewStatus],
	}
	metadata := map[string]interface{}{
		"application_id": app.ID,
		"old_status":     change.OldStatus,
		"new_status":     change.NewStatus,
	}
	rec, sendErr := s.sendEmail(ctx, domain.NotificationStatusChange, email, name, vars, metadata)

	if app.Candidate != nil {
		title := fmt.Sprintf("Your %s application: %s", app.JobRole, statusLabel(change.NewStatus))
		s.pushToUser(ctx, domain.NotificationStatusChange, app.Candidate.UserID, title, statusMessages[change.NewStatus], metadata)
	}

	return rec != nil, sendErr
}

// Retry resends a failed email record. It is rejected without sending once
// retry_count has reached the cap; otherwise retry_count and last_retry_at are
// updated whatever the outcome.
func (s *NotificationService) Retry(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Channel == domain.ChannelPush || rec.Status == domain.NotificationSent {
		return rec, ErrNotRetryable
	}
	if rec.RetryCount >= s.maxRetries {
		return rec, ErrRetryLimitReached
	}

	claimed, err := s.repo.ClaimRetry(ctx, id, s.maxRetries, s.now())
	if err != nil {
		return rec, err
	}
	if !claimed {
		return rec, ErrRetryLimitReached
	}

	sendErr := s.deliver(ctx, rec.RecipientEmail, rec.RecipientName, rec.Subject, rec.Body)
	status, errMsg := outcome(sendErr)
	if err := s.repo.UpdateOutcome(context.WithoutCancel(ctx), id, status, errMsg); err != nil {
		return rec, fmt.Errorf("record retry outcome: %w", err)
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return rec, err
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldNotificationID: id,
		logger.FieldAttempt:        updated.RetryCount,
		logger.FieldStatus:         status,
	}).Info("Notification retried")

	if sendErr != nil {
		return updated, stageErr(StageNotify, sendErr)
	}
	return updated, nil
}

// List returns audit records for the history view.
func (s *NotificationService) List(ctx context.Context, f repository.NotificationFilter) ([]domain.NotificationRecord, int64, error) {
	return s.repo.List(ctx, f)
}

func (s *NotificationService) template(ctx context.Context, notificationType domain.NotificationType) Template {
	tpl, err := s.repo.GetTemplate(ctx, string(notificationType))
	if err == nil && (tpl.Subject != "" || tpl.Body != "") {
		return Template{Subject: tpl.Subject, Body: tpl.Body}
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log(ctx).WithError(err).Warn("Failed to load notification template, using default")
	}
	return defaultTemplates[string(notificationType)]
}

// sendEmail renders, delivers and audits one email. It returns the audit
// record (nil when notifications are disabled) and the delivery error.
func (s *NotificationService) sendEmail(
	ctx context.Context,
	notificationType domain.NotificationType,
	to, toName string,
	vars map[string]string,
	metadata map[string]interface{},
) (*domain.NotificationRecord, error) {
	if !s.enabled {
		s.log(ctx).WithField("type", notificationType).Debug("Notifications disabled, skipping email")
		return nil, nil
	}

	subject, body := s.template(ctx, notificationType).Render(vars)

	var sendErr error
	if strings.TrimSpace(to) == "" {
		sendErr = errors.New("recipient has no email address")
	} else {
		sendErr = s.policy.Do(ctx, func(ctx context.Context) error {
			return s.deliver(ctx, to, toName, subject, body)
		})
	}

	status, errMsg := outcome(sendErr)
	rec := &domain.NotificationRecord{
		NotificationType: notificationType,
		Channel:          domain.ChannelEmail,
		RecipientEmail:   to,
		RecipientName:    toName,
		Subject:          subject,
		Body:             body,
		Status:           status,
		ErrorMessage:     errMsg,
		Metadata:         encodeMetadata(metadata),
	}
	if err := s.repo.Create(context.WithoutCancel(ctx), rec); err != nil {
		s.log(ctx).WithError(err).Error("Failed to write notification audit record")
		return nil, fmt.Errorf("write notification audit record: %w", err)
	}

	l := s.log(ctx).WithFields(logger.Fields{
		logger.FieldNotificationID: rec.ID,
		"type":                     notificationType,
		logger.FieldStatus:         status,
	})
	if sendErr != nil {
		l.WithError(sendErr).Warn("Email delivery failed")
		return rec, stageErr(StageNotify, sendErr)
	}
	l.Info("Email sent")
	return rec, nil
}

func (s *NotificationService) deliver(ctx context.Context, to, toName, subject, body string) error {
	if s.mailer == nil {
		return errors.New("email delivery is not configured")
	}
	return s.mailer.Send(ctx, delivery.Email{To: to, ToName: toName, Subject: subject, HTML: body})
}

// pushToUser sends one push message per subscription of userID. Each
// subscription is attempted once and audited on its own.
func (s *NotificationService) pushToUser(ctx context.Context, trigger domain.NotificationType, userID, title, body string, metadata map[string]interface{}) int {
	if !s.enabled || s.pusher == nil || userID == "" {
		return 0
	}

	subs, err := s.repo.ListSubscriptions(ctx, userID)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Failed to list push subscriptions")
		return 0
	}

	delivered := 0
	for _, sub := range subs {
		pushErr := s.pusher.Push(ctx, delivery.PushMessage{
			Endpoint: sub.Endpoint,
			P256dh:   sub.P256dh,
			Auth:     sub.Auth,
			Title:    title,
			Body:     body,
		})

		meta := map[string]interface{}{
			"trigger":         trigger,
			"subscription_id": sub.ID,
			"user_id":         userID,
		}
		for k, v := range metadata {
			meta[k] = v
		}
		status, errMsg := outcome(pushErr)
		rec := &domain.NotificationRecord{
			NotificationType: domain.NotificationPush,
			Channel:          domain.ChannelPush,
			RecipientName:    userID,
			Subject:          title,
			Status:           status,
			ErrorMessage:     errMsg,
			Metadata:         encodeMetadata(meta),
		}
		if err := s.repo.Create(context.WithoutCancel(ctx), rec); err != nil {
			s.log(ctx).WithError(err).Error("Failed to write push audit record")
		}

		if pushErr != nil {
			s.log(ctx).WithField("subscription_id", sub.ID).WithError(pushErr).Warn("Push delivery failed")
			continue
		}
		delivered++
	}
	return delivered
}

func outcome(err error) (domain.NotificationStatus, string) {
	if err != nil {
		return domain.NotificationFailed, err.Error()
	}
	return domain.NotificationSent, ""
}

func encodeMetadata(m map[string]interface{}) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

func candidateContact(app *domain.Application) (name, email string) {
	if app.Candidate == nil {
		return "Candidate", ""
	}
	name = app.Candidate.FullName
	if name == "" {
		name = "Candidate"
	}
	return name, app.Candidate.Email
}

func candidatesListHTML(candidates []HighScoreCandidate) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, c := range candidates {
		fmt.Fprintf(&b, "<li><strong>%s</strong> (%s): %d%%</li>",
			html.EscapeString(c.CandidateName), html.EscapeString(c.CandidateEmail), c.MatchScore)
	}
	b.WriteString("</ul>")
	return b.String()
}

func statusLabel(s domain.ApplicationStatus) string {
	str := string(s)
	if str == "" {
		return str
	}
	return strings.ToUpper(str[:1]) + str[1:]
}
