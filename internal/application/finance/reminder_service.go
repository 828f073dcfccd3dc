package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crechebooks/backend/internal/domain/finance"
	"github.com/crechebooks/backend/internal/domain/partner"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/crechebooks/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// DefaultReminderConcurrency bounds how many invoices of one batch are processed at once
const DefaultReminderConcurrency = 4

// DefaultEscalationLockTTL is how long a tenant escalation lock is held before it expires
const DefaultEscalationLockTTL = 10 * time.Minute

// EmailSender delivers a reminder by email and returns the provider message id
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

// MessageSender delivers a reminder over WhatsApp and returns the provider message id
type MessageSender interface {
	SendMessage(ctx context.Context, phone, body string) (string, error)
}

// ReminderRenderer turns reminder content into a subject and body for its escalation level
type ReminderRenderer interface {
	Render(content finance.ReminderContent) (subject, body string, err error)
}

// CrecheProfileProvider looks up the tenant's own details for reminder content
type CrecheProfileProvider interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*partner.CrecheProfile, error)
}

// ArrearsReporter produces the arrears report escalation runs from
type ArrearsReporter interface {
	GetArrearsReport(ctx context.Context, req ArrearsRequest) (*ArrearsReport, error)
}

// RunLocker grants exclusive runs across workers.
// Acquire returns a Conflict error when the key is held elsewhere.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// ReminderOutcome is what happened to one invoice in a reminder batch
type ReminderOutcome string

const (
	ReminderOutcomeSent    ReminderOutcome = "SENT"
	ReminderOutcomeFailed  ReminderOutcome = "FAILED"
	ReminderOutcomeSkipped ReminderOutcome = "SKIPPED"
)

// Skip reasons
const (
	SkipReasonNotFound   = "invoice not found"
	SkipReasonPaid       = "invoice fully paid"
	SkipReasonNotIssued  = "invoice not issued or cancelled"
	SkipReasonNotOverdue = "invoice not yet overdue"
	SkipReasonRecent     = "reminder sent within the last 3 days"
)

// ReminderService sends escalating payment reminders for overdue invoices
type ReminderService struct {
	invoiceRepo  finance.InvoiceRepository
	reminderRepo finance.ReminderRepository
	parentRepo   partner.ParentRepository
	childRepo    partner.ChildRepository
	profiles     CrecheProfileProvider
	renderer     ReminderRenderer
	arrears      ArrearsReporter
	email        EmailSender
	whatsapp     MessageSender
	locker       RunLocker
	publisher    shared.EventPublisher
	lockTTL      time.Duration
	concurrency  int
	location     *time.Location
	logger       *zap.Logger
	metrics      *telemetry.BookkeepingMetrics
	now          func() time.Time
}

// ReminderServiceOption configures a ReminderService
type ReminderServiceOption func(*ReminderService)

// WithEmailSender sets the email channel
func WithEmailSender(sender EmailSender) ReminderServiceOption {
	return func(s *ReminderService) {
		s.email = sender
	}
}

// WithMessageSender sets the WhatsApp channel
func WithMessageSender(sender MessageSender) ReminderServiceOption {
	return func(s *ReminderService) {
		s.whatsapp = sender
	}
}

// WithRunLocker guards EscalateOverdue with a per-tenant lock
func WithRunLocker(locker RunLocker, ttl time.Duration) ReminderServiceOption {
	return func(s *ReminderService) {
		s.locker = locker
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithReminderConcurrency sets how many invoices are processed in parallel
func WithReminderConcurrency(n int) ReminderServiceOption {
	return func(s *ReminderService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithReminderLocation sets the business timezone used to count days overdue
func WithReminderLocation(loc *time.Location) ReminderServiceOption {
	return func(s *ReminderService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithReminderLogger sets the logger
func WithReminderLogger(logger *zap.Logger) ReminderServiceOption {
	return func(s *ReminderService) {
		s.logger = logger
	}
}

// WithReminderMetrics sets the business metrics recorder
func WithReminderMetrics(metrics *telemetry.BookkeepingMetrics) ReminderServiceOption {
	return func(s *ReminderService) {
		s.metrics = metrics
	}
}

// WithReminderEventPublisher publishes a ReminderSent or ReminderFailed event per stored reminder
func WithReminderEventPublisher(publisher shared.EventPublisher) ReminderServiceOption {
	return func(s *ReminderService) {
		s.publisher = publisher
	}
}

// WithReminderClock overrides the time source
func WithReminderClock(now func() time.Time) ReminderServiceOption {
	return func(s *ReminderService) {
		s.now = now
	}
}

// NewReminderService creates a new ReminderService
func NewReminderService(
	invoiceRepo finance.InvoiceRepository,
	reminderRepo finance.ReminderRepository,
	parentRepo partner.ParentRepository,
	childRepo partner.ChildRepository,
	profiles CrecheProfileProvider,
	renderer ReminderRenderer,
	arrears ArrearsReporter,
	opts ...ReminderServiceOption,
) *ReminderService {
	s := &ReminderService{
		invoiceRepo:  invoiceRepo,
		reminderRepo: reminderRepo,
		parentRepo:   parentRepo,
		childRepo:    childRepo,
		profiles:     profiles,
		renderer:     renderer,
		arrears:      arrears,
		lockTTL:      DefaultEscalationLockTTL,
		concurrency:  DefaultReminderConcurrency,
		location:     time.UTC,
		logger:       zap.NewNop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendRemindersRequest represents a request to send reminders for specific invoices
type SendRemindersRequest struct {
	TenantID        uuid.UUID               `json:"tenant_id" validate:"required"`
	InvoiceIDs      []uuid.UUID             `json:"invoice_ids" validate:"required,min=1"`
	ChannelOverride *finance.DeliveryMethod `json:"channel_override"`
}

// ReminderDetail reports the outcome for one invoice
type ReminderDetail struct {
	InvoiceID  uuid.UUID               `json:"invoice_id"`
	Outcome    ReminderOutcome         `json:"outcome"`
	Level      finance.EscalationLevel `json:"level,omitempty"`
	ReminderID *uuid.UUID              `json:"reminder_id,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
}

// SendRemindersResult tallies a reminder batch. Details keep request order.
type SendRemindersResult struct {
	Sent    int              `json:"sent"`
	Failed  int              `json:"failed"`
	Skipped int              `json:"skipped"`
	Details []ReminderDetail `json:"details"`
}

// SendReminders sends one reminder per invoice, each at the tone its days overdue call for.
// A failure on one invoice never aborts the others.
func (s *ReminderService) SendReminders(ctx context.Context, req SendRemindersRequest) (*SendRemindersResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reminder", "send_reminders")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, req.TenantID.String())

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if req.ChannelOverride != nil && !req.ChannelOverride.IsValid() {
		err := shared.NewValidationError("INVALID_DELIVERY_METHOD", fmt.Sprintf("Unknown delivery method %q", *req.ChannelOverride))
		telemetry.RecordError(span, err)
		return nil, err
	}

	ids := lo.Uniq(req.InvoiceIDs)
	details := make([]ReminderDetail, len(ids))
	p := pool.New().WithMaxGoroutines(s.concurrency)
	for i, invoiceID := range ids {
		p.Go(func() {
			details[i] = s.remind(ctx, req.TenantID, invoiceID, req.ChannelOverride)
		})
	}
	p.Wait()

	result := &SendRemindersResult{Details: details}
	for _, d := range details {
		switch d.Outcome {
		case ReminderOutcomeSent:
			result.Sent++
		case ReminderOutcomeFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}
	telemetry.SetAttributes(span, "sent", result.Sent, "failed", result.Failed, "skipped", result.Skipped)
	s.logger.Info("Reminder batch processed",
		zap.String("tenant_id", req.TenantID.String()),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// remind processes a single invoice and never returns an error: every outcome is a detail
func (s *ReminderService) remind(ctx context.Context, tenantID, invoiceID uuid.UUID, override *finance.DeliveryMethod) ReminderDetail {
	detail := ReminderDetail{InvoiceID: invoiceID}
	skip := func(reason string) ReminderDetail {
		detail.Outcome = ReminderOutcomeSkipped
		detail.Reason = reason
		return detail
	}
	fail := func(reason string, err error) ReminderDetail {
		detail.Outcome = ReminderOutcomeFailed
		detail.Reason = reason
		s.logger.Warn("Reminder failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return detail
	}

	invoice, err := s.invoiceRepo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		if shared.IsNotFound(err) {
			return skip(SkipReasonNotFound)
		}
		return fail("failed to load invoice", err)
	}
	if invoice.Status == finance.InvoiceStatusPaid || invoice.IsFullyPaid() {
		return skip(SkipReasonPaid)
	}
	if !invoice.Status.InArrearsScope() {
		return skip(SkipReasonNotIssued)
	}

	now := s.now()
	days := invoice.DaysOverdue(now.In(s.location))
	level, ok := finance.EscalationLevelForDays(days)
	if !ok {
		return skip(SkipReasonNotOverdue)
	}
	detail.Level = level

	lastSent, err := s.reminderRepo.FindLastSentAt(ctx, tenantID, invoiceID)
	if err != nil {
		return fail("failed to check reminder history", err)
	}
	if lastSent != nil && finance.SuppressedBy(*lastSent, now) {
		return skip(SkipReasonRecent)
	}

	method := finance.DeliveryMethodEmail
	if override != nil {
		method = *override
	}

	// failed records a FAILED reminder row for outcomes that never reach a channel
	failed := func(parentID uuid.UUID, method finance.DeliveryMethod, subject, body, reason string, cause error) ReminderDetail {
		if !method.IsValid() {
			method = finance.DeliveryMethodEmail
		}
		reminder, rerr := finance.NewReminder(tenantID, invoice.ID, parentID, level, method, subject, body, now)
		if rerr != nil {
			return fail("failed to create reminder", rerr)
		}
		if cause != nil {
			reason = fmt.Sprintf("%s: %v", reason, cause)
		}
		_ = reminder.MarkFailed(now, reason)
		return s.record(ctx, detail, reminder)
	}

	parent, err := s.parentRepo.FindByIDForTenant(ctx, tenantID, invoice.ParentID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return fail("failed to load parent", err)
		}
		return failed(invoice.ParentID, method, "", "", "parent not found", nil)
	}
	if override == nil {
		method = finance.DeliveryMethod(parent.PreferredContact)
	}
	if !method.IsValid() {
		return failed(parent.ID, method, "", "", fmt.Sprintf("invalid delivery method %q", method), nil)
	}

	content := s.content(ctx, tenantID, invoice, parent, level, days)
	subject, body, err := s.renderer.Render(content)
	if err != nil {
		return failed(parent.ID, method, "", "", "failed to render reminder", err)
	}

	reminder, err := finance.NewReminder(tenantID, invoice.ID, parent.ID, level, method, subject, body, now)
	if err != nil {
		return failed(parent.ID, method, subject, body, "failed to create reminder", err)
	}

	messageIDs, failures := s.deliver(ctx, parent, method, subject, body)
	if len(messageIDs) > 0 {
		_ = reminder.MarkSent(s.now(), messageIDs, strings.Join(failures, "; "))
	} else {
		_ = reminder.MarkFailed(s.now(), strings.Join(failures, "; "))
	}
	return s.record(ctx, detail, reminder)
}

// record persists the reminder row and converts its status into the batch outcome
func (s *ReminderService) record(ctx context.Context, detail ReminderDetail, reminder *finance.Reminder) ReminderDetail {
	if err := s.reminderRepo.Create(ctx, reminder); err != nil {
		detail.Outcome = ReminderOutcomeFailed
		detail.Reason = "failed to record reminder"
		s.logger.Error("Failed to record reminder",
			zap.String("tenant_id", reminder.TenantID.String()),
			zap.String("invoice_id", reminder.InvoiceID.String()),
			zap.Error(err),
		)
		return detail
	}
	id := reminder.ID
	detail.ReminderID = &id
	detail.Level = reminder.EscalationLevel
	if reminder.Status == finance.ReminderStatusSent {
		detail.Outcome = ReminderOutcomeSent
		detail.Reason = reminder.FailureReason
	} else {
		detail.Outcome = ReminderOutcomeFailed
		detail.Reason = reminder.FailureReason
	}
	s.metrics.RecordReminder(ctx, reminder.EscalationLevel.String(), string(reminder.Status))
	publishEvents(ctx, s.publisher, s.logger, finance.NewReminderRecordedEvent(reminder, s.now()))
	return detail
}

// deliver attempts every channel of method independently
func (s *ReminderService) deliver(ctx context.Context, parent *partner.Parent, method finance.DeliveryMethod, subject, body string) (messageIDs, failures []string) {
	for _, channel := range method.Channels() {
		var (
			id  string
			err error
		)
		switch channel {
		case finance.DeliveryMethodEmail:
			switch {
			case s.email == nil:
				err = fmt.Errorf("email channel not configured")
			case parent.Email == "":
				err = fmt.Errorf("parent has no email address")
			default:
				id, err = s.email.SendEmail(ctx, parent.Email, subject, body)
			}
		case finance.DeliveryMethodWhatsApp:
			switch {
			case s.whatsapp == nil:
				err = fmt.Errorf("whatsapp channel not configured")
			case parent.WhatsApp == "":
				err = fmt.Errorf("parent has no whatsapp number")
			default:
				id, err = s.whatsapp.SendMessage(ctx, parent.WhatsApp, body)
			}
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", strings.ToLower(string(channel)), err))
			continue
		}
		messageIDs = append(messageIDs, id)
	}
	return messageIDs, failures
}

// content gathers template data. Missing child or profile details render as blanks.
func (s *ReminderService) content(
	ctx context.Context,
	tenantID uuid.UUID,
	invoice *finance.Invoice,
	parent *partner.Parent,
	level finance.EscalationLevel,
	days int,
) finance.ReminderContent {
	content := finance.ReminderContent{
		Level:         level,
		ParentName:    parent.FullName(),
		InvoiceNumber: invoice.InvoiceNumber,
		Amount:        invoice.Total().Subtract(invoice.AmountPaid()),
		DaysOverdue:   days,
		DueDate:       invoice.DueDate,
	}
	if s.childRepo != nil {
		if child, err := s.childRepo.FindByIDForTenant(ctx, tenantID, invoice.ChildID); err == nil {
			content.ChildName = child.FullName()
		} else if !shared.IsNotFound(err) {
			s.logger.Warn("Failed to load child for reminder", zap.String("child_id", invoice.ChildID.String()), zap.Error(err))
		}
	}
	if s.profiles != nil {
		if profile, err := s.profiles.FindByTenant(ctx, tenantID); err == nil {
			content.CrecheName = profile.Name
			content.CrecheEmail = profile.Email
			content.CrechePhone = profile.Phone
			content.BankName = profile.BankName
			content.BankAccountNumber = profile.BankAccountNumber
			content.BankBranchCode = profile.BankBranchCode
		} else {
			s.logger.Warn("Failed to load creche profile for reminder", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		}
	}
	return content
}

// EscalationResult tallies one escalation run. Friendly, Firm and Final count sent reminders.
type EscalationResult struct {
	Friendly int `json:"friendly"`
	Firm     int `json:"firm"`
	Final    int `json:"final"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// EscalateOverdue sends reminders for every overdue invoice of a tenant
func (s *ReminderService) EscalateOverdue(ctx context.Context, tenantID uuid.UUID) (*EscalationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reminder", "escalate_overdue")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	if tenantID == uuid.Nil {
		err := shared.NewValidationError("INVALID_INPUT", "tenant_id is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "reminder-escalation:"+tenantID.String(), s.lockTTL)
		if err != nil {
			if !shared.IsConflict(err) {
				err = classify(err, "acquire escalation lock")
			}
			telemetry.RecordError(span, err)
			return nil, err
		}
		defer func() {
			if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
				s.logger.Warn("Failed to release escalation lock", zap.String("tenant_id", tenantID.String()), zap.Error(rerr))
			}
		}()
	}

	asOf := s.now()
	report, err := s.arrears.GetArrearsReport(ctx, ArrearsRequest{TenantID: tenantID, AsOf: &asOf})
	if err != nil {
		err = classify(err, "build arrears report")
		telemetry.RecordError(span, err)
		return nil, err
	}

	overdue := lo.FilterMap(report.Invoices, func(row ArrearsInvoice, _ int) (uuid.UUID, bool) {
		return row.InvoiceID, row.DaysOverdue >= 1
	})
	result := &EscalationResult{}
	if len(overdue) == 0 {
		return result, nil
	}

	batch, err := s.SendReminders(ctx, SendRemindersRequest{TenantID: tenantID, InvoiceIDs: overdue})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result.Sent = batch.Sent
	result.Failed = batch.Failed
	result.Skipped = batch.Skipped
	for _, d := range batch.Details {
		if d.Outcome != ReminderOutcomeSent {
			continue
		}
		switch d.Level {
		case finance.EscalationFriendly:
			result.Friendly++
		case finance.EscalationFirm:
			result.Firm++
		case finance.EscalationFinal:
			result.Final++
		}
	}

	s.logger.Info("Overdue escalation completed",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("friendly", result.Friendly),
		zap.Int("firm", result.Firm),
		zap.Int("final", result.Final),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// ListReminders returns the reminder history of an invoice, newest first
func (s *ReminderService) ListReminders(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]finance.Reminder, error) {
	reminders, err := s.reminderRepo.FindByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, classify(err, "list reminders")
	}
	return reminders, nil
}
