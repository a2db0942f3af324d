package calendar

import (
	"context"
	"strconv"
	"time"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/apperr"
	"training_server/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	backendGraph = "graph"
	backendEWS   = "ews"
)

// Dependencies wires the sync service. SyncLog and Telemetry are optional.
type Dependencies struct {
	Directory     out.DirectoryPort
	Profiles      out.UserProfileResolver
	Tokens        out.TokenProvider
	Cloud         out.CloudCalendarPort
	OnPrem        out.OnPremCalendarPort
	Localizer     out.Localizer
	SyncLog       out.SyncLogRepository
	Telemetry     out.TelemetrySink
	DefaultLocale string
}

// SyncService implements in.EventSyncService.
type SyncService struct {
	selector      *RouteSelector
	attendees     *AttendeeResolver
	mapper        *EventMapper
	tokens        out.TokenProvider
	cloud         out.CloudCalendarPort
	onPrem        out.OnPremCalendarPort
	syncLog       out.SyncLogRepository
	telemetry     out.TelemetrySink
	defaultLocale string
	now           func() time.Time
}

func NewSyncService(deps Dependencies) *SyncService {
	return &SyncService{
		selector:      NewRouteSelector(deps.Directory),
		attendees:     NewAttendeeResolver(deps.Profiles),
		mapper:        NewEventMapper(deps.Localizer),
		tokens:        deps.Tokens,
		cloud:         deps.Cloud,
		onPrem:        deps.OnPrem,
		syncLog:       deps.SyncLog,
		telemetry:     deps.Telemetry,
		defaultLocale: deps.DefaultLocale,
		now:           time.Now,
	}
}

// operation carries the per-call state recorded when the call finishes.
type operation struct {
	kind      domain.SyncOperation
	actor     domain.Actor
	eventID   string
	route     domain.BackendRoute
	attendees []domain.Attendee
	backendID string
	started   time.Time
}

func (s *SyncService) begin(kind domain.SyncOperation, actor domain.Actor, rec *domain.EventRecord) *operation {
	op := &operation{kind: kind, actor: actor, started: s.now()}
	if rec != nil {
		op.eventID = rec.ID
	}
	return op
}

// CreateEvent creates the calendar event for rec in the actor's calendar and
// returns a copy of rec carrying the backend identifier.
func (s *SyncService) CreateEvent(ctx context.Context, actor domain.Actor, rec *domain.EventRecord) (*domain.EventRecord, error) {
	op := s.begin(domain.SyncOperationCreate, actor, rec)
	if rec == nil {
		return nil, s.finish(ctx, op, apperr.MappingPrecondition("event record is nil"))
	}
	if _, _, err := EventWindow(rec); err != nil {
		return nil, s.finish(ctx, op, err)
	}

	route, err := s.selector.ResolveRoute(ctx, actor.UserID)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	op.route = route

	var attendees []domain.Attendee
	if AttendeesOnCreate(rec) {
		if attendees, err = s.attendees.ResolveAttendees(ctx, rec); err != nil {
			return nil, s.finish(ctx, op, err)
		}
	}

	ev, err := s.mapper.MapToCalendarEvent(rec, attendees, s.locale(actor), MapForCreate)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	op.attendees = ev.Attendees

	var backendID string
	switch route {
	case domain.RouteOnPremises:
		backendID, err = s.createOnPrem(ctx, actor, rec, ev)
	default:
		backendID, err = s.createCloud(ctx, actor, ev)
	}
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}

	op.backendID = backendID
	s.finish(ctx, op, nil)

	result := *rec
	result.GraphEventID = backendID
	return &result, nil
}

func (s *SyncService) createCloud(ctx context.Context, actor domain.Actor, ev *domain.CalendarEvent) (string, error) {
	token, err := s.userToken(ctx, actor)
	if err != nil {
		return "", err
	}
	created, err := s.cloud.CreateEvent(ctx, token, ev)
	if err != nil {
		return "", asTransportError(backendGraph, "create", err)
	}
	return created.ID, nil
}

func (s *SyncService) createOnPrem(ctx context.Context, actor domain.Actor, rec *domain.EventRecord, ev *domain.CalendarEvent) (string, error) {
	mailbox, err := s.selector.Mailbox(ctx, actor.UserID)
	if err != nil {
		return "", err
	}

	if rec.Type == domain.EventTypeTeams {
		token, err := s.userToken(ctx, actor)
		if err != nil {
			return "", err
		}
		start, end, err := EventWindow(rec)
		if err != nil {
			return "", err
		}
		meeting, err := s.cloud.CreateOnlineMeeting(ctx, token, ev.Subject, start, end)
		if err != nil {
			return "", asTransportError(backendGraph, "create online meeting", err)
		}
		withMeeting := *ev
		withMeeting.Body = meeting.JoinContent
		ev = &withMeeting
	}

	session, err := s.onPrem.Connect(ctx, mailbox)
	if err != nil {
		return "", asTransportError(backendEWS, "connect", err)
	}
	itemID, err := session.CreateAppointment(ctx, ev)
	if err != nil {
		return "", asTransportError(backendEWS, "create", err)
	}
	return itemID, nil
}

// UpdateEvent overwrites the backend event of rec. Attendees are always
// recomputed from rec's current lists.
func (s *SyncService) UpdateEvent(ctx context.Context, actor domain.Actor, rec *domain.EventRecord) (*domain.EventRecord, error) {
	op := s.begin(domain.SyncOperationUpdate, actor, rec)
	if rec == nil {
		return nil, s.finish(ctx, op, apperr.MappingPrecondition("event record is nil"))
	}
	if _, _, err := EventWindow(rec); err != nil {
		return nil, s.finish(ctx, op, err)
	}
	if rec.GraphEventID == "" {
		return nil, s.finish(ctx, op, apperr.MappingPrecondition("event has no backend identifier"))
	}
	op.backendID = rec.GraphEventID

	route, err := s.selector.ResolveRoute(ctx, actor.UserID)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	op.route = route

	attendees, err := s.attendees.ResolveAttendees(ctx, rec)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}

	ev, err := s.mapper.MapToCalendarEvent(rec, attendees, s.locale(actor), MapForUpdate)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	op.attendees = ev.Attendees

	owner := eventOwner(actor, rec)
	switch route {
	case domain.RouteOnPremises:
		err = s.updateOnPrem(ctx, owner, rec.GraphEventID, ev)
	default:
		err = s.updateCloud(ctx, owner, rec.GraphEventID, ev)
	}
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}

	s.finish(ctx, op, nil)
	result := *rec
	return &result, nil
}

func (s *SyncService) updateCloud(ctx context.Context, owner, eventID string, ev *domain.CalendarEvent) error {
	token, err := s.appToken(ctx)
	if err != nil {
		return err
	}
	if _, err := s.cloud.UpdateEvent(ctx, token, owner, eventID, ev); err != nil {
		return asTransportError(backendGraph, "update", err)
	}
	return nil
}

func (s *SyncService) updateOnPrem(ctx context.Context, owner, itemID string, ev *domain.CalendarEvent) error {
	mailbox, err := s.selector.Mailbox(ctx, owner)
	if err != nil {
		return err
	}
	session, err := s.onPrem.Connect(ctx, mailbox)
	if err != nil {
		return asTransportError(backendEWS, "connect", err)
	}
	if err := session.UpdateAppointment(ctx, itemID, ev); err != nil {
		return asTransportError(backendEWS, "update", err)
	}
	return nil
}

// CancelEvent cancels (Graph) or deletes (EWS) the backend event of rec.
func (s *SyncService) CancelEvent(ctx context.Context, actor domain.Actor, rec *domain.EventRecord, comment string) (bool, error) {
	op := s.begin(domain.SyncOperationCancel, actor, rec)
	if rec == nil {
		return false, s.finish(ctx, op, apperr.MappingPrecondition("event record is nil"))
	}
	if rec.GraphEventID == "" {
		return false, s.finish(ctx, op, apperr.MappingPrecondition("event has no backend identifier"))
	}
	op.backendID = rec.GraphEventID

	route, err := s.selector.ResolveRoute(ctx, actor.UserID)
	if err != nil {
		return false, s.finish(ctx, op, err)
	}
	op.route = route

	owner := eventOwner(actor, rec)
	switch route {
	case domain.RouteOnPremises:
		err = s.deleteOnPrem(ctx, owner, rec.GraphEventID)
	default:
		err = s.cancelCloud(ctx, owner, rec.GraphEventID, comment)
	}
	if err != nil {
		return false, s.finish(ctx, op, err)
	}

	s.finish(ctx, op, nil)
	return true, nil
}

func (s *SyncService) cancelCloud(ctx context.Context, owner, eventID, comment string) error {
	token, err := s.appToken(ctx)
	if err != nil {
		return err
	}
	if err := s.cloud.CancelEvent(ctx, token, owner, eventID, comment); err != nil {
		return asTransportError(backendGraph, "cancel", err)
	}
	return nil
}

func (s *SyncService) deleteOnPrem(ctx context.Context, owner, itemID string) error {
	mailbox, err := s.selector.Mailbox(ctx, owner)
	if err != nil {
		return err
	}
	session, err := s.onPrem.Connect(ctx, mailbox)
	if err != nil {
		return asTransportError(backendEWS, "connect", err)
	}
	if err := session.DeleteAppointment(ctx, itemID); err != nil {
		return asTransportError(backendEWS, "delete", err)
	}
	return nil
}

// SyncHistory lists recorded outcomes for an event, newest first.
func (s *SyncService) SyncHistory(ctx context.Context, eventID string, limit int) ([]*domain.SyncLogEntry, error) {
	if s.syncLog == nil {
		return []*domain.SyncLogEntry{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.syncLog.ListByEvent(ctx, eventID, limit)
}

func (s *SyncService) userToken(ctx context.Context, actor domain.Actor) (*oauth2.Token, error) {
	token, err := s.tokens.UserToken(ctx, actor.UserID, actor.UserAssertion)
	if err != nil {
		return nil, asAuthError("on-behalf-of", err)
	}
	return token, nil
}

func (s *SyncService) appToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := s.tokens.AppToken(ctx)
	if err != nil {
		return nil, asAuthError("client-credentials", err)
	}
	return token, nil
}

func (s *SyncService) locale(actor domain.Actor) string {
	if actor.Locale != "" {
		return actor.Locale
	}
	return s.defaultLocale
}

// finish logs the outcome, writes the sync log and emits telemetry. It returns err.
func (s *SyncService) finish(ctx context.Context, op *operation, err error) error {
	elapsed := s.now().Sub(op.started)
	entry := &domain.SyncLogEntry{
		ID:             uuid.New(),
		EventID:        op.eventID,
		Operation:      op.kind,
		Route:          op.route,
		ActorID:        op.actor.UserID,
		Succeeded:      err == nil,
		BackendEventID: op.backendID,
		DurationMs:     elapsed.Milliseconds(),
		CreatedAt:      s.now().UTC(),
	}
	for _, a := range op.attendees {
		entry.Attendees = append(entry.Attendees, a.Email)
	}

	log := logger.WithContext(ctx).WithFields(map[string]any{
		"operation": op.kind,
		"event_id":  op.eventID,
		"route":     op.route,
	}).WithDuration(elapsed)

	if err != nil {
		appErr := apperr.AsAppError(err)
		entry.FailureCode = appErr.Code
		entry.FailureMessage = appErr.Error()
		log.WithError(err).WithField("failure_code", appErr.Code).Warn("[SyncService] %s failed", op.kind)
	} else {
		log.Info("[SyncService] %s succeeded", op.kind)
	}

	if s.syncLog != nil {
		if logErr := s.syncLog.Record(ctx, entry); logErr != nil {
			logger.WithContext(ctx).WithError(logErr).Error("[SyncService] failed to record sync log for %s", op.eventID)
		}
	}

	if s.telemetry != nil {
		s.telemetry.TrackEvent(ctx, "calendar."+string(op.kind), map[string]string{
			"event_id":     op.eventID,
			"route":        string(op.route),
			"succeeded":    strconv.FormatBool(err == nil),
			"failure_code": entry.FailureCode,
		}, map[string]float64{
			"duration_ms": float64(entry.DurationMs),
			"attendees":   float64(len(entry.Attendees)),
		})
	}

	return err
}

func eventOwner(actor domain.Actor, rec *domain.EventRecord) string {
	if rec.CreatedBy != "" {
		return rec.CreatedBy
	}
	return actor.UserID
}

func asTransportError(backend, operation string, err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return apperr.BackendTransportFailed(backend, operation, err)
}

func asAuthError(flow string, err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return apperr.AuthenticationFailed(flow, err)
}
