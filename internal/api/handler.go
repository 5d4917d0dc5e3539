package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spacey6849/palliative-care-app/internal/circuitbreaker"
	"github.com/Spacey6849/palliative-care-app/internal/db"
	"github.com/Spacey6849/palliative-care-app/internal/dispatch"
	"github.com/Spacey6849/palliative-care-app/internal/history"
	"github.com/Spacey6849/palliative-care-app/internal/notify"
	"github.com/Spacey6849/palliative-care-app/internal/platform"
	"github.com/Spacey6849/palliative-care-app/internal/push"
	"github.com/Spacey6849/palliative-care-app/internal/redis"
	"github.com/Spacey6849/palliative-care-app/internal/schedule"
	"github.com/Spacey6849/palliative-care-app/internal/sqs"
	"github.com/Spacey6849/palliative-care-app/internal/worker"
)

// DeviceTokenStore defines the interface for device token database operations
type DeviceTokenStore interface {
	Upsert(ctx context.Context, dt *db.DeviceToken) error
	ListActiveByUser(ctx context.Context, userID string) ([]*db.DeviceToken, error)
	SetEndpointARN(ctx context.Context, id uuid.UUID, arn string) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

// EndpointCreator binds a device token to a platform application endpoint at
// registration time.
type EndpointCreator interface {
	CreateEndpoint(ctx context.Context, deviceType, token string) (string, error)
}

// Enqueuer fans a remote push out to the delivery queue, one job per device.
type Enqueuer interface {
	EnqueueForTokens(ctx context.Context, tokens []*db.DeviceToken, category, title, body string, data map[string]any) ([]string, error)
}

// RegisterTokenRequest is the body the mobile client posts after obtaining a
// push token. Field names follow the client's JSON convention.
type RegisterTokenRequest struct {
	Token      string `json:"token"`
	DeviceType string `json:"deviceType"`
}

// RegisterTokenResponse acknowledges a token registration. The client only
// inspects the success flag.
type RegisterTokenResponse struct {
	Success bool `json:"success"`
}

// ScheduleRequest schedules an arbitrary local notification.
type ScheduleRequest struct {
	Category string         `json:"category"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
	Trigger  notify.Trigger `json:"trigger"`
}

// ScheduleResponse carries the platform identifier of a scheduled notification.
type ScheduleResponse struct {
	ID string `json:"id"`
}

// ChatRequest fires a chat message notification.
type ChatRequest struct {
	SenderName     string `json:"senderName"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// AppointmentRequest schedules an appointment reminder.
type AppointmentRequest struct {
	Title         string    `json:"title"`
	At            time.Time `json:"at"`
	MinutesBefore int       `json:"minutesBefore"`
}

// MedicationRequest schedules a medication reminder: one-shot when at is set,
// recurring daily when hour and minute are set.
type MedicationRequest struct {
	Name   string     `json:"name"`
	Dosage string     `json:"dosage"`
	At     *time.Time `json:"at,omitempty"`
	Hour   *int       `json:"hour,omitempty"`
	Minute *int       `json:"minute,omitempty"`
}

// EmergencyRequest fires an emergency alert.
type EmergencyRequest struct {
	PatientName string `json:"patientName"`
	AlertType   string `json:"alertType"`
}

// SendPushRequest pushes a notification to another user's devices. Restricted
// to care-team roles.
type SendPushRequest struct {
	UserID   string         `json:"userId"`
	Category string         `json:"category"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Data     map[string]any `json:"data,omitempty"`
}

// HistoryRecordView decorates a history record with its display timestamp.
type HistoryRecordView struct {
	history.Record
	RelativeTime string `json:"relative_time"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Deps bundles the collaborators the handler routes to. Endpoints, Producer
// and Pusher are nil when the corresponding AWS pieces are not configured;
// the handlers degrade instead of failing.
type Deps struct {
	Platform   platform.Platform
	Registrar  *push.Registrar
	Scheduler  *schedule.Scheduler
	History    *history.Store
	Dispatcher *dispatch.Dispatcher
	Tokens     DeviceTokenStore
	Endpoints  EndpointCreator
	Producer   Enqueuer
	Pusher     worker.Pusher
	DB         *db.DB
	Redis      *redis.Client
	Breakers   []*circuitbreaker.CircuitBreaker
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger     *zap.Logger
	platform   platform.Platform
	registrar  *push.Registrar
	scheduler  *schedule.Scheduler
	history    *history.Store
	dispatcher *dispatch.Dispatcher
	tokens     DeviceTokenStore
	endpoints  EndpointCreator
	producer   Enqueuer
	pusher     worker.Pusher
	database   *db.DB
	cache      *redis.Client
	breakers   []*circuitbreaker.CircuitBreaker
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	return &Handler{
		logger:     logger,
		platform:   deps.Platform,
		registrar:  deps.Registrar,
		scheduler:  deps.Scheduler,
		history:    deps.History,
		dispatcher: deps.Dispatcher,
		tokens:     deps.Tokens,
		endpoints:  deps.Endpoints,
		producer:   deps.Producer,
		pusher:     deps.Pusher,
		database:   deps.DB,
		cache:      deps.Redis,
		breakers:   deps.Breakers,
	}
}

// RegisterDeviceToken handles POST /api/notifications/register. This is the
// path the mobile client reports tokens to; the response shape is fixed to
// {"success": bool} because the client treats any non-2xx or success=false as
// a soft failure and carries on.
func (h *Handler) RegisterDeviceToken(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.Token == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "token is required")
		return
	}
	switch req.DeviceType {
	case db.DeviceIOS, db.DeviceAndroid, db.DeviceWeb:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid device type",
			"deviceType must be one of: ios, android, web")
		return
	}

	// Local-only markers are stored for visibility but never become fan-out
	// targets.
	localOnly := push.IsLocalOnlyWire(req.Token)
	dt := &db.DeviceToken{
		UserID:     sess.UserID,
		Token:      req.Token,
		DeviceType: req.DeviceType,
		Active:     !localOnly,
	}
	if err := h.tokens.Upsert(r.Context(), dt); err != nil {
		h.logger.Error("storing device token failed",
			zap.String("user_id", sess.UserID),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "registration_failed", "Failed to register device token", "")
		return
	}

	if h.endpoints != nil && !localOnly {
		arn, err := h.endpoints.CreateEndpoint(r.Context(), dt.DeviceType, dt.Token)
		if err != nil {
			h.logger.Warn("creating platform endpoint failed, worker will retry on first push",
				zap.String("user_id", sess.UserID),
				zap.String("device_type", dt.DeviceType),
				zap.Error(err))
		} else if err := h.tokens.SetEndpointARN(r.Context(), dt.ID, arn); err != nil {
			h.logger.Warn("recording endpoint arn failed",
				zap.String("token_id", dt.ID.String()),
				zap.Error(err))
		}
	}

	h.logger.Info("device token registered",
		zap.String("user_id", sess.UserID),
		zap.String("device_type", req.DeviceType),
		zap.Bool("local_only", localOnly))
	h.writeJSON(w, http.StatusOK, RegisterTokenResponse{Success: true})
}

// UnregisterDeviceTokens handles DELETE /v1/notifications/push/register,
// removing every device token the user has registered (sign out everywhere).
func (h *Handler) UnregisterDeviceTokens(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	removed, err := h.tokens.DeleteByUser(r.Context(), sess.UserID)
	if err != nil {
		h.logger.Error("removing device tokens failed",
			zap.String("user_id", sess.UserID),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "unregister_failed", "Failed to remove device tokens", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "unregistered",
		"removed": removed,
	})
}

// RegisterPush handles POST /v1/notifications/push/register: run the full
// registration flow (permission, channels, token) and report the result to
// the care backend on behalf of the session user.
func (h *Handler) RegisterPush(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	token := h.registrar.Register(r.Context())
	reported := false
	if !token.IsZero() {
		reported = h.registrar.ReportToken(r.Context(), sess.UserID, SessionTokenFromContext(r.Context()))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"token":      token.String(),
		"local_only": token.IsLocalOnly(),
		"reported":   reported,
	})
}

// PushStatus handles GET /v1/notifications/push/status.
func (h *Handler) PushStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.platform.PermissionStatus(r.Context())
	if err != nil {
		h.logger.Warn("reading notification permission failed", zap.Error(err))
		status = platform.PermissionUndetermined
	}
	token := h.registrar.CachedToken()

	h.writeJSON(w, http.StatusOK, map[string]any{
		"permission": string(status),
		"granted":    status.Granted(),
		"token":      token.String(),
		"local_only": token.IsLocalOnly(),
	})
}

// ListHistory handles GET /v1/notifications/history, most recent first.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	records := h.history.Load(r.Context(), sess.UserID)
	now := time.Now()
	views := make([]HistoryRecordView, len(records))
	for i, rec := range records {
		views[i] = HistoryRecordView{
			Record:       rec,
			RelativeTime: history.RelativeTime(now, rec.ReceivedAt),
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":  views,
		"count": len(views),
	})
}

// MarkHistoryRead handles POST /v1/notifications/history/{id}/read.
// Marking an already read record succeeds; an unknown record is a 404.
func (h *Handler) MarkHistoryRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing notification ID", "")
		return
	}

	if !h.history.MarkRead(r.Context(), sess.UserID, id) {
		h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": "read",
	})
}

// OpenHistory handles POST /v1/notifications/history/{id}/open: the record is
// marked read and resolved to the screen the client should navigate to.
func (h *Handler) OpenHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing notification ID", "")
		return
	}

	var rec *history.Record
	for _, cand := range h.history.Load(r.Context(), sess.UserID) {
		if cand.ID == id {
			rec = &cand
			break
		}
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "Notification not found", "")
		return
	}

	dest := h.dispatcher.Tapped(r.Context(), sess.UserID, *rec)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"id":          id,
		"destination": string(dest),
	})
}

// ClearHistory handles DELETE /v1/notifications/history.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	h.history.ClearAll(r.Context(), sess.UserID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ScheduleNotification handles POST /v1/notifications/schedule. An absent
// trigger means fire immediately; a sub-second delay is floored to one second
// the same way the semantic builders floor it.
func (h *Handler) ScheduleNotification(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.Title == "" && req.Body == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "title or body is required")
		return
	}

	trigger := req.Trigger
	if trigger.Kind == "" {
		trigger = notify.Immediate()
	}
	if trigger.Kind == notify.TriggerAfter && trigger.Seconds < 1 {
		trigger = notify.AfterSeconds(trigger.Seconds)
	}
	if err := trigger.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid trigger", err.Error())
		return
	}

	id := h.scheduler.Schedule(r.Context(), sess.UserID, notify.Notification{
		Category: notify.ParseCategory(req.Category),
		Title:    req.Title,
		Body:     req.Body,
		Data:     req.Data,
	}, trigger)
	if id == "" {
		h.writeError(w, http.StatusInternalServerError, "schedule_failed", "Failed to schedule notification", "")
		return
	}

	h.writeJSON(w, http.StatusCreated, ScheduleResponse{ID: id})
}

// SendChat handles POST /v1/notifications/chat.
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.SenderName == "" || req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "senderName and message are required")
		return
	}

	id := h.scheduler.SendChat(r.Context(), sess.UserID, req.SenderName, req.Message, req.ConversationID)
	if id == "" {
		h.writeError(w, http.StatusInternalServerError, "schedule_failed", "Failed to schedule notification", "")
		return
	}
	h.writeJSON(w, http.StatusCreated, ScheduleResponse{ID: id})
}

// SendAppointment handles POST /v1/notifications/appointments.
func (h *Handler) SendAppointment(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.Title == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "title is required")
		return
	}
	if req.At.IsZero() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "at is required (RFC 3339)")
		return
	}

	id := h.scheduler.SendAppointment(r.Context(), sess.UserID, req.Title, req.At, req.MinutesBefore)
	if id == "" {
		h.writeError(w, http.StatusInternalServerError, "schedule_failed", "Failed to schedule notification", "")
		return
	}
	h.writeJSON(w, http.StatusCreated, ScheduleResponse{ID: id})
}

// SendMedication handles POST /v1/notifications/medications. The body picks
// the shape: at for a one-shot reminder, hour and minute for a daily one.
func (h *Handler) SendMedication(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	var req MedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.Name == "" || req.Dosage == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "name and dosage are required")
		return
	}

	var id string
	switch {
	case req.At != nil:
		id = h.scheduler.SendMedication(r.Context(), sess.UserID, req.Name, req.Dosage, *req.At)
	case req.Hour != nil && req.Minute != nil:
		if err := notify.DailyAt(*req.Hour, *req.Minute).Validate(); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid schedule", err.Error())
			return
		}
		id = h.scheduler.ScheduleDailyMedication(r.Context(), sess.UserID, req.Name, req.Dosage, *req.Hour, *req.Minute)
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing schedule",
			"provide either at, or hour and minute")
		return
	}
	if id == "" {
		h.writeError(w, http.StatusInternalServerError, "schedule_failed", "Failed to schedule notification", "")
		return
	}
	h.writeJSON(w, http.StatusCreated, ScheduleResponse{ID: id})
}

// SendEmergency handles POST /v1/notifications/emergency.
func (h *Handler) SendEmergency(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	var req EmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.PatientName == "" || req.AlertType == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "patientName and alertType are required")
		return
	}

	id := h.scheduler.SendEmergency(r.Context(), sess.UserID, req.PatientName, req.AlertType)
	if id == "" {
		h.writeError(w, http.StatusInternalServerError, "schedule_failed", "Failed to schedule notification", "")
		return
	}
	h.writeJSON(w, http.StatusCreated, ScheduleResponse{ID: id})
}

// ListScheduled handles GET /v1/notifications/scheduled.
func (h *Handler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	pending := h.scheduler.Pending(r.Context(), sess.UserID)
	if pending == nil {
		pending = []platform.Pending{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":  pending,
		"count": len(pending),
	})
}

// CancelScheduled handles DELETE /v1/notifications/scheduled/{id}. Cancelling
// an unknown, fired, or foreign identifier is a no-op; the response does not
// reveal whether the identifier existed.
func (h *Handler) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing notification ID", "")
		return
	}

	for _, p := range h.scheduler.Pending(r.Context(), sess.UserID) {
		if p.ID == id {
			h.scheduler.Cancel(r.Context(), id)
			break
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": "cancelled",
	})
}

// CancelAllScheduled handles DELETE /v1/notifications/scheduled.
func (h *Handler) CancelAllScheduled(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "unauthenticated", "Missing session", "")
		return
	}

	h.scheduler.CancelAll(r.Context(), sess.UserID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// SendPush handles POST /v1/notifications/push/send. The notification lands
// in the target user's history first (with chat dedup applied), then fans out
// to their active devices: through the queue when one is configured, else
// synchronously through the pusher.
func (h *Handler) SendPush(w http.ResponseWriter, r *http.Request) {
	var req SendPushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return
	}
	if req.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "userId is required")
		return
	}
	if req.Title == "" || req.Body == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing required field", "title and body are required")
		return
	}

	category := notify.ParseCategory(req.Category)
	data := make(map[string]any, len(req.Data)+1)
	for k, v := range req.Data {
		data[k] = v
	}
	if notify.StringField(data, "category") == "" {
		data["category"] = string(category)
	}

	rec := h.dispatcher.Received(r.Context(), req.UserID, history.Incoming{
		ID:    uuid.NewString(),
		Title: req.Title,
		Body:  req.Body,
		Data:  data,
	})

	tokens, err := h.tokens.ListActiveByUser(r.Context(), req.UserID)
	if err != nil {
		h.logger.Error("listing device tokens failed",
			zap.String("user_id", req.UserID),
			zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "push_failed", "Failed to resolve target devices", "")
		return
	}

	switch {
	case h.producer != nil:
		ids, err := h.producer.EnqueueForTokens(r.Context(), tokens, string(category), req.Title, req.Body, data)
		if err != nil {
			h.logger.Error("enqueueing push jobs failed",
				zap.String("user_id", req.UserID),
				zap.Error(err))
			h.writeError(w, http.StatusInternalServerError, "push_failed", "Failed to enqueue push", "")
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]any{
			"record_id": rec.ID,
			"devices":   len(tokens),
			"queued":    len(ids),
		})

	case h.pusher != nil:
		delivered := 0
		for _, dt := range tokens {
			msg := &sqs.Message{
				UserID:     dt.UserID,
				TokenID:    dt.ID.String(),
				DeviceType: dt.DeviceType,
				Category:   string(category),
				Title:      req.Title,
				Body:       req.Body,
				Data:       data,
				EnqueuedAt: time.Now().UnixNano(),
			}
			if dt.EndpointARN != nil {
				msg.EndpointARN = *dt.EndpointARN
			}
			if err := h.pusher.Push(r.Context(), msg); err != nil {
				h.logger.Warn("synchronous push failed",
					zap.String("user_id", dt.UserID),
					zap.String("token_id", dt.ID.String()),
					zap.Error(err))
				continue
			}
			delivered++
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"record_id": rec.ID,
			"devices":   len(tokens),
			"delivered": delivered,
		})

	default:
		h.logger.Info("remote push disabled, notification recorded only",
			zap.String("user_id", req.UserID))
		h.writeJSON(w, http.StatusOK, map[string]any{
			"record_id": rec.ID,
			"devices":   len(tokens),
			"queued":    0,
		})
	}
}

// HealthDetailed reports per-dependency health plus circuit breaker state.
// Degraded dependencies yield a 503 so load balancers can rotate the
// instance out while local scheduling keeps running.
func (h *Handler) HealthDetailed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string)

	if h.database != nil {
		if err := h.database.Health(ctx); err != nil {
			checks["postgres"] = "unavailable"
			status = "degraded"
		} else {
			checks["postgres"] = "ok"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
			status = "degraded"
		} else {
			checks["redis"] = "ok"
		}
	}

	breakers := make(map[string]circuitbreaker.Stats, len(h.breakers))
	for _, cb := range h.breakers {
		breakers[cb.Name()] = cb.Stats()
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, map[string]any{
		"status":   status,
		"checks":   checks,
		"breakers": breakers,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes a problem+json error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	resp := ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}
