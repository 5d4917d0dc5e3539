package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRecordRequest(t *testing.T) {
	RecordRequest("GET", "/test", 200, 100*time.Millisecond)
	RecordRequest("POST", "/test", 201, 50*time.Millisecond)
	RecordRequest("GET", "/test", 404, 10*time.Millisecond)
}

func TestRecordNotificationScheduled(t *testing.T) {
	RecordNotificationScheduled("chat", "immediate")
	RecordNotificationScheduled("medication", "daily")
	RecordNotificationScheduled("appointment", "after")
}

func TestRecordNotificationDelivered(t *testing.T) {
	RecordNotificationDelivered("chat")
	RecordNotificationDelivered("emergency")
}

func TestRecordHistoryDeduped(t *testing.T) {
	RecordHistoryDeduped()
	RecordHistoryDeduped()
}

func TestRecordHistoryEvicted(t *testing.T) {
	RecordHistoryEvicted(1)
	RecordHistoryEvicted(3)
}

func TestRecordPushRegistration(t *testing.T) {
	RecordPushRegistration("token")
	RecordPushRegistration("local_only")
	RecordPushRegistration("denied")
}

func TestRecordPushReport(t *testing.T) {
	RecordPushReport("ok")
	RecordPushReport("failed")
}

func TestRecordRemotePush(t *testing.T) {
	RecordRemotePush("ok")
	RecordRemotePush("endpoint_disabled")
	RecordRemotePush("failed")
}

func TestSetQueueMessagesInFlight(t *testing.T) {
	SetQueueMessagesInFlight(10)
	SetQueueMessagesInFlight(5)
	SetQueueMessagesInFlight(0)
}

func TestRecordRateLimitRejection(t *testing.T) {
	RecordRateLimitRejection("user:u1")
	RecordRateLimitRejection("ip:10.0.0.1")
}

func TestSetDBConnections(t *testing.T) {
	SetDBConnections(10)
	SetDBConnections(20)
}

func TestSetRedisConnections(t *testing.T) {
	SetRedisConnections(5)
	SetRedisConnections(10)
}

func TestHandler(t *testing.T) {
	handler := Handler()
	if handler == nil {
		t.Error("Handler should not return nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if len(body) == 0 {
		t.Error("metrics response should not be empty")
	}
}

func TestMiddleware(t *testing.T) {
	innerCalled := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		innerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	handler := Middleware(inner)
	req := httptest.NewRequest("POST", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !innerCalled {
		t.Error("inner handler should have been called")
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
}

func TestResponseWriter_DefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.Write([]byte("test"))

	if rw.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", rw.status)
	}
}

func TestResponseWriter_ExplicitStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}

	rw.WriteHeader(http.StatusNotFound)

	if rw.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rw.status)
	}
}
