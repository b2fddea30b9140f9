package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/timeentry"
)

// --- モック定義 ---

// mockEntryService はEntryServiceInterfaceのモック実装。
type mockEntryService struct {
	canStartFn    func(ctx context.Context, userID string) (bool, error)
	createFn      func(ctx context.Context, userID, entryType string, at time.Time, note string) (*model.TimeEntry, error)
	listFn        func(ctx context.Context, actor *model.User, targetUserID string) ([]*model.TimeEntry, error)
	listCompanyFn func(ctx context.Context, actor *model.User) ([]*model.TimeEntry, error)
	editFn        func(ctx context.Context, actor *model.User, entryID string, input timeentry.EditInput) (*model.TimeEntry, error)
	historyFn     func(ctx context.Context, actor *model.User, entryID string) ([]*model.TimeEntryEdit, error)
	deleteFn      func(ctx context.Context, actor *model.User, entryID string) error
}

func (m *mockEntryService) CanStart(ctx context.Context, userID string) (bool, error) {
	if m.canStartFn != nil {
		return m.canStartFn(ctx, userID)
	}
	return false, nil
}
func (m *mockEntryService) Create(ctx context.Context, userID, entryType string, at time.Time, note string) (*model.TimeEntry, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, entryType, at, note)
	}
	return nil, nil
}
func (m *mockEntryService) List(ctx context.Context, actor *model.User, targetUserID string) ([]*model.TimeEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor, targetUserID)
	}
	return nil, nil
}
func (m *mockEntryService) ListCompany(ctx context.Context, actor *model.User) ([]*model.TimeEntry, error) {
	if m.listCompanyFn != nil {
		return m.listCompanyFn(ctx, actor)
	}
	return nil, nil
}
func (m *mockEntryService) Edit(ctx context.Context, actor *model.User, entryID string, input timeentry.EditInput) (*model.TimeEntry, error) {
	if m.editFn != nil {
		return m.editFn(ctx, actor, entryID, input)
	}
	return nil, nil
}
func (m *mockEntryService) History(ctx context.Context, actor *model.User, entryID string) ([]*model.TimeEntryEdit, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, actor, entryID)
	}
	return nil, nil
}
func (m *mockEntryService) Delete(ctx context.Context, actor *model.User, entryID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, entryID)
	}
	return nil
}

// --- POST /api/entries テスト ---

func TestEntryHandler_Create_Success(t *testing.T) {
	svc := &mockEntryService{
		createFn: func(ctx context.Context, userID, entryType string, at time.Time, note string) (*model.TimeEntry, error) {
			if entryType != "START" {
				t.Errorf("entryType = %q, want START", entryType)
			}
			return &model.TimeEntry{ID: "entry-1", UserID: userID, Type: model.EntryTypeStart, Time: at}, nil
		},
	}

	h := NewEntryHandler(svc)

	body := `{"type": "START"}`
	req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Create(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got entryResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Type != "START" {
		t.Errorf("type = %q, want START", got.Type)
	}
}

func TestEntryHandler_Create_ExplicitTime_PassedThrough(t *testing.T) {
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc := &mockEntryService{
		createFn: func(ctx context.Context, userID, entryType string, at time.Time, note string) (*model.TimeEntry, error) {
			if !at.Equal(want) {
				t.Errorf("at = %v, want %v", at, want)
			}
			return &model.TimeEntry{ID: "entry-1", Type: model.EntryTypeStart, Time: at}, nil
		},
	}

	h := NewEntryHandler(svc)

	body := `{"type": "START", "time": "2026-03-02T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

func TestEntryHandler_Create_CannotStart_Returns409(t *testing.T) {
	svc := &mockEntryService{
		createFn: func(ctx context.Context, userID, entryType string, at time.Time, note string) (*model.TimeEntry, error) {
			return nil, model.NewCannotStartError()
		},
	}

	h := NewEntryHandler(svc)

	body := `{"type": "START"}`
	req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
}

func TestEntryHandler_Create_InvalidType_Returns400(t *testing.T) {
	svc := &mockEntryService{
		createFn: func(ctx context.Context, userID, entryType string, at time.Time, note string) (*model.TimeEntry, error) {
			return nil, model.NewInvalidEntryTypeError(entryType)
		},
	}

	h := NewEntryHandler(svc)

	body := `{"type": "PAUSE"}`
	req := httptest.NewRequest(http.MethodPost, "/api/entries", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// --- GET /api/entries/can-start テスト ---

func TestEntryHandler_CanStart_ReturnsFlag(t *testing.T) {
	svc := &mockEntryService{
		canStartFn: func(ctx context.Context, userID string) (bool, error) {
			return true, nil
		},
	}

	h := NewEntryHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/entries/can-start", nil)
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.CanStart(w, req)

	var got canStartResponse
	if err := json.NewDecoder(w.Result().Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !got.CanStart {
		t.Error("expected canStart = true")
	}
}

// --- PATCH /api/entries/{id} テスト ---

func TestEntryHandler_Edit_TypeChange_Returns409(t *testing.T) {
	svc := &mockEntryService{
		editFn: func(ctx context.Context, actor *model.User, entryID string, input timeentry.EditInput) (*model.TimeEntry, error) {
			return nil, model.NewTypeImmutableError()
		},
	}

	h := NewEntryHandler(svc)

	body := `{"type": "STOP", "reason": "typo"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/entries/entry-1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "entry-1")
	w := httptest.NewRecorder()

	h.Edit(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeTypeImmutable {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeTypeImmutable)
	}
}

// --- GET /api/entries/company テスト ---

func TestEntryHandler_ListCompany_Forbidden_Returns403(t *testing.T) {
	svc := &mockEntryService{
		listCompanyFn: func(ctx context.Context, actor *model.User) ([]*model.TimeEntry, error) {
			return nil, model.NewForbiddenError()
		},
	}

	h := NewEntryHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/entries/company", nil)
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.ListCompany(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}
