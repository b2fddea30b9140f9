package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/stats"
)

// StatsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	// Weekly は対象ユーザーの週次集計を古い週から順に返す。
	Weekly(ctx context.Context, actor *model.User, targetUserID string, weeks int) ([]stats.WeekStat, error)
}

// StatsHandler は勤務時間集計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{service: service}
}

// weekStatResponse は週次集計のAPIレスポンス。
type weekStatResponse struct {
	WeekStart   time.Time `json:"week_start"`
	TotalHours  float64   `json:"total_hours"`
	BreakHours  float64   `json:"break_hours"`
	TargetHours float64   `json:"target_hours"`
	Sessions    int       `json:"sessions"`
}

// Weekly は週次集計を返す。
// クエリパラメータ: user_id（省略時は自分）、weeks（省略時は4）
// GET /api/stats/weekly
func (h *StatsHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	targetUserID := r.URL.Query().Get("user_id")
	if targetUserID == "" {
		targetUserID = actor.ID
	}
	weeks, _ := strconv.Atoi(r.URL.Query().Get("weeks"))

	weekStats, err := h.service.Weekly(r.Context(), actor, targetUserID, weeks)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]weekStatResponse, 0, len(weekStats))
	for _, ws := range weekStats {
		resp = append(resp, weekStatResponse{
			WeekStart:   ws.WeekStart,
			TotalHours:  ws.TotalHours,
			BreakHours:  ws.BreakHours,
			TargetHours: ws.TargetHours,
			Sessions:    ws.Sessions,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
