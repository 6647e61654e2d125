package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mact/ops-server/internal/domain"
	"github.com/mact/ops-server/internal/pkg/httputil"
	"github.com/mact/ops-server/internal/pkg/logger"
	"github.com/mact/ops-server/internal/service/outreach"
)

type dashboardResponse struct {
	Stats *domain.DashboardStats `json:"stats"`

	// Nil when the corresponding integration is not connected.
	Revenue30D *float64 `json:"revenue_30d"`
	AdSpend30D *float64 `json:"ad_spend_30d"`

	GeneratedAt time.Time `json:"generated_at"`
	Cached      bool      `json:"cached"`
}

// Dashboard returns tenant-wide aggregates combined with store revenue and
// ad spend, cached briefly since the external reports are slow.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := tenantID(r)
	cacheKey := "dashboard:" + tenant

	if h.deps.Cache != nil {
		raw, err := h.deps.Cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var cached dashboardResponse
			if json.Unmarshal([]byte(raw), &cached) == nil {
				cached.Cached = true
				httputil.OK(w, cached)
				return
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Warn("dashboard cache read failed", "error", err.Error())
		}
	}

	stats, err := h.deps.Stats.DashboardStats(ctx, tenant)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := dashboardResponse{
		Stats:       stats,
		Revenue30D:  h.revenue30d(ctx),
		AdSpend30D:  h.adSpend30d(ctx),
		GeneratedAt: time.Now().UTC(),
	}

	if h.deps.Cache != nil {
		if raw, err := json.Marshal(resp); err == nil {
			if err := h.deps.Cache.Set(ctx, cacheKey, raw, h.cfg.CacheTTL).Err(); err != nil {
				logger.Warn("dashboard cache write failed", "error", err.Error())
			}
		}
	}
	httputil.OK(w, resp)
}

func (h *Handlers) revenue30d(ctx context.Context) *float64 {
	if h.deps.Revenue == nil {
		return nil
	}
	v, err := h.deps.Revenue.RevenueLastDays(ctx, 30)
	if err != nil {
		if !errors.Is(err, outreach.ErrNotConnected) {
			logger.Warn("dashboard revenue fetch failed", "error", err.Error())
		}
		return nil
	}
	return &v
}

func (h *Handlers) adSpend30d(ctx context.Context) *float64 {
	if h.deps.Spend == nil {
		return nil
	}
	v, err := h.deps.Spend.SpendLastDays(ctx, 30)
	if err != nil {
		if !errors.Is(err, outreach.ErrNotConnected) {
			logger.Warn("dashboard ad spend fetch failed", "error", err.Error())
		}
		return nil
	}
	return &v
}
