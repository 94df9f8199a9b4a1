package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/despachantemarcelino/hookd/internal/deliveries"
)

type DeliveryHandlers struct {
	store *deliveries.Store
}

func NewDeliveryHandlers(store *deliveries.Store) *DeliveryHandlers {
	return &DeliveryHandlers{store: store}
}

type DeliveryListResponse struct {
	Deliveries []*deliveries.Record `json:"deliveries"`
	Count      int                  `json:"count"`
}

type DeliveryStatsResponse struct {
	Events map[string]int `json:"events"`
	Total  int            `json:"total"`
}

// List handles GET /api/deliveries?event=&limit=&since=.
func (h *DeliveryHandlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := deliveries.ListOptions{Event: q.Get("event")}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			BadRequest(w, "limit must be a non-negative integer")
			return
		}
		opts.Limit = limit
	}

	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			BadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		opts.Since = since
	}

	records, err := h.store.List(r.Context(), opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list deliveries")
		InternalError(w, "failed to list deliveries")
		return
	}

	JSON(w, http.StatusOK, DeliveryListResponse{
		Deliveries: records,
		Count:      len(records),
	})
}

// Get handles GET /api/deliveries/{id}.
func (h *DeliveryHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	record, err := h.store.Get(r.Context(), id)
	if errors.Is(err, deliveries.ErrNotFound) {
		NotFound(w, "Delivery not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to get delivery")
		InternalError(w, "failed to get delivery")
		return
	}

	JSON(w, http.StatusOK, record)
}

// Stats handles GET /api/deliveries/stats.
func (h *DeliveryHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountByEvent(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to count deliveries")
		InternalError(w, "failed to count deliveries")
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	JSON(w, http.StatusOK, DeliveryStatsResponse{Events: counts, Total: total})
}
