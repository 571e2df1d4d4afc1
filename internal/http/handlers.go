package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	redisadapter "github.com/robertarktes/concert-reservations/internal/adapters/redis"
	"github.com/robertarktes/concert-reservations/internal/concert"
	"github.com/robertarktes/concert-reservations/internal/config"
	"github.com/robertarktes/concert-reservations/internal/domain"
	"github.com/robertarktes/concert-reservations/internal/idempotency"
	"github.com/robertarktes/concert-reservations/internal/observability"
	"github.com/robertarktes/concert-reservations/internal/payment"
	"github.com/robertarktes/concert-reservations/internal/queue"
	"github.com/robertarktes/concert-reservations/internal/reservation"
)

const (
	seatCacheTTL    = 5 * time.Second
	concertCacheTTL = time.Minute
)

type Handlers struct {
	cfg          *config.Config
	tokens       *queue.Service
	reservations *reservation.Service
	payments     *payment.Service
	concerts     *concert.Service
	cache        *redisadapter.Cache
	idemp        *idempotency.Idempotency
	logger       observability.Logger
}

func NewHandlers(cfg *config.Config, tokens *queue.Service, reservations *reservation.Service, payments *payment.Service, concerts *concert.Service, cache *redisadapter.Cache, idemp *idempotency.Idempotency, logger observability.Logger) *Handlers {
	return &Handlers{
		cfg:          cfg,
		tokens:       tokens,
		reservations: reservations,
		payments:     payments,
		concerts:     concerts,
		cache:        cache,
		idemp:        idemp,
		logger:       logger,
	}
}

// writeError maps domain sentinels to the HTTP error taxonomy: not-found 404,
// conflict 409, expired 410, insufficient points 400, everything else a
// generic 500.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrConcertNotFound),
		errors.Is(err, domain.ErrSeatNotFound),
		errors.Is(err, domain.ErrReservationNotFound),
		errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody(err))
	case errors.Is(err, domain.ErrDuplicateToken),
		errors.Is(err, domain.ErrSeatNotAvailable),
		errors.Is(err, domain.ErrReservationAlreadyPaid),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrSerializationFailure):
		writeJSON(w, http.StatusConflict, errBody(err))
	case errors.Is(err, domain.ErrReservationExpired):
		writeJSON(w, http.StatusGone, errBody(err))
	case errors.Is(err, domain.ErrNotEnoughPoints),
		errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errBody(err))
	default:
		h.logger.Error("internal error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, body any) []byte {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func (h *Handlers) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.tokens.IssueToken(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (h *Handlers) GetTokenStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	info, err := h.tokens.GetTokenInfo(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":              info.Token,
		"status":             info.Status,
		"queue_order":        info.QueueOrder,
		"remaining_wait_sec": int64(info.RemainingWait.Seconds()),
	})
}

func (h *Handlers) CreateReservation(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id"`
		SeatID uuid.UUID `json:"seat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := h.reservations.CreateSeatReservation(r.Context(), req.UserID, req.SeatID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]any{
		"reservation_id": res.ID,
		"status":         res.Status,
		"expires_at":     res.ExpiresAt.Format(time.RFC3339),
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) Pay(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if existing, err := h.idemp.Get(r.Context(), key); err == nil && existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	var req struct {
		ReservationID uuid.UUID `json:"reservation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.payments.Pay(r.Context(), req.ReservationID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	data := writeJSON(w, http.StatusOK, map[string]any{
		"reservation_id": result.ReservationID,
		"seat_no":        result.SeatNo,
		"price":          result.Price,
		"status":         result.Status,
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusOK, Result: data})
}

func (h *Handlers) GetPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	points, err := h.payments.GetPoints(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "points": points})
}

func (h *Handlers) ChargePoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID uuid.UUID `json:"user_id"`
		Amount int64     `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	points, err := h.payments.ChargePoints(r.Context(), req.UserID, req.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": req.UserID, "points": points})
}

type concertView struct {
	ConcertID uuid.UUID `json:"concert_id"`
	Name      string    `json:"name"`
	Singer    string    `json:"singer"`
}

func (h *Handlers) Concerts(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "concerts"
	var cached []concertView
	if ok, err := h.cache.GetJSON(r.Context(), cacheKey, &cached); err == nil && ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	concerts, err := h.concerts.Concerts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]concertView, 0, len(concerts))
	for _, c := range concerts {
		views = append(views, concertView{ConcertID: c.ID, Name: c.Name, Singer: c.Singer})
	}
	if err := h.cache.SetJSON(r.Context(), cacheKey, views, concertCacheTTL); err != nil {
		h.logger.Warn("failed to cache concerts", err)
	}
	writeJSON(w, http.StatusOK, views)
}

type dateView struct {
	OptionID  uuid.UUID `json:"option_id"`
	Venue     string    `json:"venue"`
	ConcertAt string    `json:"concert_at"`
}

func (h *Handlers) AvailableDates(w http.ResponseWriter, r *http.Request) {
	concertID, err := uuid.Parse(chi.URLParam(r, "concertID"))
	if err != nil {
		http.Error(w, "invalid concert id", http.StatusBadRequest)
		return
	}

	options, err := h.concerts.AvailableDates(r.Context(), concertID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]dateView, 0, len(options))
	for _, opt := range options {
		views = append(views, dateView{
			OptionID:  opt.ID,
			Venue:     opt.Venue,
			ConcertAt: opt.ConcertAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type seatView struct {
	SeatID uuid.UUID `json:"seat_id"`
	SeatNo int       `json:"seat_no"`
	Price  int64     `json:"price"`
}

func (h *Handlers) AvailableSeats(w http.ResponseWriter, r *http.Request) {
	optionID, err := uuid.Parse(chi.URLParam(r, "optionID"))
	if err != nil {
		http.Error(w, "invalid concert option id", http.StatusBadRequest)
		return
	}

	cacheKey := "seats:" + optionID.String()
	var cached []seatView
	if ok, err := h.cache.GetJSON(r.Context(), cacheKey, &cached); err == nil && ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	seats, err := h.reservations.AvailableSeats(r.Context(), optionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]seatView, 0, len(seats))
	for _, seat := range seats {
		views = append(views, seatView{SeatID: seat.ID, SeatNo: seat.SeatNo, Price: seat.Price})
	}
	if err := h.cache.SetJSON(r.Context(), cacheKey, views, seatCacheTTL); err != nil {
		h.logger.Warn("failed to cache seats", err)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
