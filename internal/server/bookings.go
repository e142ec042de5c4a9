package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/knexpress/booking-capture/internal/store"
)

type bookingResponse struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type artifactResponse struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Size       int       `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

func toBookingResponse(b *store.Booking) bookingResponse {
	return bookingResponse{
		ID:        b.ID,
		Reference: b.Reference,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reference == "" {
		s.respondError(w, http.StatusBadRequest, "reference is required")
		return
	}

	b := &store.Booking{
		ID:        uuid.NewString(),
		Reference: req.Reference,
	}
	if err := s.config.Store.Bookings().Create(b); err != nil {
		s.logger.Error("failed to create booking", "error", err)
		s.respondError(w, http.StatusConflict, "could not create booking")
		return
	}

	s.respondJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (s *Server) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.config.Store.Bookings().List()
	if err != nil {
		s.logger.Error("failed to list bookings", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not list bookings")
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, toBookingResponse(b))
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.config.Store.Bookings().GetByID(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "booking not found")
			return
		}
		s.logger.Error("failed to get booking", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not get booking")
		return
	}

	s.respondJSON(w, http.StatusOK, toBookingResponse(b))
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	bookingID := r.PathValue("id")

	if _, err := s.config.Store.Bookings().GetByID(bookingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "booking not found")
			return
		}
		s.logger.Error("failed to get booking", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not get booking")
		return
	}

	artifacts, err := s.config.Store.Artifacts().ListByBooking(bookingID)
	if err != nil {
		s.logger.Error("failed to list artifacts", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not list artifacts")
		return
	}

	resp := make([]artifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		resp = append(resp, artifactResponse{
			ID:         a.ID,
			Kind:       a.Kind,
			Label:      a.Label,
			Confidence: a.Confidence,
			Size:       len(a.Data),
			CreatedAt:  a.CreatedAt,
		})
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleArtifactImage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid artifact id")
		return
	}

	a, err := s.config.Store.Artifacts().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "artifact not found")
			return
		}
		s.logger.Error("failed to get artifact", "error", err)
		s.respondError(w, http.StatusInternalServerError, "could not get artifact")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Write(a.Data)
}
