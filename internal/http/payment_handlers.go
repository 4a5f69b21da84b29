package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

type recordPaymentRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	p, err := s.Payments.RecordCash(r.Context(), mux.Vars(r)["ride_id"], req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	p, err := s.Payments.SendReceipt(r.Context(), mux.Vars(r)["payment_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"paymentId":     p.ID,
		"receiptSentAt": p.ReceiptSentAt,
	})
}
