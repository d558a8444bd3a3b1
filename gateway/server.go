package gateway

import (
	"errors"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dagora/gateway/middleware"
	"dagora/native/dispute"
	"dagora/native/listing"
	"dagora/native/market"
	"dagora/native/order"
	"dagora/native/stake"
	"dagora/state"
)

// Config carries the collaborators the HTTP surface exposes.
type Config struct {
	Ledger        *state.Manager
	Stake         *stake.Engine
	Listings      *listing.Engine
	Orders        *order.Engine
	Disputes      *dispute.Engine
	Logger        *slog.Logger
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
}

// Server exposes the marketplace engines over a JSON HTTP API.
type Server struct {
	cfg Config
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg}
}

// Router assembles the chi routing tree with the gateway middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.cfg.RateLimiter != nil {
		r.Use(s.cfg.RateLimiter.Middleware())
	}
	obs := s.cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/accounts/{addr}", s.handleGetAccount)

		v1.Post("/stake", s.handleStake)
		v1.Post("/stake/unstake", s.handleUnstake)
		v1.Get("/stake/{addr}", s.handleGetStake)

		v1.Post("/listings", s.handleListingCreate)
		v1.Put("/listings", s.handleListingUpdate)
		v1.Post("/listings/cancel", s.handleListingCancel)
		v1.Post("/listings/report", s.handleListingReport)
		v1.Get("/listings/{hash}", s.handleGetListing)

		v1.Post("/orders", s.handleOrderCreate)
		v1.Post("/orders/cancel", s.orderAction(func(caller [20]byte, o *market.Order) error {
			return s.cfg.Orders.Cancel(caller, o)
		}))
		v1.Post("/orders/accept", s.orderAction(func(caller [20]byte, o *market.Order) error {
			return s.cfg.Orders.Accept(caller, o)
		}))
		v1.Post("/orders/confirm", s.orderAction(func(caller [20]byte, o *market.Order) error {
			return s.cfg.Orders.ConfirmReceipt(caller, o)
		}))
		v1.Post("/orders/warranty/claim", s.orderAction(func(caller [20]byte, o *market.Order) error {
			return s.cfg.Orders.ClaimWarranty(caller, o)
		}))
		v1.Post("/orders/warranty/confirm", s.orderAction(func(caller [20]byte, o *market.Order) error {
			return s.cfg.Orders.ConfirmWarrantyReceipt(caller, o)
		}))
		v1.Post("/orders/execute", s.orderAction(func(caller [20]byte, o *market.Order) error {
			return s.cfg.Orders.Execute(caller, o)
		}))
		v1.Post("/orders/refund", s.handleOrderRefund)
		v1.Post("/orders/dispute", s.handleOrderDispute)
		v1.Post("/orders/warranty/dispute", s.handleWarrantyDispute)
		v1.Get("/orders/{hash}", s.handleGetOrder)

		v1.Post("/disputes/{id}/fee", s.handleDisputeFee)
		v1.Post("/disputes/{id}/timeout", s.handleDisputeTimeout)
		v1.Post("/disputes/{id}/rule", s.handleDisputeRule)
		v1.Post("/disputes/{id}/evidence", s.handleDisputeEvidence)
		v1.Post("/disputes/{id}/appeal", s.handleDisputeAppeal)
		v1.Get("/disputes/{id}", s.handleGetDispute)
	})

	return r
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, order.ErrNotBuyer),
		errors.Is(err, order.ErrNotSeller),
		errors.Is(err, order.ErrNotParty),
		errors.Is(err, listing.ErrNotSeller),
		errors.Is(err, dispute.ErrNotParty),
		errors.Is(err, dispute.ErrNotArbitrator),
		errors.Is(err, stake.ErrNotOperator),
		errors.Is(err, stake.ErrNotAuthority):
		status = http.StatusForbidden
	case errors.Is(err, dispute.ErrNoDispute):
		status = http.StatusNotFound
	case errors.Is(err, order.ErrOrderProcessed),
		errors.Is(err, dispute.ErrDisputeExists),
		errors.Is(err, dispute.ErrAlreadyCreated),
		errors.Is(err, dispute.ErrAlreadyResolved):
		status = http.StatusConflict
	case errors.Is(err, order.ErrInvalidOrder),
		errors.Is(err, order.ErrInvalidPhase),
		errors.Is(err, order.ErrNotWaitingSeller),
		errors.Is(err, order.ErrTimeoutNotPassed),
		errors.Is(err, order.ErrConfirmationTimedOut),
		errors.Is(err, order.ErrWarrantyTimedOut),
		errors.Is(err, order.ErrRefundBelowCashback),
		errors.Is(err, order.ErrRefundAboveAvailable),
		errors.Is(err, order.ErrRefundDecreased),
		errors.Is(err, listing.ErrInsufficientStake),
		errors.Is(err, listing.ErrCancelled),
		errors.Is(err, listing.ErrExpired),
		errors.Is(err, listing.ErrInDispute),
		errors.Is(err, listing.ErrSelfReport),
		errors.Is(err, dispute.ErrFeeTooLow),
		errors.Is(err, dispute.ErrNotCreated),
		errors.Is(err, dispute.ErrNotWaitingParty),
		errors.Is(err, dispute.ErrTimeoutNotElapsed),
		errors.Is(err, stake.ErrInsufficientUnlockedStake),
		errors.Is(err, stake.ErrInsufficientLockedStake),
		errors.Is(err, stake.ErrTransferFailed),
		errors.Is(err, order.ErrTransferFailed),
		errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, state.ErrInvalidAmount):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.cfg.Logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	acc, err := s.cfg.Ledger.Account(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	tokens := make(map[string]string, len(acc.Tokens))
	for token, balance := range acc.Tokens {
		tokens["0x"+token] = balance.String()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": encodeAddress(addr),
		"coin":    acc.BalanceCoin.String(),
		"tokens":  tokens,
	})
}

type stakeRequest struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	s.stakeAction(w, r, s.cfg.Stake.Stake)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	s.stakeAction(w, r, s.cfg.Stake.Unstake)
}

func (s *Server) stakeAction(w http.ResponseWriter, r *http.Request, fn func([20]byte, *big.Int) error) {
	var req stakeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := fn(caller, amount); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetStake(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	balance, err := s.cfg.Stake.BalanceOf(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	locked, err := s.cfg.Stake.LockedOf(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":   encodeAddress(addr),
		"balance": balance.String(),
		"locked":  locked.String(),
	})
}

type listingRequest struct {
	Caller     string         `json:"caller"`
	Listing    listingPayload `json:"listing"`
	Quantity   uint64         `json:"quantity"`
	FeePayment string         `json:"feePayment,omitempty"`
}

func (s *Server) handleListingCreate(w http.ResponseWriter, r *http.Request) {
	s.listingUpsert(w, r, s.cfg.Listings.Create)
}

func (s *Server) handleListingUpdate(w http.ResponseWriter, r *http.Request) {
	s.listingUpsert(w, r, s.cfg.Listings.Update)
}

func (s *Server) listingUpsert(w http.ResponseWriter, r *http.Request, fn func([20]byte, market.Listing, uint64) ([32]byte, error)) {
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	l, err := req.Listing.toListing()
	if err != nil {
		s.badRequest(w, err)
		return
	}
	hash, err := fn(caller, l, req.Quantity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hash": encodeHash(hash)})
}

func (s *Server) handleListingCancel(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	l, err := req.Listing.toListing()
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.cfg.Listings.Cancel(caller, l); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListingReport(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	l, err := req.Listing.toListing()
	if err != nil {
		s.badRequest(w, err)
		return
	}
	fee, err := parseAmount(req.FeePayment)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.cfg.Listings.Report(caller, l, fee); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(chi.URLParam(r, "hash"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	rec, ok := s.cfg.Listings.Get(hash)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "listing not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hash":      encodeHash(rec.Hash),
		"approved":  rec.Approved,
		"cancelled": rec.Cancelled,
		"quantity":  rec.Quantity,
		"reported":  rec.Reported,
	})
}

type orderRequest struct {
	Caller     string       `json:"caller"`
	Order      orderPayload `json:"order"`
	Refund     string       `json:"refund,omitempty"`
	FeePayment string       `json:"feePayment,omitempty"`
}

func (req orderRequest) decode() ([20]byte, *market.Order, error) {
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return [20]byte{}, nil, err
	}
	o, err := req.Order.toOrder()
	if err != nil {
		return [20]byte{}, nil, err
	}
	return caller, o, nil
}

func (s *Server) handleOrderCreate(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, o, err := req.decode()
	if err != nil {
		s.badRequest(w, err)
		return
	}
	hash, err := s.cfg.Orders.Create(caller, o)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hash": encodeHash(hash)})
}

func (s *Server) orderAction(fn func([20]byte, *market.Order) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderRequest
		if err := decodeJSON(r, &req); err != nil {
			s.badRequest(w, err)
			return
		}
		caller, o, err := req.decode()
		if err != nil {
			s.badRequest(w, err)
			return
		}
		if err := fn(caller, o); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleOrderRefund(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, o, err := req.decode()
	if err != nil {
		s.badRequest(w, err)
		return
	}
	refund, err := parseAmount(req.Refund)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.cfg.Orders.UpdateRefund(caller, o, refund); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleOrderDispute(w http.ResponseWriter, r *http.Request) {
	s.orderDispute(w, r, s.cfg.Orders.DisputeOrder)
}

func (s *Server) handleWarrantyDispute(w http.ResponseWriter, r *http.Request) {
	s.orderDispute(w, r, s.cfg.Orders.DisputeWarranty)
}

func (s *Server) orderDispute(w http.ResponseWriter, r *http.Request, fn func([20]byte, *market.Order, *big.Int) error) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, o, err := req.decode()
	if err != nil {
		s.badRequest(w, err)
		return
	}
	fee, err := parseAmount(req.FeePayment)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := fn(caller, o, fee); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	hash, err := parseHash(chi.URLParam(r, "hash"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	tx, ok := s.cfg.Orders.Get(hash)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hash":             encodeHash(tx.Hash),
		"status":           tx.Status,
		"lastStatusUpdate": tx.LastStatusUpdate,
		"refund":           tx.Refund.String(),
	})
}

type disputeRequest struct {
	Caller   string `json:"caller"`
	Payment  string `json:"payment,omitempty"`
	Ruling   uint8  `json:"ruling,omitempty"`
	Evidence string `json:"evidence,omitempty"`
}

func (s *Server) handleDisputeFee(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var req disputeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	payment, err := parseAmount(req.Payment)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.cfg.Disputes.PayArbitrationFee(id, caller, payment); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDisputeTimeout(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.cfg.Disputes.Timeout(id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDisputeRule(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var req disputeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.cfg.Disputes.Rule(id, caller, dispute.Ruling(req.Ruling)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDisputeEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var req disputeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.cfg.Disputes.SubmitEvidence(id, caller, []byte(req.Evidence)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDisputeAppeal(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	var req disputeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.cfg.Disputes.Appeal(id, caller); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	id, err := parseHash(chi.URLParam(r, "id"))
	if err != nil {
		s.badRequest(w, err)
		return
	}
	d, ok := s.cfg.Disputes.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "dispute not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":              encodeHash(d.ID),
		"client":          d.Client,
		"prosecution":     encodeAddress(d.Prosecution),
		"defendant":       encodeAddress(d.Defendant),
		"token":           encodeAddress(d.Token),
		"amount":          d.Amount.String(),
		"prosecutionFee":  d.ProsecutionFee.String(),
		"defendantFee":    d.DefendantFee.String(),
		"status":          d.Status,
		"createdAt":       d.CreatedAt,
		"lastInteraction": d.LastInteraction,
	})
}
