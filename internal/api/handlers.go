package api

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"presale-ledger/internal/domain"
	"presale-ledger/internal/presale"
)

// executeRequest is the body of a mutation. Fields irrelevant to the
// route are ignored.
type executeRequest struct {
	Funds    []domain.Coin `json:"funds"`
	Accounts []string      `json:"accounts"`
	NewAdmin string        `json:"new_admin"`
	Paused   *bool         `json:"paused"`
}

var errPausedRequired = errors.New("paused is required")

// eventView is the JSON form of a committed event.
type eventView struct {
	EventID    string             `json:"event_id"`
	Sequence   uint64             `json:"sequence"`
	Action     string             `json:"action"`
	Sender     string             `json:"sender"`
	Timestamp  int64              `json:"timestamp"`
	Status     domain.SaleStatus  `json:"status"`
	Attributes []domain.Attribute `json:"attributes"`
	Messages   []domain.Message   `json:"messages"`
}

func viewOf(e *domain.SaleEvent) eventView {
	v := eventView{
		EventID:    e.EventID,
		Sequence:   e.Sequence,
		Action:     e.Action,
		Sender:     e.Sender,
		Timestamp:  e.Timestamp,
		Status:     e.Status,
		Attributes: e.Attrs,
		Messages:   e.Messages,
	}
	if v.Attributes == nil {
		v.Attributes = []domain.Attribute{}
	}
	if v.Messages == nil {
		v.Messages = []domain.Message{}
	}
	return v
}

func (s *Server) execute(action presale.Action) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		msg := presale.ExecuteMsg{
			Action:   action,
			Accounts: req.Accounts,
			NewAdmin: req.NewAdmin,
		}
		if action == presale.ActionUpdatePause {
			if req.Paused == nil {
				writeError(w, http.StatusBadRequest, errPausedRequired)
				return
			}
			msg.Paused = *req.Paused
		}

		ev, err := s.sale.Execute(r.Context(), callerFrom(r.Context()), req.Funds, msg)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(ev))
	})
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	ev, err := s.sale.Migrate(r.Context(), callerFrom(r.Context()))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ev))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.sale.Config(r.Context())
	respond(w, cfg, err)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.sale.State(r.Context())
	respond(w, st, err)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	rates, err := s.sale.Rates(r.Context())
	if rates == nil {
		rates = []domain.Rate{}
	}
	respond(w, rates, err)
}

func (s *Server) handleIsWhitelisted(w http.ResponseWriter, r *http.Request) {
	acct := mux.Vars(r)["account"]
	ok, err := s.sale.IsWhitelisted(r.Context(), acct)
	respond(w, map[string]interface{}{"account": acct, "whitelisted": ok}, err)
}

func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	acct := mux.Vars(r)["account"]
	v, err := s.sale.Valuation(r.Context(), acct)
	respond(w, accountAmount{Account: acct, Amount: v}, err)
}

func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	acct := mux.Vars(r)["account"]
	coins, err := s.sale.Contributions(r.Context(), acct)
	if coins == nil {
		coins = []domain.Coin{}
	}
	respond(w, domain.Contribution{Account: acct, Coins: coins}, err)
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	acct := mux.Vars(r)["account"]
	v, err := s.sale.Allocation(r.Context(), acct)
	respond(w, accountAmount{Account: acct, Amount: v}, err)
}

// handleEvents serves ?sender=, or ?start=&end= (unix seconds, inclusive).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := intParam(q.Get("start"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	end, err := intParam(q.Get("end"), math.MaxInt64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	events, err := s.sale.Events(r.Context(), q.Get("sender"), start, end)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	views := make([]eventView, len(events))
	for i, e := range events {
		views[i] = viewOf(e)
	}
	writeJSON(w, http.StatusOK, views)
}

type accountAmount struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
}

func respond(w http.ResponseWriter, v interface{}, err error) {
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func intParam(raw string, fallback int64) (int64, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
