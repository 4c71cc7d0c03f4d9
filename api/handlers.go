package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/xraph/tally"
	"github.com/xraph/tally/entry"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

// shareRequest carries an amount as a decimal string in major units.
type shareRequest struct {
	Participant types.Participant `json:"participant"`
	Amount      string            `json:"amount"`
}

type entryResponse struct {
	*entry.Entry
	Total types.Money `json:"total"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := a.ledger.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ──────────────────────────────────────────────────
// Groups
// ──────────────────────────────────────────────────

func (a *API) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string              `json:"name"`
		Currency string              `json:"currency"`
		Members  []types.Participant `json:"members"`
	}
	if !decode(w, r, &req) {
		return
	}

	g := &group.Group{
		Name:      req.Name,
		Currency:  req.Currency,
		Members:   req.Members,
		CreatedBy: caller(r),
	}
	if err := a.ledger.CreateGroup(r.Context(), g); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (a *API) handleListGroups(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, err)
		return
	}
	groups, err := a.ledger.ListGroups(r.Context(), group.ListOpts{
		Member: caller(r),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (a *API) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (a *API) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}
	var req struct {
		Members []types.Participant `json:"members"`
	}
	if !decode(w, r, &req) {
		return
	}

	added, err := a.ledger.AddMembers(r.Context(), g.ID, req.Members...)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if added == nil {
		added = []types.Participant{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": added})
}

// ──────────────────────────────────────────────────
// Entries
// ──────────────────────────────────────────────────

func (a *API) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}
	var req struct {
		Description string         `json:"description"`
		Currency    string         `json:"currency"`
		Payers      []shareRequest `json:"payers"`
		Splits      []shareRequest `json:"splits"`
	}
	if !decode(w, r, &req) {
		return
	}

	currency := currencyOr(req.Currency, g.Currency)
	payers, err := parseShares("payers", req.Payers, currency)
	if err != nil {
		writeError(w, err)
		return
	}
	splits, err := parseShares("splits", req.Splits, currency)
	if err != nil {
		writeError(w, err)
		return
	}

	e := &entry.Entry{
		GroupID:     g.ID,
		Currency:    currency,
		Description: req.Description,
		CreatedBy:   caller(r),
		Payers:      payers,
		Splits:      splits,
	}
	if err := a.ledger.RecordExpense(r.Context(), e); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(e))
}

func (a *API) handleRecordSettlement(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}
	var req struct {
		Description string            `json:"description"`
		Currency    string            `json:"currency"`
		Settler     types.Participant `json:"settler"`
		Details     []shareRequest    `json:"details"`
	}
	if !decode(w, r, &req) {
		return
	}

	currency := currencyOr(req.Currency, g.Currency)
	details, err := parseShares("details", req.Details, currency)
	if err != nil {
		writeError(w, err)
		return
	}

	settler := req.Settler
	if settler == "" {
		settler = caller(r)
	}
	e := &entry.Entry{
		GroupID:     g.ID,
		Currency:    currency,
		Description: req.Description,
		CreatedBy:   caller(r),
		Settler:     settler,
		Details:     details,
	}
	if err := a.ledger.RecordSettlement(r.Context(), e); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryResponse(e))
}

func (a *API) handleListEntries(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, err)
		return
	}

	opts := entry.ListOpts{
		Kinds:       kinds(r),
		Participant: types.Participant(r.URL.Query().Get("participant")),
		Limit:       limit,
		Offset:      offset,
	}

	entries, err := a.ledger.ListEntries(r.Context(), g.ID, opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// ──────────────────────────────────────────────────
// Simplification and balances
// ──────────────────────────────────────────────────

func (a *API) handleSimplify(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}

	run := a.ledger.Simplify
	if preview, _ := strconv.ParseBool(r.URL.Query().Get("preview")); preview {
		run = a.ledger.Preview
	}
	res, err := run(r.Context(), g.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleGroupBalances(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}
	balances, err := a.ledger.Balances(r.Context(), g.ID, caller(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (a *API) handleBalance(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}
	other := types.Participant(mux.Vars(r)["participant"])
	balance, err := a.ledger.Balance(r.Context(), g.ID, caller(r), other)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counterparty": other,
		"balance":      balance,
	})
}

func (a *API) handleTotals(w http.ResponseWriter, r *http.Request) {
	g, ok := a.memberGroup(w, r)
	if !ok {
		return
	}
	totals, err := a.ledger.GroupTotals(r.Context(), g.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (a *API) handleCounterpartyBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := a.ledger.CounterpartyBalances(r.Context(), caller(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (a *API) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := a.ledger.GroupPositions(r.Context(), caller(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := paging(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := a.ledger.Activity(r.Context(), caller(r), entry.ListOpts{
		Kinds:  kinds(r),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]entryResponse, len(entries))
	for i, e := range entries {
		out[i] = toEntryResponse(e)
	}
	writeJSON(w, http.StatusOK, out)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// kinds reads the comma separated kind filter.
func kinds(r *http.Request) []entry.Kind {
	v := r.URL.Query().Get("kind")
	if v == "" {
		return nil
	}
	var out []entry.Kind
	for _, k := range strings.Split(v, ",") {
		out = append(out, entry.Kind(strings.TrimSpace(k)))
	}
	return out
}

// memberGroup loads the group named in the path and checks that the caller
// belongs to it.
func (a *API) memberGroup(w http.ResponseWriter, r *http.Request) (*group.Group, bool) {
	groupID, err := id.ParseGroupID(mux.Vars(r)["group_id"])
	if err != nil {
		writeError(w, tally.ValidationError{Field: "group_id", Message: err.Error()})
		return nil, false
	}
	g, err := a.ledger.GetGroup(r.Context(), groupID)
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	if !g.HasMember(caller(r)) {
		writeError(w, fmt.Errorf("%w: %s", tally.ErrNotMember, caller(r)))
		return nil, false
	}
	return g, true
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "api: request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, tally.ValidationError{Field: "body", Message: "invalid request body"})
		return false
	}
	return true
}

func parseShares(field string, in []shareRequest, currency string) ([]entry.Share, error) {
	out := make([]entry.Share, len(in))
	for i, s := range in {
		m, err := types.ParseMoney(s.Amount, currency)
		if err != nil {
			return nil, tally.ValidationError{Field: fmt.Sprintf("%s[%d].amount", field, i), Message: err.Error()}
		}
		out[i] = entry.Share{Participant: s.Participant, Amount: m.Amount}
	}
	return out, nil
}

func paging(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, tally.ValidationError{Field: "limit", Message: "must be a non-negative integer"}
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, tally.ValidationError{Field: "offset", Message: "must be a non-negative integer"}
		}
	}
	return limit, offset, nil
}

func currencyOr(currency, fallback string) string {
	if currency = strings.TrimSpace(currency); currency != "" {
		return strings.ToLower(currency)
	}
	return fallback
}

func toEntryResponse(e *entry.Entry) entryResponse {
	var total int64
	switch e.Kind {
	case entry.KindExpense:
		total = entry.Total(e.Payers)
	case entry.KindSettlement:
		total = entry.Total(e.Details)
	case entry.KindSimplification:
		for _, t := range e.Transfers {
			total += t.Amount
		}
	}
	return entryResponse{Entry: e, Total: types.New(total, e.Currency)}
}
