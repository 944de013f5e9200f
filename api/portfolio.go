package api

import (
	"net/http"
	"strings"
	"time"
)

func (a *API) listHoldings(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Holdings   []HoldingValue `json:"holdings"`
		TotalValue float64        `json:"total_value"`
	}

	userID := r.PathValue("userID")
	holdings, err := a.DB.ListHoldings(r.Context(), userID)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list holdings")
		return
	}

	coinIDs := make([]string, len(holdings))
	for i, h := range holdings {
		coinIDs[i] = h.CoinID
	}
	prices, err := a.Market.Prices(r.Context(), coinIDs)
	if err != nil {
		// Valuation degrades to zero prices rather than hiding the
		// holdings themselves.
		a.Logger.Error("Could not fetch prices", "error", err.Error())
		prices = map[string]float64{}
	}

	res := response{Holdings: make([]HoldingValue, len(holdings))}
	for i, h := range holdings {
		res.Holdings[i] = valueHolding(h, prices[h.CoinID])
		res.TotalValue += res.Holdings[i].TotalValue
	}

	a.respond(w, http.StatusOK, res)
}

// valueHolding prices a holding. A zero price means the market quote
// was unavailable; profit/loss stays zero in that case.
func valueHolding(h Holding, price float64) HoldingValue {
	hv := HoldingValue{Holding: h, CurrentPrice: price}
	if price == 0 {
		return hv
	}
	hv.TotalValue = h.Amount * price
	cost := h.Amount * h.AvgBuyPrice
	hv.ProfitLoss = hv.TotalValue - cost
	if cost != 0 {
		hv.ProfitLossPct = hv.ProfitLoss / cost * 100
	}
	return hv
}

func (a *API) createHolding(w http.ResponseWriter, r *http.Request) {
	type request struct {
		CoinID      string  `json:"coin_id" validate:"required"`
		Symbol      string  `json:"symbol" validate:"required"`
		Name        string  `json:"name"`
		Amount      float64 `json:"amount" validate:"required,gt=0"`
		AvgBuyPrice float64 `json:"avg_buy_price" validate:"gte=0"`
	}

	userID, _ := actor(r)
	if userID == "" {
		a.unauthenticated(w)
		return
	}
	if userID != r.PathValue("userID") {
		a.forbidden(w, "Holdings can only be added to your own portfolio")
		return
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}
	if valid := a.validateBody(w, &body); !valid {
		return
	}

	now := time.Now().UTC()
	holding, err := a.DB.InsertHolding(r.Context(), Holding{
		UserID:      userID,
		CoinID:      strings.ToLower(body.CoinID),
		Symbol:      strings.ToUpper(body.Symbol),
		Name:        body.Name,
		Amount:      body.Amount,
		AvgBuyPrice: body.AvgBuyPrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not insert holding")
		return
	}

	a.respond(w, http.StatusCreated, holding)
}

func (a *API) updateHolding(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Amount      *float64 `json:"amount"`
		AvgBuyPrice *float64 `json:"avg_buy_price"`
	}

	userID, _ := actor(r)
	if userID == "" {
		a.unauthenticated(w)
		return
	}

	holding, err := a.DB.GetHolding(r.Context(), r.PathValue("holdingID"))
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	if holding.UserID != userID {
		a.forbidden(w, "Only the owner can edit a holding")
		return
	}

	var body request
	if !a.decodeBody(w, r, &body) {
		return
	}

	updated, err := a.DB.UpdateHolding(r.Context(), holding.ID, HoldingUpdate{
		Amount:      body.Amount,
		AvgBuyPrice: body.AvgBuyPrice,
	})
	if err != nil {
		a.respondDomainError(w, err)
		return
	}

	a.respond(w, http.StatusOK, updated)
}

func (a *API) deleteHolding(w http.ResponseWriter, r *http.Request) {
	userID, _ := actor(r)
	if userID == "" {
		a.unauthenticated(w)
		return
	}

	holding, err := a.DB.GetHolding(r.Context(), r.PathValue("holdingID"))
	if err != nil {
		a.respondDomainError(w, err)
		return
	}
	if holding.UserID != userID {
		a.forbidden(w, "Only the owner can delete a holding")
		return
	}

	if err := a.DB.DeleteHolding(r.Context(), holding.ID); err != nil {
		a.respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listCoins(w http.ResponseWriter, r *http.Request) {
	coins, err := a.Market.Coins(r.Context())
	if err != nil {
		a.respondError(w, http.StatusBadGateway, err, "Could not fetch market data")
		return
	}
	a.respond(w, http.StatusOK, coins)
}

func (a *API) getPrices(w http.ResponseWriter, r *http.Request) {
	ids := strings.Split(r.URL.Query().Get("ids"), ",")
	clean := ids[:0]
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, strings.ToLower(id))
		}
	}
	if len(clean) == 0 {
		a.respondError(w, http.StatusBadRequest, errMissingIDs, "ids query parameter is required")
		return
	}

	prices, err := a.Market.Prices(r.Context(), clean)
	if err != nil {
		a.respondError(w, http.StatusBadGateway, err, "Could not fetch prices")
		return
	}
	a.respond(w, http.StatusOK, prices)
}
