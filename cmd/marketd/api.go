package main

import (
	"encoding/json"
	"net/http"

	"chestmarket.gg/internal/market"
	"chestmarket.gg/internal/persistence/tradedb"
	"chestmarket.gg/internal/protocol"
)

// apiServer serves the local-only admin surface: shop management, trades on
// behalf of actors, balances, and the stats read model.
type apiServer struct {
	reg      *market.Registry
	eng      *market.Engine
	ledger   *memoryLedger
	actors   *actorPool
	chests   *market.ContainerPool
	notifier *market.Notifier
	db       *tradedb.DB
}

func (a *apiServer) register(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/shops", a.guard(a.handleShops))
	mux.HandleFunc("/admin/v1/shops/remove", a.guard(a.handleRemoveShop))
	mux.HandleFunc("/admin/v1/shops/barter", a.guard(a.handleConvertBarter))
	mux.HandleFunc("/admin/v1/trade", a.guard(a.handleTrade))
	mux.HandleFunc("/admin/v1/balance", a.guard(a.handleBalance))
	mux.HandleFunc("/admin/v1/inventory", a.guard(a.handleInventory))
	mux.HandleFunc("/admin/v1/stock", a.guard(a.handleStock))
	mux.HandleFunc("/admin/v1/stats", a.guard(a.handleStats))
	mux.HandleFunc("/admin/v1/save", a.guard(a.handleSave))
}

// guard keeps the admin surface loopback-only.
func (a *apiServer) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

type shopView struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	OwnerName string          `json:"owner_name"`
	Chest     market.Location `json:"chest"`
	Sign      market.Location `json:"sign"`
	Good      string          `json:"good"`
	Quantity  int             `json:"quantity"`
	BuyPrice  float64         `json:"buy_price"`
	SellPrice float64         `json:"sell_price"`
	Barter    *market.Barter  `json:"barter,omitempty"`
	Status    string          `json:"status"`
}

func (a *apiServer) view(s *market.Shop) shopView {
	return shopView{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		OwnerName: s.OwnerName,
		Chest:     s.Storage,
		Sign:      s.Sign,
		Good:      s.Good,
		Quantity:  s.Quantity,
		BuyPrice:  s.BuyPrice,
		SellPrice: s.SellPrice,
		Barter:    s.Barter,
		Status:    string(a.reg.StatusOf(s)),
	}
}

// handleShops lists shops on GET (optionally filtered) and creates on POST.
func (a *apiServer) handleShops(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		var shops []*market.Shop
		switch {
		case q.Get("owner") != "":
			shops = a.reg.ByOwner(q.Get("owner"))
		case q.Get("good") != "":
			shops = a.reg.SearchByGood(q.Get("good"))
		default:
			shops = a.reg.All()
		}
		out := make([]shopView, 0, len(shops))
		for _, s := range shops {
			out = append(out, a.view(s))
		}
		writeJSON(rw, http.StatusOK, out)

	case http.MethodPost:
		var p market.CreateParams
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		s, err := a.reg.Create(p)
		if err != nil {
			writeReject(rw, err)
			return
		}
		writeJSON(rw, http.StatusCreated, a.view(s))

	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *apiServer) handleRemoveShop(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ShopID string `json:"shop_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	removed := a.reg.Remove(req.ShopID)
	if removed {
		a.notifier.Forget(req.ShopID)
	}
	writeJSON(rw, http.StatusOK, map[string]any{"removed": removed})
}

func (a *apiServer) handleConvertBarter(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ShopID string        `json:"shop_id"`
		Barter market.Barter `json:"barter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	if err := a.reg.ConvertToBarter(req.ShopID, req.Barter); err != nil {
		writeReject(rw, err)
		return
	}
	s, _ := a.reg.ByID(req.ShopID)
	writeJSON(rw, http.StatusOK, a.view(s))
}

func (a *apiServer) handleTrade(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Kind    string `json:"kind"` // "BUY", "SELL", "BARTER"
		ShopID  string `json:"shop_id"`
		ActorID string `json:"actor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(rw, http.StatusBadRequest, err)
		return
	}
	shop, ok := a.reg.ByID(req.ShopID)
	if !ok {
		writeError(rw, http.StatusNotFound, nil)
		return
	}
	actor := market.Party{ID: req.ActorID, Name: req.ActorID, Inv: a.actors.get(req.ActorID)}

	var (
		rcpt market.Receipt
		err  error
	)
	switch market.TradeKind(req.Kind) {
	case market.KindBuy:
		rcpt, err = a.eng.Buy(actor, shop)
	case market.KindSell:
		rcpt, err = a.eng.Sell(actor, shop)
	case market.KindBarter:
		rcpt, err = a.eng.Barter(actor, shop)
	default:
		writeError(rw, http.StatusBadRequest, nil)
		return
	}
	if err != nil {
		writeReject(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, rcpt.Event())
}

func (a *apiServer) handleBalance(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id := r.URL.Query().Get("account")
		writeJSON(rw, http.StatusOK, map[string]any{"account": id, "balance": a.ledger.Balance(id)})

	case http.MethodPost:
		var req struct {
			Account string  `json:"account"`
			Amount  float64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		if !a.ledger.Deposit(req.Account, req.Amount) {
			writeError(rw, http.StatusBadRequest, nil)
			return
		}
		writeJSON(rw, http.StatusOK, map[string]any{"account": req.Account, "balance": a.ledger.Balance(req.Account)})

	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleInventory reads or grants an actor's holdings.
func (a *apiServer) handleInventory(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id := r.URL.Query().Get("actor")
		writeJSON(rw, http.StatusOK, a.actors.get(id).Stacks())

	case http.MethodPost:
		var req struct {
			ActorID string `json:"actor_id"`
			Good    string `json:"good"`
			Count   int    `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		inv := a.actors.get(req.ActorID)
		if !inv.Add(req.Good, req.Count) {
			writeError(rw, http.StatusConflict, nil)
			return
		}
		writeJSON(rw, http.StatusOK, inv.Stacks())

	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleStock reads or restocks a shop's chest.
func (a *apiServer) handleStock(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s, ok := a.reg.ByID(r.URL.Query().Get("shop_id"))
		if !ok {
			writeError(rw, http.StatusNotFound, nil)
			return
		}
		inv, _ := a.chests.StorageAt(s.Storage)
		c, _ := inv.(*market.Container)
		writeJSON(rw, http.StatusOK, c.Stacks())

	case http.MethodPost:
		var req struct {
			ShopID string `json:"shop_id"`
			Good   string `json:"good"`
			Count  int    `json:"count"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(rw, http.StatusBadRequest, err)
			return
		}
		s, ok := a.reg.ByID(req.ShopID)
		if !ok {
			writeError(rw, http.StatusNotFound, nil)
			return
		}
		inv, _ := a.chests.StorageAt(s.Storage)
		if !inv.Add(req.Good, req.Count) {
			writeError(rw, http.StatusConflict, nil)
			return
		}
		c, _ := inv.(*market.Container)
		writeJSON(rw, http.StatusOK, c.Stacks())

	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (a *apiServer) handleStats(rw http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		writeError(rw, http.StatusServiceUnavailable, nil)
		return
	}
	a.db.Barrier()

	totals, err := a.db.GlobalTotals()
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	popular, err := a.db.MostPopularGoods(10)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	earners, err := a.db.TopEarners(10)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	spenders, err := a.db.TopSpenders(10)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	shops, err := a.db.ShopPerformance(10)
	if err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"totals":        totals,
		"popular_goods": popular,
		"top_earners":   earners,
		"top_spenders":  spenders,
		"top_shops":     shops,
	})
}

func (a *apiServer) handleSave(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := a.reg.Save(); err != nil {
		writeError(rw, http.StatusInternalServerError, err)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "shops": a.reg.Count()})
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(rw, status, map[string]any{"error": msg})
}

// writeReject maps market rejection codes to http statuses: conflicts for
// precondition failures, 500 for a consistency fault.
func writeReject(rw http.ResponseWriter, err error) {
	code := market.RejectCode(err)
	status := http.StatusConflict
	switch code {
	case "":
		status = http.StatusInternalServerError
	case protocol.ErrBadRequest, protocol.ErrInvalidQuantity, protocol.ErrInvalidPrice, protocol.ErrNotTradable:
		status = http.StatusBadRequest
	case protocol.ErrConsistency:
		status = http.StatusInternalServerError
	case protocol.ErrCooldown:
		status = http.StatusTooManyRequests
	}
	writeJSON(rw, status, map[string]any{"error": err.Error(), "code": code})
}
