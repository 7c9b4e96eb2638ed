package protocol

// Event type tags carried by feed payloads.
const (
	TypeTrade       = "TRADE"
	TypeShopCreated = "SHOP_CREATED"
	TypeShopRemoved = "SHOP_REMOVED"
	TypeShopChanged = "SHOP_CHANGED"
	TypeNotice      = "NOTICE"
)

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// TradeEvent is emitted once per settled trade, for the statistics sink and
// the presentation feed. For money trades Good/Quantity/Price are set; for
// barter trades Gave/Received carry the exchanged stacks and Price is zero.
type TradeEvent struct {
	Type          string     `json:"type"`
	Kind          string     `json:"kind"` // "BUY", "SELL", "BARTER"
	ShopID        string     `json:"shop_id"`
	ActorID       string     `json:"actor_id"`
	OwnerID       string     `json:"owner_id"`
	Good          string     `json:"good,omitempty"`
	Quantity      int        `json:"quantity,omitempty"`
	Price         float64    `json:"price,omitempty"`
	Gave          *ItemStack `json:"gave,omitempty"`
	Received      *ItemStack `json:"received,omitempty"`
	OwnerCredited bool       `json:"owner_credited"`
	At            int64      `json:"at"` // unix millis
}

// ShopEvent announces registry changes so sign/hologram renderers can refresh.
type ShopEvent struct {
	Type   string     `json:"type"`
	ShopID string     `json:"shop_id"`
	Owner  string     `json:"owner,omitempty"`
	Status string     `json:"status,omitempty"`
	Sign   *SignLines `json:"sign,omitempty"`
}

// SignLines is the rendered four-line sign text for a shop.
type SignLines struct {
	Lines [4]string `json:"lines"`
}

// Notice is a direct owner notification (low stock, full shop).
type Notice struct {
	Type    string `json:"type"`
	OwnerID string `json:"owner_id"`
	Message string `json:"message"`
}
