package dto

// Contratos REST do marketplace adapter. Valores monetários em
// micro-USDC (6 casas), shares em unidades inteiras.

type BuySharesRequest struct {
	MarketplaceID    string `json:"marketplace_id"`
	MarketID         string `json:"market_id"`
	OptionIndex      int    `json:"option_index"`
	CollateralAmount int64  `json:"collateral_amount"`
	MinimumShares    int64  `json:"minimum_shares"`
}

type BuySharesResponse struct {
	Status                string `json:"status"` // "filled" | "rejected"
	Reason                string `json:"reason,omitempty"`
	SharesBought          int64  `json:"shares_bought"`
	FinalCollateralAmount int64  `json:"final_collateral_amount"`
	BlockTimestamp        int64  `json:"block_timestamp"`
}

type SellSharesRequest struct {
	MarketplaceID string `json:"marketplace_id"`
	MarketID      string `json:"market_id"`
	OptionIndex   int    `json:"option_index"`
	Shares        int64  `json:"shares"`
}

type SellSharesResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	SaleValue int64  `json:"sale_value"`
}

type PricesResponse struct {
	MarketID string  `json:"market_id"`
	Prices   []int64 `json:"prices"` // micro-USDC por share, por opção
}
