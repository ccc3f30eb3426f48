package handler

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/avelmor/ticket-escrow/internal/asset"
	"github.com/avelmor/ticket-escrow/internal/utils"
)

// AdminHandler exposes the asset administration surface: listing the
// supported-asset set and minting balances into accounts. Minting stands
// in for the external top-up path and is restricted to the ADMIN role.
type AdminHandler struct {
	Assets *asset.Registry
	Log    zerolog.Logger
}

func NewAdminHandler(reg *asset.Registry, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		Assets: reg,
		Log:    log.With().Str("component", "admin-handler").Logger(),
	}
}

type assetResp struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Native   bool   `json:"native"`
}

// ListAssets handles GET /v1/admin/assets in registration order.
func (h *AdminHandler) ListAssets(c echo.Context) error {
	assets := h.Assets.List()
	out := make([]assetResp, 0, len(assets))
	for _, a := range assets {
		out = append(out, assetResp{
			Address:  a.Address().Hex(),
			Symbol:   a.Symbol(),
			Decimals: a.Decimals(),
			Native:   a.Address() == asset.NativeAddress,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

type mintReq struct {
	Asset   string `json:"asset"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// minter is satisfied by both asset books; the Asset interface itself
// deliberately excludes minting so the ledger can never create value.
type minter interface {
	Mint(to common.Address, amount *big.Int) error
}

// Mint handles POST /v1/admin/assets/mint: credits a smallest-unit amount
// of the named asset to an account.
func (h *AdminHandler) Mint(c echo.Context) error {
	var req mintReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	assetAddr, ok := utils.ParseAddress(req.Asset)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid asset address"})
	}
	account, ok := utils.ParseAddress(req.Account)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid account address"})
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid amount"})
	}

	a, err := h.Assets.Get(assetAddr)
	if err != nil {
		return ledgerError(c, err)
	}
	m, ok := a.(minter)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "asset does not support minting"})
	}
	if err := m.Mint(account, amount); err != nil {
		return ledgerError(c, err)
	}

	h.Log.Info().Str("asset", a.Symbol()).Str("account", account.Hex()).Str("amount", amount.String()).Msg("balance minted")
	return c.JSON(http.StatusOK, echo.Map{
		"asset":   a.Symbol(),
		"account": account.Hex(),
		"balance": a.BalanceOf(account).String(),
	})
}
