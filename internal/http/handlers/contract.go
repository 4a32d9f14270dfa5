package handlers

import (
	"net/http"
)

// ContractInfo reports the deployment and live state of the NFT contract.
func (a *App) ContractInfo(w http.ResponseWriter, r *http.Request) {
	if a.Contract == nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "ledger not configured")
		return
	}
	ctx := r.Context()
	contract, err := a.Contract.Contract(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: resolve contract failed")
		a.error(w, http.StatusBadGateway, "ledger", "contract not reachable")
		return
	}
	owner, err := a.Contract.Owner(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: read owner failed")
		a.error(w, http.StatusBadGateway, "ledger", "contract not reachable")
		return
	}
	cost, err := a.Contract.Cost(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: read cost failed")
		a.error(w, http.StatusBadGateway, "ledger", "contract not reachable")
		return
	}
	paused, err := a.Contract.Paused(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: read paused failed")
		a.error(w, http.StatusBadGateway, "ledger", "contract not reachable")
		return
	}
	supply, err := a.Contract.TotalSupply(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("http: read total supply failed")
		a.error(w, http.StatusBadGateway, "ledger", "contract not reachable")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"chain_id":     contract.ChainID.String(),
		"network":      contract.Network,
		"address":      contract.Address.Hex(),
		"owner":        owner.Hex(),
		"cost_wei":     cost.String(),
		"paused":       paused,
		"total_supply": supply.String(),
	})
}
