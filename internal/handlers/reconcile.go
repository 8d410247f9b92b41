// Package handlers provides HTTP request handlers for the API endpoints.
// It defines the routing logic, response formatting, and error handling mechanisms.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradegraph/core/internal/analytics"
	"github.com/tradegraph/core/internal/models"
	"github.com/tradegraph/core/internal/reconcile"
)

// MaxBodyBytes bounds the tables accepted by the reconcile endpoint.
const MaxBodyBytes = 64 << 20

// ReconcileResponse is the graph together with the two flat tables. Countries
// carry no centrality scores since nothing is written to a store.
type ReconcileResponse struct {
	Graph     *models.Graph          `json:"graph"`
	Countries []models.CountryExport `json:"countries"`
	Trades    []models.TradeEdge     `json:"trades"`
}

// ReconcileHandler reconciles a posted set of tables without touching a store.
func ReconcileHandler(logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		defer r.Body.Close()

		var tables models.Tables
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&tables); err != nil {
			http.Error(w, "Invalid tables: "+err.Error(), http.StatusBadRequest)
			return
		}

		res := reconcile.Reconcile(&tables)
		response := ReconcileResponse{
			Graph:     reconcile.BuildGraph(res, uuid.NewString()),
			Countries: analytics.Merge(res.Profiles, nil),
			Trades:    res.Trades,
		}

		w.Header().Set("Content-Type", "application/json")

		encoder := json.NewEncoder(w)
		if r.URL.Query().Get("pretty") == "true" {
			encoder.SetIndent("", "  ")
		}

		if err := encoder.Encode(response); err != nil {
			logger.Error("Error encoding response", zap.Error(err))
		}
	}
}
