package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"waterbill/internal/storage"
	"waterbill/internal/tariff"
)

func (s *Server) tariffPathParams(w http.ResponseWriter, r *http.Request) (tariff.CustomerType, int, bool) {
	ctype, err := tariff.ParseCustomerType(r.PathValue("type"))
	if err != nil {
		s.error(w, r, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1900 || year > 9999 {
		s.error(w, r, http.StatusBadRequest, "invalid year")
		return "", 0, false
	}
	return ctype, year, true
}

func (s *Server) handleListTariffs(w http.ResponseWriter, r *http.Request) {
	tariffs, err := s.store.ListTariffs(r.Context())
	if err != nil {
		s.log.Error("list tariffs failed", zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if tariffs == nil {
		tariffs = []storage.TariffRecord{}
	}
	s.writeJSON(w, http.StatusOK, tariffs)
}

func (s *Server) handleGetTariff(w http.ResponseWriter, r *http.Request) {
	ctype, year, ok := s.tariffPathParams(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetTariff(r.Context(), string(ctype), year)
	if err != nil {
		s.log.Error("get tariff failed", zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		s.error(w, r, http.StatusNotFound, "tariff not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type upsertTariffRequest struct {
	TierTable          string  `json:"tier_table" validate:"required"`
	RentalPrices       string  `json:"rental_prices"`
	SewerSurchargeRate float64 `json:"sewer_surcharge_rate" validate:"gte=0"`
}

// handleUpsertTariff stores a tariff after checking the tier table parses
// into a well-formed progression. Rental prices are stored as-is: messy
// rental data degrades at computation time rather than blocking data entry.
func (s *Server) handleUpsertTariff(w http.ResponseWriter, r *http.Request) {
	ctype, year, ok := s.tariffPathParams(w, r)
	if !ok {
		return
	}
	var req upsertTariffRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	tiers, diag := tariff.DecodeTiers(req.TierTable)
	if diag != nil {
		s.error(w, r, http.StatusBadRequest, "tier_table does not parse: "+diag.Reason)
		return
	}
	if err := tariff.ValidateTiers(tiers); err != nil {
		s.error(w, r, http.StatusBadRequest, err.Error())
		return
	}

	rec := storage.TariffRecord{
		CustomerType:       string(ctype),
		Year:               year,
		TierTable:          req.TierTable,
		RentalPrices:       req.RentalPrices,
		SewerSurchargeRate: req.SewerSurchargeRate,
		UpdatedAt:          time.Now(),
	}
	if err := s.store.UpsertTariff(r.Context(), rec); err != nil {
		s.log.Error("upsert tariff failed",
			zap.String("customer_type", string(ctype)), zap.Int("year", year), zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	// the fetcher caches tariff rows by type and year; drop the entry so the
	// next bill computation sees the new rates instead of riding out the TTL
	if s.cache != nil {
		s.cache.Invalidate(r.Context(), storage.TariffCacheKey(string(ctype), year))
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type rentalPricesResponse struct {
	Entries       []tariff.RentalEntry `json:"entries"`
	DecodeProblem *tariff.DecodeDiag   `json:"decode_problem,omitempty"`
	ResolvedKey   *string              `json:"resolved_key,omitempty"`
	ResolvedPrice *float64             `json:"resolved_price,omitempty"`
}

// handleRentalPrices exposes the decoded rental table for a tariff, and
// optionally resolves a ?meter_size= against it. This is the diagnostic
// view clerks use to see why a meter size priced the way it did.
func (s *Server) handleRentalPrices(w http.ResponseWriter, r *http.Request) {
	ctype, year, ok := s.tariffPathParams(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetTariff(r.Context(), string(ctype), year)
	if err != nil {
		s.log.Error("get tariff failed", zap.Error(err))
		s.error(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if rec == nil {
		s.error(w, r, http.StatusNotFound, "tariff not found")
		return
	}

	table, diag := tariff.DecodeRentalTable(rec.RentalPrices)
	resp := rentalPricesResponse{Entries: table.Entries(), DecodeProblem: diag}
	if resp.Entries == nil {
		resp.Entries = []tariff.RentalEntry{}
	}

	if raw := r.URL.Query().Get("meter_size"); raw != "" {
		size, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.error(w, r, http.StatusBadRequest, "invalid meter_size")
			return
		}
		res := tariff.ResolveRentalPrice(table, size)
		resp.ResolvedKey = res.Key
		resp.ResolvedPrice = res.Price
	}

	s.writeJSON(w, http.StatusOK, resp)
}
