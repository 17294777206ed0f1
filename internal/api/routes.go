package api

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fueleu/cbledger/internal/app/comparison"
	"github.com/fueleu/cbledger/internal/domain"
)

// ─── Routes API ─────────────────────────────────────────────────────────────

// handleListRoutes lists all routes, or one year's with ?year=.
func (s *Server) handleListRoutes(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query().Get("year"), false)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	var routes []domain.Route
	if year == 0 {
		routes, err = s.routes.ListRoutes(r.Context())
	} else {
		routes, err = s.routes.ListRoutesByYear(r.Context(), year)
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if routes == nil {
		routes = []domain.Route{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"routes": routes,
		"count":  len(routes),
	})
}

// handleCreateRoute registers a route. A new route is never the baseline;
// use the baseline endpoint to promote it.
func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var route domain.Route
	if err := decodeJSON(r, &route); err != nil {
		s.writeDomainError(w, err)
		return
	}
	route.RouteID = strings.TrimSpace(route.RouteID)
	if route.RouteID == "" {
		s.writeDomainError(w, domain.Validationf("routeId is required"))
		return
	}
	if err := checkYear(route.Year); err != nil {
		s.writeDomainError(w, err)
		return
	}
	for name, v := range map[string]float64{
		"ghgIntensity":    route.GHGIntensity,
		"fuelConsumption": route.FuelConsumption,
		"distance":        route.Distance,
		"totalEmissions":  route.TotalEmissions,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			s.writeDomainError(w, domain.Validationf("%s must be a non-negative number", name))
			return
		}
	}
	route.ID = ""
	route.IsBaseline = false

	created, err := s.routes.CreateRoute(r.Context(), route)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleSetBaseline makes a route its year's baseline.
func (s *Server) handleSetBaseline(w http.ResponseWriter, r *http.Request) {
	routeID := strings.TrimSpace(chi.URLParam(r, "routeId"))
	if routeID == "" {
		s.writeDomainError(w, domain.Validationf("Route ID is required"))
		return
	}
	route, err := s.routes.SetBaseline(r.Context(), routeID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// handleComparison compares every non-baseline route of a year against the
// year's baseline. The year defaults to the current year.
func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query().Get("year"), false)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if year == 0 {
		year = s.now().Year()
	}

	baseline, err := s.routes.GetBaselineRoute(r.Context(), year)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	routes, err := s.routes.ListRoutesByYear(r.Context(), year)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	results, err := comparison.AgainstBaseline(baseline, routes)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year": year,
		"baseline": map[string]interface{}{
			"routeId":      baseline.RouteID,
			"ghgIntensity": baseline.GHGIntensity,
		},
		"comparisons":  results,
		"allCompliant": comparison.AllCompliant(results),
	})
}
