package main

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/mash/elimination"
	"github.com/Seednode/mash/plan"
)

type eliminateRequest struct {
	Pools       []elimination.Pool `json:"pools"`
	MagicNumber int                `json:"magicNumber"`
}

func serveAPIPlan(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req plan.Request
		if err := readJSON(w, r, &req); err != nil {
			writeError(q.cfg, w, http.StatusBadRequest, plan.Message(plan.ErrValidation))
			return
		}

		text, err := q.generatePlan(r.Context(), req)
		if err != nil {
			writeError(q.cfg, w, plan.StatusCode(err), plan.Message(err))
			return
		}

		written := writeJSON(q.cfg, w, http.StatusOK, planResponse{Plan: text})

		logf(q.cfg, "API: Plan (%s) to %s in %s (%s)",
			humanReadableSize(written),
			realIP(r),
			time.Since(startTime).Round(time.Millisecond),
			requestID(r),
		)
	}
}

func serveAPIEliminate(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req eliminateRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(q.cfg, w, http.StatusBadRequest, "invalid request body")
			return
		}

		result := q.eliminate(req.Pools, req.MagicNumber)

		writeJSON(q.cfg, w, http.StatusOK, result)

		logf(q.cfg, "API: Eliminated %d item(s) for %s (%s)", len(result.Steps), realIP(r), requestID(r))
	}
}

func serveAPICatalog(q *Quiz) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Cache-Control", "public, max-age=3600")

		writeJSON(q.cfg, w, http.StatusOK, q.catalog)
	}
}

func registerAPI(cfg *Config, q *Quiz, mux *httprouter.Router) {
	mux.POST(cfg.prefix+"/api/plan", serveAPIPlan(q))
	mux.POST(cfg.prefix+"/api/eliminate", serveAPIEliminate(q))
	mux.GET(cfg.prefix+"/api/catalog", serveAPICatalog(q))
}
