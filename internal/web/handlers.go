package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/user/minerscan/internal/control"
	"github.com/user/minerscan/internal/daemon"
	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/observe"
	"github.com/user/minerscan/internal/registry"
	"github.com/user/minerscan/internal/report"
	"github.com/user/minerscan/internal/scan"
	"github.com/user/minerscan/internal/storage"
	"github.com/user/minerscan/internal/workpool"
)

// Handlers contains HTTP handlers.
type Handlers struct {
	engine *daemon.Engine
}

// NewHandlers creates new handlers.
func NewHandlers(e *daemon.Engine) *Handlers {
	return &Handlers{engine: e}
}

// Dashboard serves the main dashboard page.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"stats":    h.engine.Registry().Stats(),
		"progress": h.engine.Progress().Snapshot(),
		"miners":   h.engine.Registry().Snapshot(),
		"ranges":   h.engine.Config().SavedRanges,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := getDashboardTemplate().Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// APIGetStatus returns engine status.
func (h *Handlers) APIGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Snapshot())
}

// APIGetMiners returns the registry snapshot, filtered and sorted.
func (h *Handlers) APIGetMiners(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, h.engine.Registry().Query(q))
}

// APIGetMiner returns one registry entry.
func (h *Handlers) APIGetMiner(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.engine.Registry().Get(r.PathValue("ip"))
	if !ok {
		writeError(w, observe.ErrUnknownMiner, http.StatusNotFound)
		return
	}
	writeJSON(w, entry)
}

// APIMinerAction runs a control action or refresh on one miner.
func (h *Handlers) APIMinerAction(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("ip")
	if _, ok := h.engine.Registry().Get(addr); !ok {
		writeError(w, observe.ErrUnknownMiner, http.StatusNotFound)
		return
	}

	name := r.PathValue("action")
	if name == "refresh" {
		err := h.engine.Observer().Refresh(addr)
		switch {
		case errors.Is(err, workpool.ErrSaturated):
			writeError(w, err, http.StatusServiceUnavailable)
		case err != nil:
			writeError(w, err, http.StatusInternalServerError)
		default:
			writeJSONStatus(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
		}
		return
	}

	action, err := control.ParseAction(name)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	result := h.engine.Controller().Run(r.Context(), action, []string{addr})
	if msg, failed := result.Failed[addr]; failed {
		writeError(w, errors.New(msg), http.StatusBadGateway)
		return
	}
	writeJSON(w, result)
}

// progressResponse adds the elapsed time derived at request time.
type progressResponse struct {
	scan.State
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// APIGetProgress returns the current scan progress.
func (h *Handlers) APIGetProgress(w http.ResponseWriter, r *http.Request) {
	st := h.engine.Progress().Snapshot()
	writeJSON(w, progressResponse{
		State:          st,
		ElapsedSeconds: st.Elapsed(time.Now()).Seconds(),
	})
}

// APIGetStats returns fleet averages.
func (h *Handlers) APIGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Registry().Stats())
}

// APIGetFleetHistory returns the fleet hashrate series.
func (h *Handlers) APIGetFleetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.History().Fleet())
}

// APIGetMinerHistory returns the coarse and fine series of one miner.
func (h *Handlers) APIGetMinerHistory(w http.ResponseWriter, r *http.Request) {
	addr := r.PathValue("ip")
	writeJSON(w, map[string]interface{}{
		"address": addr,
		"coarse":  h.engine.History().Coarse(addr),
		"fine":    h.engine.History().Fine(addr),
	})
}

type scanRequest struct {
	Start string   `json:"start"`
	End   string   `json:"end"`
	Saved []string `json:"saved"`
}

// APIStartScan starts a pass over an explicit range, named saved ranges,
// or every saved range when the body is empty.
func (h *Handlers) APIStartScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
			return
		}
	}

	ranges, err := h.resolveRanges(req)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	id, err := h.engine.Scan(ranges)
	switch {
	case errors.Is(err, daemon.ErrScanInProgress):
		writeError(w, err, http.StatusConflict)
		return
	case err != nil:
		writeError(w, err, http.StatusBadRequest)
		return
	}

	writeJSONStatus(w, http.StatusAccepted, map[string]string{"pass_id": id})
}

func (h *Handlers) resolveRanges(req scanRequest) ([]iprange.Range, error) {
	cfg := h.engine.Config()

	switch {
	case req.Start != "" || req.End != "":
		rg, err := iprange.Parse(req.Start, req.End)
		if err != nil {
			return nil, err
		}
		return []iprange.Range{rg}, nil

	case len(req.Saved) > 0:
		var out []iprange.Range
		for _, name := range req.Saved {
			sr, ok := cfg.FindRange(name)
			if !ok {
				return nil, fmt.Errorf("saved range not found: %s", name)
			}
			rg, err := iprange.Decode(sr.Range)
			if err != nil {
				return nil, err
			}
			out = append(out, rg)
		}
		return out, nil
	}

	return cfg.Ranges(), nil
}

// APIGetRanges lists the saved ranges.
func (h *Handlers) APIGetRanges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Config().SavedRanges)
}

// APIExport streams the registry as the CSV export artifact.
func (h *Handlers) APIExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}

	name := fmt.Sprintf("miners_%s.csv", time.Now().Format("2006-01-02_15-04-05"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	if err := report.WriteCSV(w, h.engine.Registry().Query(q)); err != nil {
		writeError(w, err, http.StatusInternalServerError)
	}
}

// DownloadReport generates and downloads a markdown fleet report.
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	var lastPass *model.PassSummary
	if db := h.engine.DB(); db != nil {
		if p, err := storage.NewPassStorage(db).GetLatest(); err == nil {
			lastPass = p
		}
	}

	data := report.NewGenerator(h.engine.Registry()).Generate(lastPass)
	content := report.FormatMarkdown(data)

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=minerscan_report.md")
	w.Write([]byte(content))
}

func parseQuery(r *http.Request) (registry.Query, error) {
	v := r.URL.Query()
	col, err := registry.ParseColumn(v.Get("sort"))
	if err != nil {
		return registry.Query{}, err
	}
	desc, _ := strconv.ParseBool(v.Get("desc"))
	return registry.Query{Search: v.Get("search"), SortBy: col, Desc: desc}, nil
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error, status int) {
	writeJSONStatus(w, status, map[string]string{"error": err.Error()})
}
