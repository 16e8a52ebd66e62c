package pool

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/types"
)

// NewHandler exposes the pool to proof consumers:
//
//	GET    /blocks          prepared block numbers
//	GET    /blocks/{block}  prover data, 404 while not ready
//	DELETE /blocks/{block}  release prover data once proven
//	GET    /stats           per-class backlog
func NewHandler(p *ProversDataPool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /blocks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.PreparedBlocks())
	})
	mux.HandleFunc("GET /blocks/{block}", func(w http.ResponseWriter, r *http.Request) {
		block, ok := blockParam(w, r)
		if !ok {
			return
		}
		pd, ok := p.Get(block)
		if !ok {
			http.Error(w, "prover data not ready", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, pd)
	})
	mux.HandleFunc("DELETE /blocks/{block}", func(w http.ResponseWriter, r *http.Request) {
		block, ok := blockParam(w, r)
		if !ok {
			return
		}
		p.CleanUp(block)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Stats())
	})
	return mux
}

func blockParam(w http.ResponseWriter, r *http.Request) (types.BlockNumber, bool) {
	n, err := strconv.ParseUint(r.PathValue("block"), 10, 32)
	if err != nil {
		http.Error(w, "invalid block number", http.StatusBadRequest)
		return 0, false
	}
	return types.BlockNumber(n), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn(log.PoolMonitoring, "failed to write response", "err", err)
	}
}
