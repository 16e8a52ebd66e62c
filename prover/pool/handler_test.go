package pool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/colorfulnotion/zkwitness/prover"
	"github.com/colorfulnotion/zkwitness/types"
)

func TestHandlerServesAndReleasesProverData(t *testing.T) {
	p := newTestPool(t, committedLedger(t), Options{})
	if err := p.Maintain(context.Background()); err != nil {
		t.Fatalf("Maintain failed: %v", err)
	}
	srv := httptest.NewServer(NewHandler(p))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/blocks")
	if err != nil {
		t.Fatalf("GET /blocks failed: %v", err)
	}
	var blocks []types.BlockNumber
	if err := json.NewDecoder(resp.Body).Decode(&blocks); err != nil {
		t.Fatalf("decode blocks: %v", err)
	}
	resp.Body.Close()
	if len(blocks) != 2 || blocks[0] != 1 || blocks[1] != 2 {
		t.Fatalf("Expected [1 2], got %v", blocks)
	}

	resp, err = http.Get(srv.URL + "/blocks/1")
	if err != nil {
		t.Fatalf("GET /blocks/1 failed: %v", err)
	}
	var pd prover.ProverData
	if err := json.NewDecoder(resp.Body).Decode(&pd); err != nil {
		t.Fatalf("decode prover data: %v", err)
	}
	resp.Body.Close()
	want, _ := p.Get(1)
	if !pd.NewRoot.Equal(&want.NewRoot) || len(pd.Operations) != len(want.Operations) {
		t.Errorf("served prover data differs from the cached one")
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/blocks/1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /blocks/1 failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}

	for path, status := range map[string]int{
		"/blocks/1":   http.StatusNotFound,
		"/blocks/abc": http.StatusBadRequest,
		"/stats":      http.StatusOK,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != status {
			t.Errorf("GET %s: expected %d, got %d", path, status, resp.StatusCode)
		}
	}
}
