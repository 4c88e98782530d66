// Package rpcserver implements §6's orchestrator-facing JSON-RPC 2.0
// HTTP transport: namespace "ccp", four methods. It adapts the teacher's
// rpc package's shape -- one service struct per namespace, routed by
// method name -- without the subscription/codec machinery that package
// carries and this daemon doesn't need (see DESIGN.md). Routing uses
// julienschmidt/httprouter.
package rpcserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/capacitymesh/ccp/internal/ccpapi"
	"github.com/capacitymesh/ccp/internal/ccptypes"
	"github.com/capacitymesh/ccp/internal/log"
)

// Handler is the prover-facing surface the four ccp_* methods dispatch to.
// ccprover.CCProver implements this.
type Handler interface {
	OnActiveCommitment(epoch ccptypes.EpochParameters, allocation ccptypes.CUAllocation)
	OnNoActiveCommitment() error
	GetProofsAfter(ctx context.Context, idx ccptypes.ProofIdx) ([]ccptypes.CCProof, error)
	ReallocUtilityCores(coreIDs []uint32) error
}

// mutexAcquireTimeout is the 2-second bound §5 specifies for acquiring the
// prover mutex while serving get_proofs_after.
const mutexAcquireTimeout = 2 * time.Second

// Server is the minimal, real HTTP JSON-RPC server of §6: no batching, no
// WebSocket, no subscriptions.
type Server struct {
	handler   Handler
	debouncer *commitmentDebouncer
	log       log.Logger
}

// New wires handler behind the four ccp_* methods and starts the
// background "receive-last" debounce loop for on_active_commitment.
func New(handler Handler) *Server {
	s := &Server{handler: handler, log: log.New("component", "rpcserver")}
	s.debouncer = newCommitmentDebouncer(handler)
	go s.debouncer.run()
	return s
}

// Router builds the httprouter.Router serving the single JSON-RPC POST
// endpoint.
func (s *Server) Router() *httprouter.Router {
	r := httprouter.New()
	r.POST("/", s.serveRPC)
	return r
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, -32700, "parse error: "+err.Error())
		return
	}

	result, err := s.dispatch(r.Context(), req.Method, req.Params)
	if err != nil {
		writeError(w, req.ID, -32000, err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) dispatch(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	switch method {
	case "ccp_on_active_commitment":
		return nil, s.onActiveCommitment(params)
	case "ccp_on_no_active_commitment":
		return nil, s.handler.OnNoActiveCommitment()
	case "ccp_get_proofs_after":
		return s.getProofsAfter(ctx, params)
	case "ccp_realloc_utility_cores":
		return nil, s.reallocUtilityCores(params)
	default:
		return nil, errUnknownMethod(method)
	}
}

func (s *Server) onActiveCommitment(params json.RawMessage) error {
	var p struct {
		GlobalNonce   hexBytes32               `json:"global_nonce"`
		Difficulty    hexBytes32               `json:"difficulty"`
		CUAllocation  map[string]hexBytes32    `json:"cu_allocation"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return err
	}

	allocation, err := decodeAllocation(p.CUAllocation)
	if err != nil {
		return err
	}
	epoch := ccptypes.EpochParameters{
		GlobalNonce: ccptypes.Hash32(p.GlobalNonce),
		Difficulty:  ccptypes.Hash32(p.Difficulty),
	}

	correlationID := ccpapi.NewCorrelationID()
	s.log.Info("on_active_commitment received", "correlation_id", correlationID, "epoch", epoch)
	s.debouncer.submit(epoch, allocation)
	return nil
}

func (s *Server) getProofsAfter(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		ProofIdx uint64 `json:"proof_idx"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, mutexAcquireTimeout)
	defer cancel()

	return s.handler.GetProofsAfter(ctx, ccptypes.ProofIdx(p.ProofIdx))
}

func (s *Server) reallocUtilityCores(params json.RawMessage) error {
	var p struct {
		CoreIDs []uint32 `json:"core_ids"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return err
	}
	return s.handler.ReallocUtilityCores(p.CoreIDs)
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}})
}
