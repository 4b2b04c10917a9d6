package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"

	"questchain/core"
	"questchain/core/types"
	"questchain/native/quest"
	"questchain/storage/eventlog"
)

// ExecuteResult acknowledges a committed mutating call.
type ExecuteResult struct {
	Height uint64        `json:"height"`
	Time   uint64        `json:"time"`
	Events []types.Event `json:"events"`
}

func newExecuteResult(res *core.Result) *ExecuteResult {
	evts := res.Events
	if evts == nil {
		evts = []types.Event{}
	}
	return &ExecuteResult{Height: res.Height, Time: res.Time, Events: evts}
}

// StatusResult describes the committed chain head.
type StatusResult struct {
	Height      uint64 `json:"height"`
	Time        uint64 `json:"time"`
	Initialized bool   `json:"initialized"`
}

type listEventsParams struct {
	Type    string        `json:"type,omitempty"`
	QuestID *core.QuestID `json:"quest_id,omitempty"`
	After   int64         `json:"after,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// ListEventsResult is one page of the event journal. Next is the cursor to
// pass as "after" for the following page; zero when the page is empty.
type ListEventsResult struct {
	Events []eventlog.Record `json:"events"`
	Next   int64             `json:"next"`
}

func (s *Server) execute(r *http.Request, msg core.ExecuteMsg) (interface{}, *RPCError) {
	sender, authErr := s.requireAuth(r)
	if authErr != nil {
		return nil, authErr
	}
	res, err := s.ledger.Execute(r.Context(), sender, msg)
	if err != nil {
		return nil, ledgerError(err)
	}
	return newExecuteResult(res), nil
}

func (s *Server) query(r *http.Request, msg core.QueryMsg) (interface{}, *RPCError) {
	out, err := s.ledger.Query(r.Context(), msg)
	if err != nil {
		return nil, ledgerError(err)
	}
	return out, nil
}

func (s *Server) handleInstantiate(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	sender, authErr := s.requireAuth(r)
	if authErr != nil {
		return nil, authErr
	}
	var msg quest.InstantiateMsg
	if rpcErr := decodeParams(req, &msg); rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.ledger.Instantiate(r.Context(), sender, msg)
	if err != nil {
		return nil, ledgerError(err)
	}
	return newExecuteResult(res), nil
}

// handleExecute accepts a raw tagged execute message.
func (s *Server) handleExecute(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if len(req.Params) != 1 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "expected a single execute message"}
	}
	var msg core.ExecuteMsg
	if err := json.Unmarshal(req.Params[0], &msg); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	return s.execute(r, msg)
}

func (s *Server) handleCreateQuest(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var msg core.CreateQuestMsg
	if rpcErr := decodeParams(req, &msg); rpcErr != nil {
		return nil, rpcErr
	}
	return s.execute(r, core.ExecuteMsg{CreateQuest: &msg})
}

func (s *Server) handleCompleteQuest(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var msg core.CompleteQuestMsg
	if rpcErr := decodeParams(req, &msg); rpcErr != nil {
		return nil, rpcErr
	}
	return s.execute(r, core.ExecuteMsg{CompleteQuest: &msg})
}

func (s *Server) handleTransfer(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var msg core.TransferMsg
	if rpcErr := decodeParams(req, &msg); rpcErr != nil {
		return nil, rpcErr
	}
	return s.execute(r, core.ExecuteMsg{Transfer: &msg})
}

func (s *Server) handleAdminWithdraw(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var msg core.AdminWithdrawMsg
	if rpcErr := decodeParams(req, &msg); rpcErr != nil {
		return nil, rpcErr
	}
	return s.execute(r, core.ExecuteMsg{AdminWithdraw: &msg})
}

// handleQuery accepts a raw tagged query message.
func (s *Server) handleQuery(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if len(req.Params) != 1 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "expected a single query message"}
	}
	var msg core.QueryMsg
	if err := json.Unmarshal(req.Params[0], &msg); err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	return s.query(r, msg)
}

func (s *Server) handleAddressQuery(r *http.Request, req *RPCRequest, build func(*core.AddressQuery) core.QueryMsg) (interface{}, *RPCError) {
	var q core.AddressQuery
	if rpcErr := decodeParams(req, &q); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(r, build(&q))
}

func (s *Server) handleGetQuest(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	var q core.QuestQuery
	if rpcErr := decodeParams(req, &q); rpcErr != nil {
		return nil, rpcErr
	}
	return s.query(r, core.QueryMsg{GetQuest: &q})
}

func (s *Server) handleListEvents(r *http.Request, req *RPCRequest) (interface{}, *RPCError) {
	if s.events == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event journal not configured"}
	}
	var params listEventsParams
	if len(req.Params) > 0 {
		if rpcErr := decodeParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	if params.After < 0 {
		return nil, &RPCError{Code: codeInvalidParams, Message: "after must not be negative"}
	}
	if params.Limit < 0 || params.Limit > eventlog.MaxLimit {
		return nil, &RPCError{Code: codeInvalidParams, Message: "limit must be between 0 and " + strconv.Itoa(eventlog.MaxLimit)}
	}
	filter := eventlog.Filter{Type: params.Type, After: params.After, Limit: params.Limit}
	if params.QuestID != nil {
		id := uint64(*params.QuestID)
		filter.QuestID = &id
	}
	records, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list events failed", "error", err)
		return nil, &RPCError{Code: codeServerError, Message: "failed to read event journal"}
	}
	if records == nil {
		records = []eventlog.Record{}
	}
	result := &ListEventsResult{Events: records}
	if n := len(records); n > 0 {
		result.Next = records[n-1].Sequence
	}
	return result, nil
}

func (s *Server) handleStatus(r *http.Request, _ *RPCRequest) (interface{}, *RPCError) {
	initialized, err := s.ledger.IsInitialized()
	if err != nil {
		return nil, ledgerError(err)
	}
	head := s.ledger.Head()
	return &StatusResult{Height: head.Height, Time: head.Time, Initialized: initialized}, nil
}
