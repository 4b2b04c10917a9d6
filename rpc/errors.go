package rpc

import (
	"errors"

	"questchain/core"
	"questchain/native/quest"
)

// Ledger error codes. The JSON-RPC reserved range stays with the transport
// errors; ledger rejections use -32030 and up.
const (
	codeInsufficientFunds  = -32030
	codeQuestNotFound      = -32031
	codeAlreadyCompleted   = -32032
	codeSelfCompletion     = -32033
	codeForbidden          = -32003
	codeNotInitialized     = -32035
	codeAlreadyInitialized = -32036
)

type ledgerErrorData struct {
	Kind      string `json:"kind"`
	Required  string `json:"required,omitempty"`
	Available string `json:"available,omitempty"`
}

// ledgerError maps a ledger failure onto a JSON-RPC error. Storage failures
// are reported without their cause.
func ledgerError(err error) *RPCError {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrInvalidMessage) {
		return &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	if errors.Is(err, core.ErrLedgerClosed) {
		return &RPCError{Code: codeServerError, Message: "ledger unavailable"}
	}
	kind := quest.ErrorKind(err)
	data := ledgerErrorData{Kind: kind}
	code := codeServerError
	switch kind {
	case quest.KindInvalidAmount, quest.KindInvalidAddress:
		code = codeInvalidParams
	case quest.KindInsufficientFunds:
		code = codeInsufficientFunds
		var funds *quest.InsufficientFundsError
		if errors.As(err, &funds) {
			data.Required = quest.FormatAmount(funds.Required)
			data.Available = quest.FormatAmount(funds.Available)
		}
	case quest.KindNotFound:
		code = codeQuestNotFound
	case quest.KindAlreadyCompleted:
		code = codeAlreadyCompleted
	case quest.KindSelfCompletion:
		code = codeSelfCompletion
	case quest.KindUnauthorized:
		code = codeForbidden
	case quest.KindNotInitialized:
		code = codeNotInitialized
	case quest.KindAlreadyInitialized:
		code = codeAlreadyInitialized
	default:
		return &RPCError{Code: codeServerError, Message: "internal error", Data: data}
	}
	return &RPCError{Code: code, Message: err.Error(), Data: data}
}
