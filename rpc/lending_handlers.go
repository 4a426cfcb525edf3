package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/adnhq/collateralized-lending/native/lending"
)

type loanIDParams struct {
	ID uint64 `json:"id"`
}

type callerLoanParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
}

type takeLoanParams struct {
	Caller         string `json:"caller"`
	CollateralKind string `json:"collateralKind"`
	AmountIn       string `json:"amountIn"`
	AmountOut      string `json:"amountOut"`
}

type reimburseParams struct {
	Caller string `json:"caller"`
	ID     uint64 `json:"id"`
	Amount string `json:"amount"`
}

type collectInterestParams struct {
	Caller           string `json:"caller"`
	ID               uint64 `json:"id"`
	CollateralAmount string `json:"collateralAmount"`
}

type withdrawParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type setRateParams struct {
	CollateralKind string `json:"collateralKind"`
	Price          string `json:"price"`
}

type takeLoanResult struct {
	LoanID uint64 `json:"loanId"`
}

type amountResult struct {
	Amount string `json:"amount"`
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "expected a single params object"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error()}
	}
	return nil
}

func parseCaller(value string) (common.Address, *RPCError) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, &RPCError{Code: codeInvalidParams, Message: "caller must be a hex address"}
	}
	return common.HexToAddress(value), nil
}

func parseKind(value string) (lending.CollateralKind, *RPCError) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "A":
		return lending.CollateralA, nil
	case "B":
		return lending.CollateralB, nil
	default:
		return 0, &RPCError{Code: codeInvalidParams, Message: "collateralKind must be \"A\" or \"B\""}
	}
}

func parseAmount(field, value string) (*big.Int, *RPCError) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: field + " must be a decimal integer"}
	}
	return amount, nil
}

func writeParamError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	writeError(w, http.StatusBadRequest, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
}

func (s *Server) handleGetLoanInfo(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	loan, err := s.engine.GetLoanInfo(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, loan)
}

func (s *Server) handleGetTotalInterest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params loanIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	total, err := s.engine.GetTotalInterest(params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: total.String()})
}

func (s *Server) handleTotalLoansIssued(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	total, err := s.engine.TotalLoansIssued()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"total": total})
}

func (s *Server) handleTakeLoan(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params takeLoanParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	kind, rpcErr := parseKind(params.CollateralKind)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	amountIn, rpcErr := parseAmount("amountIn", params.AmountIn)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	amountOut, rpcErr := parseAmount("amountOut", params.AmountOut)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}

	loanID, err := s.engine.TakeLoan(caller, kind, amountIn, amountOut)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.log.Info("loan issued", "loanId", loanID, "borrower", caller.Hex(), "collateral", kind.String())
	writeResult(w, req.ID, takeLoanResult{LoanID: loanID})
}

func (s *Server) handlePayInterest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerLoanParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	paid, err := s.engine.PayInterest(caller, params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: paid.String()})
}

func (s *Server) handleReimburse(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params reimburseParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.engine.Reimburse(caller, params.ID, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleRefinance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerLoanParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	claimed, err := s.engine.Refinance(caller, params.ID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, amountResult{Amount: claimed.String()})
}

func (s *Server) handleCollectInterest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params collectInterestParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	amount, rpcErr := parseAmount("collateralAmount", params.CollateralAmount)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.engine.CollectInterest(caller, params.ID, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.log.Info("interest collected", "loanId", params.ID, "collateralSeized", amount.String())
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleReinstate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params callerLoanParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.engine.Reinstate(caller, params.ID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	s.log.Info("loan reinstated", "loanId", params.ID)
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleWithdrawTokens(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params withdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseCaller(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	amount, rpcErr := parseAmount("amount", params.Amount)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.engine.WithdrawTokens(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params setRateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	kind, rpcErr := parseKind(params.CollateralKind)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	feed, ok := s.feeds[kind]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "no manual feed bound for collateral "+kind.String(), nil)
		return
	}
	if err := feed.SetDecimal(params.Price); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.log.Info("manual price updated", "collateral", kind.String(), "price", strings.TrimSpace(params.Price))
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.events == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "event retention not configured", nil)
		return
	}
	writeResult(w, req.ID, s.events.Events())
}
