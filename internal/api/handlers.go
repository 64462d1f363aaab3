package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/lifecycle"
	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/internal/reasoning"
)

// ReasonRequest 是 POST /api/v1/reason 的请求体。
type ReasonRequest struct {
	Question         string `json:"question"`
	RequesterAddress string `json:"requesterAddress,omitempty"`
}

// ReasonResponse 在证明之外附带终结答案。
type ReasonResponse struct {
	*proof.Proof
	Answer string `json:"answer"`
}

// RedriveResponse 是重新驱动的受理结果。
type RedriveResponse struct {
	ProofID string       `json:"proofId"`
	Status  proof.Status `json:"status"`
	Queued  bool         `json:"queued"`
}

const maxQuestionBytes = 1 << 16

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReason 调用推理引擎并登记证明。响应只等待模型与步骤提取，锚定在后台完成。
func (s *Server) handleReason(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil || s.lifecycle == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "推理服务未初始化"))
		return
	}

	var req ReasonRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	req.RequesterAddress = strings.TrimSpace(req.RequesterAddress)
	if req.Question == "" {
		writeError(w, xerrors.New(proof.CodeProofValidation, "问题不能为空"))
		return
	}
	if req.RequesterAddress != "" && !common.IsHexAddress(req.RequesterAddress) {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "requesterAddress 不是合法的地址"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()
	raw, err := s.engine.Generate(ctx, req.Question)
	if err != nil {
		if !xerrors.HasCode(err, reasoning.CodeModelTimeout) && !xerrors.HasCode(err, reasoning.CodeModelUnavailable) {
			err = reasoning.Unavailable(err, "推理引擎调用失败")
		}
		s.logger.Warn("推理引擎调用失败", slog.String("code", string(xerrors.CodeOf(err))), slog.Any("error", err))
		writeError(w, err)
		return
	}

	// 模型调用之后改用请求上下文，避免超时截断登记。
	p, err := s.lifecycle.Submit(r.Context(), lifecycle.SubmitRequest{
		Question:          req.Question,
		RawOutput:         raw,
		RequesterIdentity: req.RequesterAddress,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ReasonResponse{Proof: p, Answer: p.FinalAnswer()})
}

func (s *Server) handleGetProof(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "proofId"))
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少证明 ID"))
		return
	}
	p, err := s.queries.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListProofs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须是非负整数"))
			return
		}
		limit = parsed
	}

	var statuses []proof.Status
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status := proof.Status(strings.ToUpper(strings.TrimSpace(part)))
			if !proof.IsValidStatus(status) {
				writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "未知的证明状态: "+part))
				return
			}
			statuses = append(statuses, status)
		}
	}

	proofs, err := s.queries.ListRecent(r.Context(), limit, q.Get("address"), statuses...)
	if err != nil {
		writeError(w, err)
		return
	}
	if proofs == nil {
		proofs = []*proof.Proof{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"proofs": proofs, "count": len(proofs)})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	report, err := s.queries.Verify(r.Context(), chi.URLParam(r, "proofId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleRedrive 显式重新投递停滞的证明，受理后立即返回 202。
func (s *Server) handleRedrive(w http.ResponseWriter, r *http.Request) {
	p, err := s.lifecycle.Redrive(r.Context(), chi.URLParam(r, "proofId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, RedriveResponse{ProofID: p.ProofID, Status: p.Status, Queued: true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queries.Stats(r.Context()))
}
