package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/chain"
	"github.com/stake-plus/base-buddies/src/challenge"
	"github.com/stake-plus/base-buddies/src/logging"
	"github.com/stake-plus/base-buddies/src/service"
)

type ChallengeHandlers struct {
	catalog   Catalog
	svc       Challenges
	contract  common.Address
	txTimeout time.Duration
	log       *zap.Logger
}

func NewChallengeHandlers(catalog Catalog, svc Challenges, contract common.Address, txTimeout time.Duration, log *zap.Logger) ChallengeHandlers {
	if txTimeout <= 0 {
		txTimeout = 3 * time.Minute
	}
	return ChallengeHandlers{catalog: catalog, svc: svc, contract: contract, txTimeout: txTimeout, log: log.Named("challenges")}
}

func (h ChallengeHandlers) List(c *gin.Context) {
	views, err := h.catalog.List(c, challenge.Query{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Sort:     c.Query("sort"),
	})
	if err != nil {
		h.upstream(c, err)
		return
	}
	if views == nil {
		views = []challenge.View{}
	}
	writeTagged(c, views)
}

func (h ChallengeHandlers) Get(c *gin.Context) {
	id, ok := challengeID(c)
	if !ok {
		return
	}
	v, err := h.svc.Get(c, id)
	if err != nil {
		h.upstream(c, err)
		return
	}
	writeTagged(c, v)
}

func (h ChallengeHandlers) Dashboard(c *gin.Context) {
	addr := c.Param("address")
	if !common.IsHexAddress(addr) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid address"})
		return
	}
	d, err := h.svc.Dashboard(c, addr)
	if err != nil {
		h.upstream(c, err)
		return
	}
	writeTagged(c, d)
}

// txRequest is what the wallet signs and sends.
type txRequest struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	Deadline int64  `json:"deadline,omitempty"`
}

func (h ChallengeHandlers) txFor(call challenge.Call) (txRequest, error) {
	input := call.Input
	if len(input) == 0 {
		var err error
		if input, err = chain.Pack(call); err != nil {
			return txRequest{}, err
		}
	}
	value := "0"
	if call.Value != nil {
		value = call.Value.String()
	}
	return txRequest{To: h.contract.Hex(), Data: hexutil.Encode(input), Value: value}, nil
}

func (h ChallengeHandlers) PrepareCreate(c *gin.Context) {
	var form challenge.CreateForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	plan, err := h.svc.PrepareCreate(c, c.GetString("addr"), form)
	if err != nil {
		h.rejected(c, err)
		return
	}
	tx, err := h.txFor(plan.Call)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	tx.Deadline = plan.Deadline
	c.JSON(http.StatusOK, tx)
}

func (h ChallengeHandlers) PrepareAction(c *gin.Context) {
	id, ok := challengeID(c)
	if !ok {
		return
	}
	action, ok := service.ParseAction(c.Param("action"))
	if !ok || action == service.ActionCreate {
		c.JSON(http.StatusBadRequest, gin.H{"err": "unknown action"})
		return
	}
	var form challenge.EditForm
	if action == service.ActionEdit {
		if err := c.ShouldBindJSON(&form); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
			return
		}
	}
	call, err := h.svc.Prepare(c, action, id, form)
	if err != nil {
		h.rejected(c, err)
		return
	}
	tx, err := h.txFor(call)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if action == service.ActionEdit {
		tx.Deadline = form.Deadline
	}
	c.JSON(http.StatusOK, tx)
}

func (h ChallengeHandlers) Confirm(c *gin.Context) {
	var req struct {
		Action      string `json:"action"      binding:"required"`
		ChallengeID uint64 `json:"challengeId"`
		TxHash      string `json:"txHash"      binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	action, ok := service.ParseAction(req.Action)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"err": "unknown action"})
		return
	}
	if action != service.ActionCreate && req.ChallengeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "challengeId is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.txTimeout)
	defer cancel()
	rcpt, err := h.svc.Confirm(ctx, action, req.ChallengeID, req.TxHash, c.GetString("addr"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, rcpt)
	case errors.Is(err, chain.ErrReverted):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"err": logging.Explain(err)})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"err": "transaction not mined yet"})
	default:
		h.rejected(c, err)
	}
}

// rejected maps validation failures to 400 and everything else to 502.
func (h ChallengeHandlers) rejected(c *gin.Context, err error) {
	var verr *challenge.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"err": verr.Error(), "field": verr.Field})
		return
	}
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
		return
	}
	h.log.Warn("write rejected", zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"err": logging.Explain(err)})
}

func (h ChallengeHandlers) upstream(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": err.Error()})
		return
	}
	h.log.Error("read failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadGateway, gin.H{"err": "could not read challenges"})
}

func challengeID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid challenge id"})
		return 0, false
	}
	return id, true
}

// writeTagged writes v as JSON with a content ETag and answers 304 when
// the client already has it.
func writeTagged(c *gin.Context, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(body))
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
