package webserver

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stake-plus/base-buddies/src/data"
)

type Auth struct {
	nonces    data.Nonces
	jwtSecret []byte
	log       *zap.Logger
}

func NewAuth(nonces data.Nonces, secret []byte, log *zap.Logger) Auth {
	return Auth{nonces: nonces, jwtSecret: secret, log: log.Named("auth")}
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid address"})
		return
	}
	nonce := uuid.NewString()
	if err := a.nonces.Put(c, req.Address, nonce); err != nil {
		a.log.Error("store nonce", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not issue challenge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": SignInMessage(nonce)})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	nonce, err := a.nonces.Take(c, req.Address)
	if err != nil {
		if !errors.Is(err, data.ErrNoNonce) {
			a.log.Error("read nonce", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"err": "challenge expired"})
		return
	}
	if err := verifySignature(req.Address, req.Signature, SignInMessage(nonce)); err != nil {
		a.log.Debug("signature rejected", zap.String("address", req.Address), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}
	token, err := issueJWT(req.Address, a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
