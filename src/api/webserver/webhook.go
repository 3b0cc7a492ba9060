package webserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/stake-plus/base-buddies/src/data"
)

// Webhook accepts notifications from the mini-app host. Bodies are
// logged and, with a database, kept in webhook_events.
type Webhook struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewWebhook(db *gorm.DB, log *zap.Logger) Webhook {
	return Webhook{db: db, log: log.Named("webhook")}
}

func (w Webhook) Receive(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		w.fail(c, err)
		return
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		w.fail(c, err)
		return
	}

	var ev data.WebhookEvent
	if obj, ok := body.(map[string]any); ok {
		ev = describe(obj)
	}
	w.log.Info("webhook received", zap.String("event", ev.Event), zap.Uint64("fid", ev.FID), zap.ByteString("body", raw))

	if w.db != nil {
		ev.Payload = string(raw)
		if err := data.SaveWebhookEvent(w.db, &ev); err != nil {
			w.log.Warn("store webhook", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (w Webhook) fail(c *gin.Context, err error) {
	w.log.Error("webhook error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// describe pulls the event name and fid out of a body. Signed bodies
// carry them base64url encoded in payload and header.
func describe(body map[string]any) data.WebhookEvent {
	var ev data.WebhookEvent
	ev.Event, _ = body["event"].(string)
	if f, ok := body["fid"].(float64); ok && f > 0 {
		ev.FID = uint64(f)
	}
	if ev.Event == "" {
		var p struct {
			Event string `json:"event"`
		}
		if decodeSegment(body["payload"], &p) {
			ev.Event = p.Event
		}
	}
	if ev.FID == 0 {
		var h struct {
			FID uint64 `json:"fid"`
		}
		if decodeSegment(body["header"], &h) {
			ev.FID = h.FID
		}
	}
	return ev
}

func decodeSegment(v any, out any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return false
	}
	return json.Unmarshal(b, out) == nil
}
