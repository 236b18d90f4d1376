package telephony

import (
	"net/http"

	"collections-portal/pkg/logger"

	"github.com/gin-gonic/gin"
)

// VoiceWebhookHandler answers the provider's voice webhook for calls placed
// through the TwiML application: it reads the destination and writes TwiML.
//
// No business logic here. The destination arrives as form field or query
// parameter "To"; a missing destination produces a spoken fallback, not an
// error.
type VoiceWebhookHandler struct {
	// CallerID is the fixed outbound number presented to the callee.
	CallerID string
}

func (h VoiceWebhookHandler) HandleVoice(c *gin.Context) {
	log := logger.FromGin(c)

	to := c.PostForm("To")
	if to == "" {
		to = c.Query("To")
	}

	twiml, err := RenderVoiceTwiML(h.CallerID, to)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}

	log.Info("voice webhook answered", "to", to)
	c.Header("Content-Type", "text/xml")
	c.String(http.StatusOK, twiml)
}
