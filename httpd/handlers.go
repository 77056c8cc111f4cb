package httpd

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bibliotecavirtual/biblioteca-sheets/ledger"
	"github.com/bibliotecavirtual/biblioteca-sheets/log"
	"github.com/bibliotecavirtual/biblioteca-sheets/notify"
)

type handler struct {
	ledger     Ledger
	notifier   Notifier
	accessURL  string
	notifyUser bool
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Token   string `json:"token,omitempty"`
	Email   string `json:"email,omitempty"`
}

type emailRequest struct {
	Email string `json:"email" form:"email" binding:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" form:"token" binding:"required"`
}

const (
	msgMissingEmail = "missing or invalid email"
	msgMissingToken = "missing token"
	msgRequestSent  = "request sent to administrator"
	msgInternal     = "internal error"
)

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// POST /solicitar
func (h *handler) request(c *gin.Context) {
	var rq emailRequest
	if err := c.ShouldBind(&rq); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: msgMissingEmail})
		return
	}

	ctx := c.Request.Context()

	result, err := h.ledger.CheckAccess(ctx, rq.Email)
	if err != nil {
		internalError(c, "/solicitar", err)
		return
	}

	if result.OK {
		c.JSON(http.StatusOK, response{Success: true, Token: result.Token})
		return
	}

	if result.Reason == ledger.UserDisabled {
		c.JSON(http.StatusOK, response{Message: string(result.Reason)})
		return
	}

	if err := h.notifier.NotifyAdmin(ctx, rq.Email); err != nil {
		internalError(c, "/solicitar", err)
		return
	}

	c.JSON(http.StatusOK, response{Message: msgRequestSent})
}

// GET /autorizar?email=
func (h *handler) authorise(c *gin.Context) {
	var rq emailRequest
	if err := c.ShouldBindQuery(&rq); err != nil {
		c.JSON(http.StatusBadRequest, response{Message: msgMissingEmail})
		return
	}

	ctx := c.Request.Context()

	result, err := h.ledger.Issue(ctx, rq.Email)
	if err != nil {
		internalError(c, "/autorizar", err)
		return
	}

	reply := response{
		Success: true,
		Token:   result.Token,
	}

	if h.notifyUser && strings.TrimSpace(h.accessURL) != "" {
		if link, err := notify.AccessURL(h.accessURL, result.Token); err != nil {
			log.Warnf("/autorizar: %v", err)
			reply.Message = "access granted, could not notify user"
		} else if err := h.notifier.NotifyUser(ctx, result.Email, link); err != nil {
			log.Warnf("/autorizar: %v", err)
			reply.Message = "access granted, could not notify user"
		} else {
			reply.Message = "access granted, user notified"
		}
	}

	c.JSON(http.StatusOK, reply)
}

// GET /validar?token=
func (h *handler) validate(c *gin.Context) {
	var rq tokenRequest
	if err := c.ShouldBindQuery(&rq); err != nil || strings.TrimSpace(rq.Token) == "" {
		c.JSON(http.StatusBadRequest, response{Message: msgMissingToken})
		return
	}

	result, err := h.ledger.Validate(c.Request.Context(), rq.Token)
	if err != nil {
		internalError(c, "/validar", err)
		return
	}

	if !result.OK {
		c.JSON(http.StatusOK, response{Message: string(result.Reason)})
		return
	}

	c.JSON(http.StatusOK, response{Success: true, Email: result.Email})
}

// PUT /marcar
func (h *handler) markUsed(c *gin.Context) {
	var rq tokenRequest
	if err := c.ShouldBind(&rq); err != nil || strings.TrimSpace(rq.Token) == "" {
		c.JSON(http.StatusBadRequest, response{Message: msgMissingToken})
		return
	}

	result, err := h.ledger.MarkUsed(c.Request.Context(), rq.Token)
	if err != nil {
		internalError(c, "/marcar", err)
		return
	}

	if !result.OK {
		c.JSON(http.StatusOK, response{Message: string(result.Reason)})
		return
	}

	c.JSON(http.StatusOK, response{Success: true})
}

func internalError(c *gin.Context, route string, err error) {
	log.Errorf("%v: %v", route, err)

	c.JSON(http.StatusInternalServerError, response{Message: msgInternal})
}
