package notify

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"connectify/middleware/security"
	"connectify/module/notify/service"
	"connectify/tools/web"
)

type API struct {
	svc *service.Notifier
}

func NewAPI(svc *service.Notifier) *API { return &API{svc: svc} }

func (a *API) Register(r gin.IRoutes) {
	r.GET("/notifications", a.list)
	r.GET("/notifications/unseen", a.unseenCount)
	r.POST("/notifications/seen", a.markAllSeen)
}

func (a *API) list(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	notes, err := a.svc.List(c.Request.Context(), security.UserID(c), limit)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"notifications": notes})
}

func (a *API) unseenCount(c *gin.Context) {
	n, err := a.svc.UnseenCount(c.Request.Context(), security.UserID(c))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"unseen": n})
}

func (a *API) markAllSeen(c *gin.Context) {
	ids, err := a.svc.MarkAllSeen(c.Request.Context(), security.UserID(c))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"seenNotificationIds": ids})
}
