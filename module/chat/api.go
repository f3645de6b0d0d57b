package chat

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"connectify/middleware/security"
	"connectify/module/chat/service"
	"connectify/tools/errs"
	"connectify/tools/web"
)

type API struct {
	svc *service.ChatService
}

func NewAPI(svc *service.ChatService) *API { return &API{svc: svc} }

// Register mounts the chat routes under an authenticated group.
func (a *API) Register(r gin.IRoutes) {
	r.POST("/chats", a.createDirect)
	r.POST("/chats/group", a.createGroup)
	r.GET("/chats", a.list)
	r.GET("/chats/:chatId", a.get)
	r.DELETE("/chats/:chatId", a.delete)
	r.PUT("/chats/:chatId/members/:userId", a.addMember)
	r.DELETE("/chats/:chatId/members/:userId", a.removeMember)
	r.POST("/chats/:chatId/messages", a.sendMessage)
	r.GET("/chats/:chatId/messages", a.listMessages)
	r.POST("/chats/:chatId/seen", a.markSeen)
}

type createDirectReq struct {
	To string `json:"to" binding:"required"`
}

func (a *API) createDirect(c *gin.Context) {
	var req createDirectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	conv, created, err := a.svc.CreateDirect(c.Request.Context(), security.UserID(c), req.To)
	if err != nil {
		web.Fail(c, err)
		return
	}
	status := 200
	if created {
		status = 201
	}
	web.OK(c, status, gin.H{"chat": conv, "created": created})
}

type createGroupReq struct {
	Name    string   `json:"name" binding:"required"`
	Members []string `json:"members" binding:"required"`
}

func (a *API) createGroup(c *gin.Context) {
	var req createGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	conv, err := a.svc.CreateGroup(c.Request.Context(), security.UserID(c), req.Name, req.Members)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 201, gin.H{"chat": conv})
}

func (a *API) list(c *gin.Context) {
	convs, err := a.svc.ListConversations(c.Request.Context(), security.UserID(c))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"chats": convs})
}

func (a *API) get(c *gin.Context) {
	conv, err := a.svc.GetConversation(c.Request.Context(), security.UserID(c), c.Param("chatId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"chat": conv})
}

func (a *API) delete(c *gin.Context) {
	if err := a.svc.DeleteConversation(c.Request.Context(), security.UserID(c), c.Param("chatId")); err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "chat deleted"})
}

func (a *API) addMember(c *gin.Context) {
	err := a.svc.AddMember(c.Request.Context(), security.UserID(c), c.Param("chatId"), c.Param("userId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "member added"})
}

func (a *API) removeMember(c *gin.Context) {
	err := a.svc.RemoveMember(c.Request.Context(), security.UserID(c), c.Param("chatId"), c.Param("userId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "member removed"})
}

type sendMessageReq struct {
	Body        string   `json:"body"`
	MessageType string   `json:"messageType"`
	Attachments []string `json:"attachments"`
}

func (a *API) sendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	msg, err := a.svc.SendMessage(c.Request.Context(), c.Param("chatId"), security.UserID(c), req.Body, req.MessageType, req.Attachments)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 201, gin.H{"message": msg})
}

func (a *API) listMessages(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	pageSize, _ := strconv.ParseInt(c.DefaultQuery("pageSize", "20"), 10, 64)
	msgs, err := a.svc.ListMessagesAndAcknowledge(c.Request.Context(), c.Param("chatId"), security.UserID(c), page, pageSize)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"messages": msgs, "page": page})
}

func (a *API) markSeen(c *gin.Context) {
	ids, err := a.svc.MarkSeen(c.Request.Context(), c.Param("chatId"), security.UserID(c))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"seenMessageIds": ids})
}
