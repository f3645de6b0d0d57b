package social

import (
	"github.com/gin-gonic/gin"

	"connectify/middleware/security"
	"connectify/module/social/service"
	"connectify/tools/errs"
	"connectify/tools/web"
)

type API struct {
	svc *service.SocialService
}

func NewAPI(svc *service.SocialService) *API { return &API{svc: svc} }

func (a *API) Register(r gin.IRoutes) {
	r.POST("/follow-requests", a.sendRequest)
	r.DELETE("/follow-requests/:userId", a.cancelRequest)
	r.GET("/follow-requests", a.listRequests)
	r.POST("/follow-requests/:requestId/accept", a.acceptRequest)
	r.POST("/follow-requests/:requestId/reject", a.rejectRequest)
	r.PUT("/follows/:userId", a.follow)
	r.DELETE("/follows/:userId", a.unfollow)
	r.GET("/followers", a.followers)
	r.GET("/following", a.following)
	r.PUT("/posts/:postId/like", a.likePost)
	r.DELETE("/posts/:postId/like", a.unlikePost)
	r.POST("/posts/:postId/comments", a.commentPost)
	r.DELETE("/posts/:postId/comments/:commentId", a.deleteComment)
}

type sendRequestReq struct {
	To string `json:"to" binding:"required"`
}

func (a *API) sendRequest(c *gin.Context) {
	var req sendRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	out, err := a.svc.SendFollowRequest(c.Request.Context(), security.UserID(c), req.To)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 201, gin.H{"request": out})
}

func (a *API) cancelRequest(c *gin.Context) {
	err := a.svc.CancelFollowRequest(c.Request.Context(), security.UserID(c), c.Param("userId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "request cancelled"})
}

func (a *API) listRequests(c *gin.Context) {
	reqs, err := a.svc.ListPendingRequests(c.Request.Context(), security.UserID(c))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"requests": reqs})
}

func (a *API) acceptRequest(c *gin.Context) {
	follow, err := a.svc.AcceptFollowRequest(c.Request.Context(), security.UserID(c), c.Param("requestId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"follow": follow})
}

func (a *API) rejectRequest(c *gin.Context) {
	err := a.svc.RejectFollowRequest(c.Request.Context(), security.UserID(c), c.Param("requestId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "request rejected"})
}

func (a *API) follow(c *gin.Context) {
	follow, err := a.svc.Follow(c.Request.Context(), security.UserID(c), c.Param("userId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 201, gin.H{"follow": follow})
}

func (a *API) unfollow(c *gin.Context) {
	if err := a.svc.Unfollow(c.Request.Context(), security.UserID(c), c.Param("userId")); err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "unfollowed"})
}

func (a *API) followers(c *gin.Context) {
	out, err := a.svc.ListFollowers(c.Request.Context(), security.UserID(c))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"followers": out})
}

func (a *API) following(c *gin.Context) {
	out, err := a.svc.ListFollowing(c.Request.Context(), security.UserID(c))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"following": out})
}

type postOwnerReq struct {
	Owner string `json:"owner" binding:"required"`
}

func (a *API) likePost(c *gin.Context) {
	var req postOwnerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	err := a.svc.LikePost(c.Request.Context(), security.UserID(c), req.Owner, c.Param("postId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "liked"})
}

func (a *API) unlikePost(c *gin.Context) {
	var req postOwnerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	err := a.svc.UnlikePost(c.Request.Context(), security.UserID(c), req.Owner, c.Param("postId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "unliked"})
}

type commentReq struct {
	Owner     string `json:"owner" binding:"required"`
	CommentID string `json:"commentId" binding:"required"`
}

func (a *API) commentPost(c *gin.Context) {
	var req commentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	err := a.svc.CommentPost(c.Request.Context(), security.UserID(c), req.Owner, c.Param("postId"), req.CommentID)
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 201, gin.H{"message": "comment recorded"})
}

func (a *API) deleteComment(c *gin.Context) {
	var req postOwnerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		web.Fail(c, errs.ErrArgs.WrapMsg(err.Error()))
		return
	}
	err := a.svc.DeleteComment(c.Request.Context(), security.UserID(c), req.Owner, c.Param("postId"), c.Param("commentId"))
	if err != nil {
		web.Fail(c, err)
		return
	}
	web.OK(c, 200, gin.H{"message": "comment removed"})
}
