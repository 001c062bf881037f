package server

import (
	"net/http"
	"time"

	"github.com/Jacobgokul/Pinge/internal/auth"
	"github.com/Jacobgokul/Pinge/internal/config"
	"github.com/Jacobgokul/Pinge/internal/metrics"
	"github.com/Jacobgokul/Pinge/internal/mw"
	"github.com/Jacobgokul/Pinge/internal/notify"
	"github.com/Jacobgokul/Pinge/internal/service"
	"github.com/Jacobgokul/Pinge/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter wires middleware, the REST API and the WebSocket entry
// point onto one engine.
func SetupRouter(cfg config.Config, db *gorm.DB, registry *ws.Registry) *gin.Engine {
	dispatcher := notify.NewDispatcher(registry)
	userSvc := service.NewUserService(db, cfg)
	contactSvc := service.NewContactService(db)
	msgSvc := service.NewMessageService(db, dispatcher)
	groupSvc := service.NewGroupService(db)
	h := NewHandler(userSvc, contactSvc, msgSvc, groupSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	// Logout stays outside the auth middleware so an already revoked
	// session is answered distinctly instead of a blanket 401.
	api.POST("/auth/logout", h.Logout)

	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))

	authed.GET("/auth/users", h.ListUsers)

	authed.POST("/contacts/requests", h.SendContactRequest)
	authed.GET("/contacts/requests", h.PendingContactRequests)
	authed.POST("/contacts/requests/:id/accept", h.AcceptContactRequest)
	authed.POST("/contacts/requests/:id/reject", h.RejectContactRequest)
	authed.GET("/contacts", h.ListContacts)

	authed.POST("/messages/direct", h.SendDirectMessage)
	authed.GET("/messages/direct/:contact_id", h.DirectHistory)
	authed.GET("/messages/unread", h.ListUnread)
	authed.GET("/messages/unread/count", h.UnreadSummary)
	authed.POST("/messages/mark-read", h.MarkMessagesRead)
	authed.POST("/messages/mark-read/contact/:contact_id", h.MarkContactRead)
	authed.POST("/messages/mark-read/group/:group_id", h.MarkGroupRead)

	authed.POST("/messages/groups", h.CreateGroup)
	authed.GET("/messages/groups", h.ListGroups)
	authed.POST("/messages/groups/:id/messages", h.SendGroupMessage)
	authed.GET("/messages/groups/:id/messages", h.GroupHistory)
	authed.GET("/messages/groups/:id/members", h.ListGroupMembers)
	authed.POST("/messages/groups/:id/members", h.AddGroupMembers)
	authed.DELETE("/messages/groups/:id/members/:user_id", h.RemoveGroupMember)
	authed.PATCH("/messages/groups/:id/members/:user_id/role", h.ChangeGroupRole)
	authed.POST("/messages/groups/:id/leave", h.LeaveGroup)
	authed.DELETE("/messages/groups/:id", h.DeleteGroup)
	authed.PATCH("/messages/groups/:id", h.UpdateGroupInfo)

	r.GET("/ws", ws.Serve(registry, db, cfg))

	return r
}
