package server

import (
	"net/http"
	"strconv"

	"github.com/Jacobgokul/Pinge/internal/auth"
	"github.com/Jacobgokul/Pinge/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handler aggregates the HTTP handlers with their injected services.
type Handler struct {
	userSvc    *service.UserService
	contactSvc *service.ContactService
	msgSvc     *service.MessageService
	groupSvc   *service.GroupService
}

func NewHandler(userSvc *service.UserService, contactSvc *service.ContactService, msgSvc *service.MessageService, groupSvc *service.GroupService) *Handler {
	return &Handler{userSvc: userSvc, contactSvc: contactSvc, msgSvc: msgSvc, groupSvc: groupSvc}
}

// respondError maps typed service errors to their status; anything else
// is logged with context and surfaced as a generic message.
func respondError(c *gin.Context, err error, op string) {
	status, msg, typed := service.HTTPStatus(err)
	if !typed {
		log.Error().Err(err).Str("user_id", auth.GetUserID(c)).Msg(op)
	}
	c.JSON(status, gin.H{"error": msg})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user, err := h.userSvc.Register(req.Email, req.Username, req.Password)
	if err != nil {
		respondError(c, err, "register")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user registered successfully", "user_id": user.ID})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.userSvc.Login(req.Email, req.Password, c.GetHeader("User-Agent"), c.ClientIP())
	if err != nil {
		respondError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Logout revokes exactly the presented credential. It is not behind the
// auth middleware: an already-revoked session must answer "already
// logged out", not a blanket 401.
func (h *Handler) Logout(c *gin.Context) {
	token := auth.BearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	if err := h.userSvc.Logout(token); err != nil {
		respondError(c, err, "logout")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userSvc.ListUsers()
	if err != nil {
		respondError(c, err, "list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) SendContactRequest(c *gin.Context) {
	var req struct {
		ReceiverEmail string `json:"receiver_email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ReceiverEmail == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	id, err := h.contactSvc.SendRequest(auth.GetUserID(c), req.ReceiverEmail)
	if err != nil {
		respondError(c, err, "send contact request")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "contact request sent successfully", "request_id": id})
}

func (h *Handler) PendingContactRequests(c *gin.Context) {
	reqs, err := h.contactSvc.PendingRequests(auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "pending contact requests")
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *Handler) AcceptContactRequest(c *gin.Context) {
	if err := h.contactSvc.Accept(auth.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err, "accept contact request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contact request accepted"})
}

func (h *Handler) RejectContactRequest(c *gin.Context) {
	if err := h.contactSvc.Reject(auth.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err, "reject contact request")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "contact request rejected"})
}

func (h *Handler) ListContacts(c *gin.Context) {
	contacts, err := h.contactSvc.ListContacts(auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "list contacts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (h *Handler) SendDirectMessage(c *gin.Context) {
	var req struct {
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.msgSvc.SendDirect(auth.GetUser(c), req.ReceiverID, req.Content)
	if err != nil {
		respondError(c, err, "send direct message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) DirectHistory(c *gin.Context) {
	limit, offset := pagination(c)
	msgs, err := h.msgSvc.DirectHistory(auth.GetUserID(c), c.Param("contact_id"), limit, offset)
	if err != nil {
		respondError(c, err, "direct history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) ListUnread(c *gin.Context) {
	msgs, err := h.msgSvc.ListUnread(auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "list unread")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) UnreadSummary(c *gin.Context) {
	summary, err := h.msgSvc.Summary(auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "unread summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) MarkMessagesRead(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	count, err := h.msgSvc.MarkMessagesRead(auth.GetUserID(c), req.MessageIDs)
	if err != nil {
		respondError(c, err, "mark messages read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked " + strconv.FormatInt(count, 10) + " message(s) as read", "marked_count": count})
}

func (h *Handler) MarkContactRead(c *gin.Context) {
	count, err := h.msgSvc.MarkContactRead(auth.GetUserID(c), c.Param("contact_id"))
	if err != nil {
		respondError(c, err, "mark contact read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked " + strconv.FormatInt(count, 10) + " message(s) as read", "marked_count": count})
}

func (h *Handler) MarkGroupRead(c *gin.Context) {
	groupID := c.Param("group_id")
	if err := h.msgSvc.MarkGroupRead(auth.GetUserID(c), groupID); err != nil {
		respondError(c, err, "mark group read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "group marked as read", "group_id": groupID})
}

func (h *Handler) CreateGroup(c *gin.Context) {
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Members     []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	group, err := h.groupSvc.Create(auth.GetUser(c), req.Name, req.Description, req.Members)
	if err != nil {
		respondError(c, err, "create group")
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *Handler) ListGroups(c *gin.Context) {
	groups, err := h.groupSvc.ListGroups(auth.GetUserID(c))
	if err != nil {
		respondError(c, err, "list groups")
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

func (h *Handler) SendGroupMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.msgSvc.SendGroup(auth.GetUser(c), c.Param("id"), req.Content)
	if err != nil {
		respondError(c, err, "send group message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) GroupHistory(c *gin.Context) {
	limit, offset := pagination(c)
	msgs, err := h.msgSvc.GroupHistory(auth.GetUserID(c), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err, "group history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) ListGroupMembers(c *gin.Context) {
	members, err := h.groupSvc.ListMembers(auth.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "list group members")
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *Handler) AddGroupMembers(c *gin.Context) {
	var req struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.UserIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.groupSvc.AddMembers(auth.GetUserID(c), c.Param("id"), req.UserIDs)
	if err != nil {
		respondError(c, err, "add group members")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) RemoveGroupMember(c *gin.Context) {
	if err := h.groupSvc.RemoveMember(auth.GetUserID(c), c.Param("id"), c.Param("user_id")); err != nil {
		respondError(c, err, "remove group member")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member removed from group successfully"})
}

func (h *Handler) ChangeGroupRole(c *gin.Context) {
	var req struct {
		Role string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.groupSvc.ChangeRole(auth.GetUserID(c), c.Param("id"), c.Param("user_id"), req.Role); err != nil {
		respondError(c, err, "change group role")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role updated successfully", "new_role": req.Role})
}

func (h *Handler) LeaveGroup(c *gin.Context) {
	if err := h.groupSvc.Leave(auth.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err, "leave group")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left group successfully"})
}

func (h *Handler) DeleteGroup(c *gin.Context) {
	if err := h.groupSvc.Delete(auth.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err, "delete group")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "group deleted successfully"})
}

func (h *Handler) UpdateGroupInfo(c *gin.Context) {
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	group, err := h.groupSvc.UpdateInfo(auth.GetUserID(c), c.Param("id"), req.Name, req.Description)
	if err != nil {
		respondError(c, err, "update group info")
		return
	}
	c.JSON(http.StatusOK, group)
}
