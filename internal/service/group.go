package service

import (
	"errors"
	"time"

	"github.com/Jacobgokul/Pinge/internal/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// GroupService owns the membership state machine: roles, the last-admin
// invariant and cascading deletion. A group with at least one member
// always has at least one admin.
type GroupService struct {
	db *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{db: db}
}

type GroupDTO struct {
	GroupID     string    `json:"group_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type GroupMemberDTO struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type AddMembersResult struct {
	Added          []string `json:"added_members"`
	AlreadyMembers []string `json:"already_members"`
	InvalidUsers   []string `json:"invalid_users"`
}

func groupDTO(g models.Group) GroupDTO {
	return GroupDTO{GroupID: g.ID, Name: g.Name, Description: g.Description, CreatedBy: g.CreatedBy, CreatedAt: g.CreatedAt}
}

func (s *GroupService) member(tx *gorm.DB, groupID, userID string) (*models.GroupMember, error) {
	var m models.GroupMember
	if err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *GroupService) requireAdmin(tx *gorm.DB, groupID, userID, action string) error {
	m, err := s.member(tx, groupID, userID)
	if err != nil {
		return err
	}
	if m == nil || m.Role != models.RoleAdmin {
		return Forbidden("only group admins can " + action)
	}
	return nil
}

func (s *GroupService) groupByID(tx *gorm.DB, groupID string) (*models.Group, error) {
	var g models.Group
	if err := tx.Where("id = ?", groupID).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("group not found")
		}
		return nil, err
	}
	return &g, nil
}

// Create inserts the group and its creator-admin membership in one
// transaction, so a group with members but no admin is never
// observable. Listed initial members that resolve to real users join as
// plain members; malformed or unknown ids are skipped, not fatal.
func (s *GroupService) Create(creator *models.User, name, description string, memberIDs []string) (*GroupDTO, error) {
	if name == "" {
		return nil, Invalid("group name is required")
	}
	var group models.Group
	err := s.db.Transaction(func(tx *gorm.DB) error {
		group = models.Group{Name: name, Description: description, CreatedBy: creator.ID}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		admin := models.GroupMember{GroupID: group.ID, UserID: creator.ID, Role: models.RoleAdmin}
		if err := tx.Create(&admin).Error; err != nil {
			return err
		}
		for _, id := range memberIDs {
			if _, err := uuid.Parse(id); err != nil {
				continue
			}
			if id == creator.ID {
				continue
			}
			var count int64
			if err := tx.Model(&models.User{}).Where("id = ? AND active = ?", id, true).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				continue
			}
			m := models.GroupMember{GroupID: group.ID, UserID: id, Role: models.RoleMember}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := groupDTO(group)
	return &dto, nil
}

// ListGroups returns every group the user belongs to.
func (s *GroupService) ListGroups(userID string) ([]GroupDTO, error) {
	var groups []models.Group
	err := s.db.Model(&models.Group{}).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Order("groups.created_at desc").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(groups, func(g models.Group, _ int) GroupDTO { return groupDTO(g) }), nil
}

// ListMembers returns the group roster with roles; members only.
func (s *GroupService) ListMembers(userID, groupID string) ([]GroupMemberDTO, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, Invalid("invalid group ID")
	}
	m, err := s.member(s.db, groupID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, Forbidden("you are not a member of this group")
	}
	type row struct {
		UserID   string
		Username string
		Email    string
		Role     string
		JoinedAt time.Time
	}
	var rows []row
	err = s.db.Model(&models.GroupMember{}).
		Select("group_members.user_id, users.username, users.email, group_members.role, group_members.joined_at").
		Joins("JOIN users ON users.id = group_members.user_id").
		Where("group_members.group_id = ?", groupID).
		Order("group_members.joined_at asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return lo.Map(rows, func(r row, _ int) GroupMemberDTO {
		return GroupMemberDTO{UserID: r.UserID, Username: r.Username, Email: r.Email, Role: r.Role, JoinedAt: r.JoinedAt}
	}), nil
}

// AddMembers classifies every candidate into added / already-a-member /
// invalid instead of failing the whole batch on one bad entry. Admins
// only.
func (s *GroupService) AddMembers(actorID, groupID string, userIDs []string) (*AddMembersResult, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, Invalid("invalid group ID")
	}
	if err := s.requireAdmin(s.db, groupID, actorID, "add members"); err != nil {
		return nil, err
	}
	if _, err := s.groupByID(s.db, groupID); err != nil {
		return nil, err
	}

	result := &AddMembersResult{Added: []string{}, AlreadyMembers: []string{}, InvalidUsers: []string{}}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, id := range userIDs {
			if _, err := uuid.Parse(id); err != nil {
				result.InvalidUsers = append(result.InvalidUsers, id)
				continue
			}
			var user models.User
			if err := tx.Where("id = ? AND active = ?", id, true).First(&user).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					result.InvalidUsers = append(result.InvalidUsers, id)
					continue
				}
				return err
			}
			existing, err := s.member(tx, groupID, id)
			if err != nil {
				return err
			}
			if existing != nil {
				result.AlreadyMembers = append(result.AlreadyMembers, user.Username)
				continue
			}
			m := models.GroupMember{GroupID: groupID, UserID: id, Role: models.RoleMember}
			if err := tx.Create(&m).Error; err != nil {
				return err
			}
			result.Added = append(result.Added, user.Username)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveMember deletes one membership. Admins only, and never
// themselves: removing your own membership is what Leave is for.
func (s *GroupService) RemoveMember(actorID, groupID, targetID string) error {
	if _, err := uuid.Parse(groupID); err != nil {
		return Invalid("invalid group ID")
	}
	if _, err := uuid.Parse(targetID); err != nil {
		return Invalid("invalid user ID")
	}
	if err := s.requireAdmin(s.db, groupID, actorID, "remove members"); err != nil {
		return err
	}
	if targetID == actorID {
		return Invalid("cannot remove yourself, use the leave endpoint instead")
	}
	target, err := s.member(s.db, groupID, targetID)
	if err != nil {
		return err
	}
	if target == nil {
		return NotFound("member not found in this group")
	}
	return s.db.Delete(target).Error
}

// ChangeRole promotes or demotes a member. Re-assigning the role the
// target already holds is a conflict, not a silent no-op. Demoting the
// last admin is blocked outright: a group with members must always
// keep at least one admin, and the check runs in the same transaction
// as the update so two concurrent demotions cannot both pass it.
func (s *GroupService) ChangeRole(actorID, groupID, targetID, newRole string) error {
	if _, err := uuid.Parse(groupID); err != nil {
		return Invalid("invalid group ID")
	}
	if _, err := uuid.Parse(targetID); err != nil {
		return Invalid("invalid user ID")
	}
	role := models.GroupRole(newRole)
	if role != models.RoleAdmin && role != models.RoleMember {
		return Invalid("role must be Admin or Member")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.requireAdmin(tx, groupID, actorID, "change roles"); err != nil {
			return err
		}
		target, err := s.member(tx, groupID, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return NotFound("member not found in this group")
		}
		if target.Role == role {
			return Conflict("user is already a " + newRole)
		}
		if target.Role == models.RoleAdmin && role == models.RoleMember {
			var adminCount int64
			if err := tx.Model(&models.GroupMember{}).
				Where("group_id = ? AND role = ?", groupID, models.RoleAdmin).
				Count(&adminCount).Error; err != nil {
				return err
			}
			if adminCount == 1 {
				return Conflict("cannot demote the last admin, promote another member to admin first")
			}
		}
		return tx.Model(target).Update("role", role).Error
	})
}

// Leave removes the caller's own membership. The sole admin of a group
// that still has other members cannot leave: promote someone first or
// delete the group. The sole member overall may leave, leaving the
// group memberless but existing.
func (s *GroupService) Leave(actorID, groupID string) error {
	if _, err := uuid.Parse(groupID); err != nil {
		return Invalid("invalid group ID")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		m, err := s.member(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if m == nil {
			return NotFound("you are not a member of this group")
		}
		if m.Role == models.RoleAdmin {
			var adminCount, memberCount int64
			if err := tx.Model(&models.GroupMember{}).
				Where("group_id = ? AND role = ?", groupID, models.RoleAdmin).
				Count(&adminCount).Error; err != nil {
				return err
			}
			if adminCount == 1 {
				if err := tx.Model(&models.GroupMember{}).
					Where("group_id = ?", groupID).
					Count(&memberCount).Error; err != nil {
					return err
				}
				if memberCount > 1 {
					return Conflict("you are the last admin, promote another member to admin before leaving or delete the group")
				}
			}
		}
		return tx.Delete(m).Error
	})
}

// Delete removes the group with all memberships and messages in one
// transaction. The original creator is always authorized; otherwise a
// current admin role is required.
func (s *GroupService) Delete(actorID, groupID string) error {
	if _, err := uuid.Parse(groupID); err != nil {
		return Invalid("invalid group ID")
	}
	group, err := s.groupByID(s.db, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy != actorID {
		m, err := s.member(s.db, groupID, actorID)
		if err != nil {
			return err
		}
		if m == nil || m.Role != models.RoleAdmin {
			return Forbidden("only group creator or admins can delete the group")
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMessage{}).Error; err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(group).Error
	})
}

// UpdateInfo changes name and/or description. Admins only; at least one
// field must be supplied.
func (s *GroupService) UpdateInfo(actorID, groupID string, name, description *string) (*GroupDTO, error) {
	if _, err := uuid.Parse(groupID); err != nil {
		return nil, Invalid("invalid group ID")
	}
	if err := s.requireAdmin(s.db, groupID, actorID, "update group info"); err != nil {
		return nil, err
	}
	group, err := s.groupByID(s.db, groupID)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if name != nil {
		if *name == "" {
			return nil, Invalid("group name cannot be empty")
		}
		updates["name"] = *name
	}
	if description != nil {
		updates["description"] = *description
	}
	if len(updates) == 0 {
		return nil, Invalid("no fields to update")
	}
	if err := s.db.Model(group).Updates(updates).Error; err != nil {
		return nil, err
	}
	dto := groupDTO(*group)
	return &dto, nil
}
