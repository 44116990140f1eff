package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// GroupRepository answers membership and mentoring questions on behalf of the
// group management system.
type GroupRepository interface {
	Members(ctx context.Context, groupID uint) ([]uint, error)
	CanVerify(ctx context.Context, teacherID, studentID uint) (bool, error)
}

type groupRepository struct {
	db *gorm.DB
}

// NewGroupRepository constructs the group repository.
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

// Members returns the current student members of a group.
func (r *groupRepository) Members(ctx context.Context, groupID uint) ([]uint, error) {
	var group models.StudyGroup
	if err := r.db.WithContext(ctx).Select("id").First(&group, groupID).Error; err != nil {
		return nil, err
	}

	var studentIDs []uint
	if err := r.db.WithContext(ctx).Model(&models.GroupMember{}).
		Where("group_id = ? AND role = ?", groupID, models.GroupRoleStudent).
		Order("user_id ASC").
		Pluck("user_id", &studentIDs).Error; err != nil {
		return nil, err
	}

	return studentIDs, nil
}

// CanVerify reports whether teacherID mentors studentID, either directly or by
// being a mentor of a group the student belongs to.
func (r *groupRepository) CanVerify(ctx context.Context, teacherID, studentID uint) (bool, error) {
	if teacherID == 0 || studentID == 0 || teacherID == studentID {
		return false, nil
	}

	var direct int64
	if err := r.db.WithContext(ctx).Model(&models.MentorStudent{}).
		Where("mentor_id = ? AND student_id = ? AND active = ?", teacherID, studentID, true).
		Count(&direct).Error; err != nil {
		return false, err
	}
	if direct > 0 {
		return true, nil
	}

	var shared int64
	if err := r.db.WithContext(ctx).Table("group_members AS mentor").
		Joins("JOIN group_members AS student ON student.group_id = mentor.group_id").
		Where("mentor.user_id = ? AND mentor.role = ?", teacherID, models.GroupRoleMentor).
		Where("student.user_id = ? AND student.role = ?", studentID, models.GroupRoleStudent).
		Count(&shared).Error; err != nil {
		return false, err
	}

	return shared > 0, nil
}
