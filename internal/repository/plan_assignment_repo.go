package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-studyplan-api/internal/models"
)

// AssignRecipientsInput describes a batch of recipients for one plan.
type AssignRecipientsInput struct {
	Plan         models.StudyPlan
	StudentIDs   []uint
	GroupID      *uint
	AssignedBy   uint
	AssignedAt   time.Time
	PromoteDraft bool
}

// AssignRecipientsResult reports what an assignment batch produced.
type AssignRecipientsResult struct {
	Assignments   []models.PlanAssignment
	NewRecipients []uint
	TasksCreated  int
}

// PlanAssignmentRepository persists recipient snapshots and their tasks.
type PlanAssignmentRepository interface {
	ListByPlan(ctx context.Context, planID uint) ([]models.PlanAssignment, error)
	Assign(ctx context.Context, input AssignRecipientsInput) (AssignRecipientsResult, error)
}

type planAssignmentRepository struct {
	db *gorm.DB
}

// NewPlanAssignmentRepository constructs the assignment repository.
func NewPlanAssignmentRepository(db *gorm.DB) PlanAssignmentRepository {
	return &planAssignmentRepository{db: db}
}

func (r *planAssignmentRepository) ListByPlan(ctx context.Context, planID uint) ([]models.PlanAssignment, error) {
	var assignments []models.PlanAssignment
	if err := r.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("recipient_student_id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

// Assign snapshots every recipient that is not yet assigned and materialises
// one pending task per definition for each of them. Already assigned
// recipients are left untouched.
func (r *planAssignmentRepository) Assign(ctx context.Context, input AssignRecipientsInput) (AssignRecipientsResult, error) {
	var result AssignRecipientsResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.StudyPlan
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&plan, input.Plan.ID).Error; err != nil {
			return err
		}

		var existing []models.PlanAssignment
		if err := tx.Where("plan_id = ? AND recipient_student_id IN ?", plan.ID, input.StudentIDs).
			Find(&existing).Error; err != nil {
			return err
		}
		assigned := make(map[uint]struct{}, len(existing))
		for _, assignment := range existing {
			assigned[assignment.RecipientStudentID] = struct{}{}
		}

		for _, studentID := range input.StudentIDs {
			if _, ok := assigned[studentID]; ok {
				continue
			}
			assignment := models.PlanAssignment{
				PlanID:              plan.ID,
				RecipientStudentID:  studentID,
				GroupID:             input.GroupID,
				AssignedByTeacherID: input.AssignedBy,
				AssignedAt:          input.AssignedAt,
			}
			inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&assignment)
			if inserted.Error != nil {
				return inserted.Error
			}
			if inserted.RowsAffected == 0 {
				continue
			}
			result.NewRecipients = append(result.NewRecipients, studentID)

			if len(input.Plan.Definitions) == 0 {
				continue
			}
			tasks := make([]models.StudyTask, 0, len(input.Plan.Definitions))
			for _, definition := range input.Plan.Definitions {
				tasks = append(tasks, models.NewStudyTask(definition, studentID))
			}
			created := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tasks)
			if created.Error != nil {
				return created.Error
			}
			result.TasksCreated += int(created.RowsAffected)
		}

		if input.PromoteDraft && plan.Status == models.PlanStatusDraft {
			if err := tx.Model(&models.StudyPlan{}).
				Where("id = ? AND status = ?", plan.ID, models.PlanStatusDraft).
				Update("status", models.PlanStatusAssigned).Error; err != nil {
				return err
			}
		}

		return tx.Where("plan_id = ? AND recipient_student_id IN ?", plan.ID, input.StudentIDs).
			Order("recipient_student_id ASC").
			Find(&result.Assignments).Error
	})
	if err != nil {
		return AssignRecipientsResult{}, err
	}

	return result, nil
}
