package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-studyplan-api/internal/dto"
	"github.com/noah-isme/gema-studyplan-api/internal/models"
	"github.com/noah-isme/gema-studyplan-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

// studyFixture wires every service against one sqlite database.
type studyFixture struct {
	db        *gorm.DB
	publisher *recordingPublisher
	clock     time.Time

	plansRepo repository.StudyPlanRepository
	tasksRepo repository.StudyTaskRepository

	templates  PlanTemplateService
	plans      PlanInstanceService
	assigner   AssignmentResolver
	lifecycle  TaskLifecycleService
	aggregator CompletionAggregator
	retention  RetentionScheduler
	activity   ActivityService
}

func newStudyFixture(t *testing.T, cache *redis.Client) *studyFixture {
	t.Helper()

	db := newTestDB(t)
	logger := testLogger()
	validate := validator.New()
	publisher := &recordingPublisher{}

	templateRepo := repository.NewPlanTemplateRepository(db)
	planRepo := repository.NewStudyPlanRepository(db)
	taskRepo := repository.NewStudyTaskRepository(db)
	assignmentRepo := repository.NewPlanAssignmentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	snapshotRepo := repository.NewPerformanceSnapshotRepository(db)
	activity := NewActivityService(repository.NewActivityLogRepository(db), logger)

	fx := &studyFixture{
		db:        db,
		publisher: publisher,
		clock:     time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC),
		plansRepo: planRepo,
		tasksRepo: taskRepo,
		activity:  activity,
	}
	now := func() time.Time { return fx.clock }

	aggregator := NewCompletionAggregator(planRepo, taskRepo, snapshotRepo, validate, cache, time.Minute, logger)
	plans := NewPlanInstanceService(planRepo, templateRepo, taskRepo, aggregator, validate, publisher, activity, logger)
	plans.(*planInstanceService).now = now
	assigner := NewAssignmentResolver(planRepo, assignmentRepo, groupRepo, aggregator, validate, publisher, activity, logger)
	assigner.(*assignmentResolver).now = now
	lifecycle := NewTaskLifecycleService(taskRepo, groupRepo, plans, aggregator, validate, publisher, activity, logger)
	lifecycle.(*taskLifecycleService).now = now
	retention := NewRetentionScheduler(schoolRepo, planRepo, plans, aggregator, validate, publisher, activity, logger)
	retention.(*retentionScheduler).now = now

	fx.templates = NewPlanTemplateService(templateRepo, validate, activity, logger)
	fx.plans = plans
	fx.assigner = assigner
	fx.lifecycle = lifecycle
	fx.aggregator = aggregator
	fx.retention = retention
	return fx
}

var (
	teacherActor = MentorActor{ID: 100, Role: RoleTeacher}
	mentorActor  = MentorActor{ID: 101, Role: RoleMentor}
	adminActor   = MentorActor{ID: 900, Role: RoleAdmin}
)

func (fx *studyFixture) seedSchool(t *testing.T, id uint, enabled bool, months int) {
	t.Helper()
	require.NoError(t, fx.db.Create(&models.School{ID: id, Name: fmt.Sprintf("School %d", id), AutoCleanupEnabled: enabled, CleanupMonthsToKeep: months}).Error)
}

func (fx *studyFixture) seedGroup(t *testing.T, groupID uint, mentorID uint, students ...uint) {
	t.Helper()
	group := models.StudyGroup{ID: groupID, SchoolID: 1, Name: fmt.Sprintf("Group %d", groupID)}
	require.NoError(t, fx.db.Create(&group).Error)
	if mentorID > 0 {
		require.NoError(t, fx.db.Create(&models.GroupMember{GroupID: groupID, UserID: mentorID, Role: models.GroupRoleMentor}).Error)
	}
	for _, studentID := range students {
		require.NoError(t, fx.db.Create(&models.GroupMember{GroupID: groupID, UserID: studentID, Role: models.GroupRoleStudent}).Error)
	}
}

// weekTasks builds a plan week of n tasks spread over the days of the week.
func weekTasks(n int) []dto.TaskSlotRequest {
	tasks := make([]dto.TaskSlotRequest, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, dto.TaskSlotRequest{
			SubjectName:   "Matematik",
			TopicName:     fmt.Sprintf("Konu %d", i+1),
			DayIndex:      i % 7,
			RowIndex:      i / 7,
			QuestionCount: 10,
		})
	}
	return tasks
}

func (fx *studyFixture) createTemplate(t *testing.T, tasks int) dto.PlanTemplateResponse {
	t.Helper()
	template, err := fx.templates.Create(context.Background(), dto.PlanTemplateCreateRequest{
		SchoolID:    1,
		Name:        "TYT Haftalik Program",
		ExamType:    "TYT",
		GradeLevels: []int{12, 11, 12},
		Tasks:       weekTasks(tasks),
	}, teacherActor)
	require.NoError(t, err)
	return template
}

func (fx *studyFixture) instantiate(t *testing.T, templateID uint, target string, groupID *uint) dto.StudyPlanResponse {
	t.Helper()
	plan, err := fx.plans.CreateFromTemplate(context.Background(), templateID, dto.PlanInstantiateRequest{
		WeekStartDate: "2024-03-04",
		TargetType:    target,
		GroupID:       groupID,
	}, teacherActor)
	require.NoError(t, err)
	return plan
}

func (fx *studyFixture) studentTasks(t *testing.T, planID, studentID uint) []dto.StudyTaskResponse {
	t.Helper()
	tasks, err := fx.plans.ListTasks(context.Background(), planID, &studentID)
	require.NoError(t, err)
	return tasks
}

func uintPtr(v uint) *uint {
	return &v
}
