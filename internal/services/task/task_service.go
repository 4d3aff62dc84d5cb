package task

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/referralhub/backend/internal/errutil"
	"github.com/referralhub/backend/internal/models"
	"github.com/referralhub/backend/internal/security/audit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditRecorder appends audit rows through the given transaction
type AuditRecorder interface {
	Record(tx *gorm.DB, entry audit.Entry) (*audit.AuditLog, error)
}

// CreateInput holds the fields of a new task
type CreateInput struct {
	Title       string
	Description string
	Points      int64
	Status      models.TaskStatus
}

// UpdateInput holds optional task changes. Nil fields are left alone.
type UpdateInput struct {
	Title       *string
	Description *string
	Points      *int64
	Status      *models.TaskStatus
}

// Filter narrows task listings
type Filter struct {
	Status models.TaskStatus
	Search string
	Limit  int
	Offset int
}

// Service manages the task catalogue
type Service struct {
	db    *gorm.DB
	audit AuditRecorder
	log   *zap.Logger
}

// NewService creates a task service
func NewService(db *gorm.DB, recorder AuditRecorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, audit: recorder, log: log.Named("task")}
}

func validatePoints(points int64) error {
	if points <= 0 {
		return errutil.InvalidArgument("points must be positive")
	}
	return nil
}

// List returns tasks newest first with the total match count
func (s *Service) List(ctx context.Context, filter Filter) ([]models.Task, int64, error) {
	var tasks []models.Task
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Task{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR slug LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errutil.Internal("failed to count tasks", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&tasks).Error; err != nil {
		return nil, 0, errutil.Internal("failed to list tasks", err)
	}

	return tasks, total, nil
}

// Get loads a task by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return s.load(s.db.WithContext(ctx), id)
}

func (s *Service) load(db *gorm.DB, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("task %s not found", id)
		}
		return nil, errutil.Internal("failed to load task", err)
	}
	return &task, nil
}

// Create adds a task with a unique slug derived from its title
func (s *Service) Create(ctx context.Context, actor *uuid.UUID, input CreateInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errutil.InvalidArgument("title is required")
	}
	if err := validatePoints(input.Points); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = models.TaskStatusActive
	}
	if !status.Valid() {
		return nil, errutil.InvalidArgument("unknown task status %q", status)
	}

	task := models.Task{
		Title:       title,
		Description: input.Description,
		Points:      input.Points,
		Status:      status,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskSlug, err := uniqueSlug(tx, title, uuid.Nil)
		if err != nil {
			return err
		}
		task.Slug = taskSlug

		if err := tx.Create(&task).Error; err != nil {
			return errutil.Internal("failed to create task", err)
		}

		return s.record(tx, actor, audit.ActionCreateTask, task.ID,
			fmt.Sprintf("Created task %q worth %d points", task.Title, task.Points))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("task created", zap.String("task_id", task.ID.String()), zap.String("slug", task.Slug))
	return &task, nil
}

// Update changes a task. Changing the title regenerates the slug.
func (s *Service) Update(ctx context.Context, actor *uuid.UUID, id uuid.UUID, input UpdateInput) (*models.Task, error) {
	var task *models.Task

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = s.load(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		var changed []string

		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return errutil.InvalidArgument("title cannot be empty")
			}
			if title != task.Title {
				taskSlug, err := uniqueSlug(tx, title, task.ID)
				if err != nil {
					return err
				}
				updates["title"] = title
				updates["slug"] = taskSlug
				changed = append(changed, "title")
			}
		}
		if input.Description != nil && *input.Description != task.Description {
			updates["description"] = *input.Description
			changed = append(changed, "description")
		}
		if input.Points != nil && *input.Points != task.Points {
			if err := validatePoints(*input.Points); err != nil {
				return err
			}
			updates["points"] = *input.Points
			changed = append(changed, "points")
		}
		if input.Status != nil && *input.Status != task.Status {
			if !input.Status.Valid() {
				return errutil.InvalidArgument("unknown task status %q", *input.Status)
			}
			updates["status"] = *input.Status
			changed = append(changed, "status")
		}

		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(task).Updates(updates).Error; err != nil {
			return errutil.Internal("failed to update task", err)
		}

		return s.record(tx, actor, audit.ActionUpdateTask, task.ID,
			fmt.Sprintf("Updated task %q: %s", task.Title, strings.Join(changed, ", ")))
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Archive hides a task instead of deleting it, so existing submissions keep
// their reference
func (s *Service) Archive(ctx context.Context, actor *uuid.UUID, id uuid.UUID) (*models.Task, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.load(tx, id)
		if err != nil {
			return err
		}

		res := tx.Model(&models.Task{}).
			Where("id = ? AND status <> ?", id, models.TaskStatusArchived).
			Update("status", models.TaskStatusArchived)
		if res.Error != nil {
			return errutil.Internal("failed to archive task", res.Error)
		}
		if res.RowsAffected == 0 {
			return errutil.AlreadyProcessed("task %s is already archived", id)
		}

		return s.record(tx, actor, audit.ActionArchiveTask, id, fmt.Sprintf("Archived task %q", task.Title))
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

func (s *Service) record(tx *gorm.DB, actor *uuid.UUID, action audit.Action, taskID uuid.UUID, details string) error {
	if _, err := s.audit.Record(tx, audit.Entry{
		AdminID:    actor,
		Action:     action,
		EntityID:   taskID,
		EntityType: audit.EntityTask,
		Details:    details,
	}); err != nil {
		return errutil.Internal("failed to write audit log", err)
	}
	return nil
}

// uniqueSlug slugifies title and appends a counter until no other task uses it
func uniqueSlug(tx *gorm.DB, title string, exclude uuid.UUID) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "task"
	}

	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Model(&models.Task{}).Where("slug = ? AND id <> ?", candidate, exclude).Count(&count).Error; err != nil {
			return "", errutil.Internal("failed to check task slug", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
