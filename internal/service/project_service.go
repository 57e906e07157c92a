package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"projecthub/internal/ids"
	"projecthub/internal/models"
	"projecthub/internal/policy"
	"projecthub/internal/repository"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type ProjectService struct {
	projects  ProjectStore
	documents DocumentStore
	messages  MessageStore
	log       zerolog.Logger
	now       func() time.Time
}

func NewProjectService(projects ProjectStore, documents DocumentStore, messages MessageStore, log zerolog.Logger) *ProjectService {
	return &ProjectService{
		projects:  projects,
		documents: documents,
		messages:  messages,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type CreateProjectInput struct {
	Name        string
	Description string
}

func (s *ProjectService) Create(ctx context.Context, identity models.Identity, input CreateProjectInput) (models.Project, error) {
	if err := authorize(identity, policy.ActionCreateProject, policy.Resource{}); err != nil {
		return models.Project{}, err
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if input.Name == "" || input.Description == "" {
		return models.Project{}, validationf("name and description are required")
	}

	now := s.now()
	project := models.Project{
		ID:          ids.New(),
		Name:        input.Name,
		Description: input.Description,
		Status:      models.ProjectStatusPending,
		UserID:      identity.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// List returns the caller's own projects for clients and every project for
// providers.
func (s *ProjectService) List(ctx context.Context, identity models.Identity) ([]models.Project, error) {
	if err := authorize(identity, policy.ActionListOwnProjects, policy.Resource{}); err != nil {
		return nil, err
	}

	if identity.Role == models.UserRoleProvider {
		all, err := s.projects.ListAll(ctx, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("list projects: %w", err)
		}
		projects := make([]models.Project, 0, len(all))
		for _, p := range all {
			projects = append(projects, p.Project)
		}
		return projects, nil
	}

	projects, err := s.projects.ListByOwner(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

type Page struct {
	Page    int
	PerPage int
}

func (p Page) normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	return p
}

func (s *ProjectService) ListAll(ctx context.Context, identity models.Identity, page Page) ([]models.ProjectWithOwner, Page, error) {
	if err := authorize(identity, policy.ActionListAllProjects, policy.Resource{}); err != nil {
		return nil, Page{}, err
	}

	page = page.normalize()
	projects, err := s.projects.ListAll(ctx, page.PerPage, (page.Page-1)*page.PerPage)
	if err != nil {
		return nil, Page{}, fmt.Errorf("list all projects: %w", err)
	}
	if projects == nil {
		projects = []models.ProjectWithOwner{}
	}
	return projects, page, nil
}

// load fetches a project and reports malformed or unknown ids with the
// service error taxonomy.
func (s *ProjectService) load(ctx context.Context, id string) (models.Project, error) {
	return loadProject(ctx, s.projects, id)
}

func loadProject(ctx context.Context, projects ProjectStore, id string) (models.Project, error) {
	if !ids.Valid(id) {
		return models.Project{}, validationf("invalid project id")
	}
	project, err := projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return models.Project{}, fmt.Errorf("%w: project", ErrNotFound)
		}
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, identity models.Identity, id string) (models.Project, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if err := authorize(identity, policy.ActionViewProject, policy.Resource{OwnerID: project.UserID}); err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (s *ProjectService) UpdateStatus(ctx context.Context, identity models.Identity, id string, status models.ProjectStatus) (models.Project, error) {
	if !status.Valid() {
		return models.Project{}, validationf("unknown status %q", status)
	}
	project, err := s.load(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if err := authorize(identity, policy.ActionUpdateProjectStatus, policy.Resource{OwnerID: project.UserID}); err != nil {
		return models.Project{}, err
	}

	if err := s.projects.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return models.Project{}, fmt.Errorf("%w: project", ErrNotFound)
		}
		return models.Project{}, fmt.Errorf("update status: %w", err)
	}
	project.Status = status
	project.UpdatedAt = s.now()
	return project, nil
}

// Cancel deletes a project on behalf of its owner as long as no documents
// have been attached yet.
func (s *ProjectService) Cancel(ctx context.Context, identity models.Identity, id string) error {
	project, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.documents.CountByProject(ctx, project.ID)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	resource := policy.Resource{OwnerID: project.UserID, HasDocuments: count > 0}
	if err := authorize(identity, policy.ActionCancelProject, resource); err != nil {
		return err
	}

	if err := s.projects.Delete(ctx, project.ID); err != nil {
		if errors.Is(err, repository.ErrProjectNotFound) {
			return fmt.Errorf("%w: project", ErrNotFound)
		}
		return fmt.Errorf("delete project: %w", err)
	}
	s.log.Info().Str("project_id", project.ID).Str("user_id", identity.ID).Msg("project cancelled")
	return nil
}

func (s *ProjectService) Updates(ctx context.Context, identity models.Identity, id string) ([]models.Message, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(identity, policy.ActionViewUpdates, policy.Resource{OwnerID: project.UserID}); err != nil {
		return nil, err
	}

	updates, err := s.messages.ListByProjects(ctx, []string{project.ID}, models.MessageTypeUpdate)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	if updates == nil {
		updates = []models.Message{}
	}
	return updates, nil
}

func (s *ProjectService) PostUpdate(ctx context.Context, identity models.Identity, id string, content string) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, validationf("update is required")
	}
	project, err := s.load(ctx, id)
	if err != nil {
		return models.Message{}, err
	}
	if err := authorize(identity, policy.ActionPostUpdate, policy.Resource{OwnerID: project.UserID}); err != nil {
		return models.Message{}, err
	}

	update := models.Message{
		ID:        ids.New(),
		ProjectID: project.ID,
		SenderID:  identity.ID,
		Type:      models.MessageTypeUpdate,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, update); err != nil {
		return models.Message{}, fmt.Errorf("create update: %w", err)
	}
	return update, nil
}
