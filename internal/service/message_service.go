package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"projecthub/internal/ids"
	"projecthub/internal/models"
	"projecthub/internal/policy"
)

// BroadcastTarget addresses every project in a message post.
const BroadcastTarget = "all"

const FeedKindContract = "contract"

const contractNotice = "Project documents have been uploaded."

// FeedItem is one entry in the message feed: either a message/update or a
// notice that documents were attached.
type FeedItem struct {
	ID          string
	ProjectID   string
	ProjectName string
	Kind        string
	Content     string
	CreatedAt   time.Time
	ContractURL string
	PaymentURL  string
}

type MessageService struct {
	projects  ProjectStore
	documents DocumentStore
	messages  MessageStore
	log       zerolog.Logger
	now       func() time.Time
}

func NewMessageService(projects ProjectStore, documents DocumentStore, messages MessageStore, log zerolog.Logger) *MessageService {
	return &MessageService{
		projects:  projects,
		documents: documents,
		messages:  messages,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// visibleProjects maps project id to name for every project the caller may
// read messages of.
func (s *MessageService) visibleProjects(ctx context.Context, identity models.Identity) (map[string]string, error) {
	names := map[string]string{}
	if identity.Role == models.UserRoleProvider {
		all, err := s.projects.ListAll(ctx, 0, 0)
		if err != nil {
			return nil, err
		}
		for _, p := range all {
			names[p.ID] = p.Name
		}
		return names, nil
	}

	own, err := s.projects.ListByOwner(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range own {
		names[p.ID] = p.Name
	}
	return names, nil
}

// Feed merges document notices and messages of the visible projects,
// newest first.
func (s *MessageService) Feed(ctx context.Context, identity models.Identity) ([]FeedItem, error) {
	if err := authorize(identity, policy.ActionReadMessages, policy.Resource{}); err != nil {
		return nil, err
	}

	names, err := s.visibleProjects(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	feed := []FeedItem{}
	if len(names) == 0 {
		return feed, nil
	}

	projectIDs := make([]string, 0, len(names))
	for id := range names {
		projectIDs = append(projectIDs, id)
	}

	contracts, err := s.documents.ListByProjects(ctx, projectIDs)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	messages, err := s.messages.ListByProjects(ctx, projectIDs, "")
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	for _, c := range contracts {
		feed = append(feed, FeedItem{
			ID:          c.ID,
			ProjectID:   c.ProjectID,
			ProjectName: names[c.ProjectID],
			Kind:        FeedKindContract,
			Content:     contractNotice,
			CreatedAt:   c.CreatedAt,
			ContractURL: c.ContractURL,
			PaymentURL:  c.PaymentURL,
		})
	}
	for _, m := range messages {
		feed = append(feed, FeedItem{
			ID:          m.ID,
			ProjectID:   m.ProjectID,
			ProjectName: names[m.ProjectID],
			Kind:        string(m.Type),
			Content:     m.Content,
			CreatedAt:   m.CreatedAt,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})
	return feed, nil
}

type PostMessageInput struct {
	// ProjectID is a project id or BroadcastTarget.
	ProjectID string
	Content   string
	Type      models.MessageType
}

// Post stores a message on one project, or one copy per project when the
// target is BroadcastTarget. Broadcast writes are independent: a failure
// part way leaves the earlier copies in place.
func (s *MessageService) Post(ctx context.Context, identity models.Identity, input PostMessageInput) ([]models.Message, error) {
	input.Content = strings.TrimSpace(input.Content)
	input.ProjectID = strings.TrimSpace(input.ProjectID)
	if input.Type == "" {
		input.Type = models.MessageTypeMessage
	}
	if input.Content == "" || input.ProjectID == "" {
		return nil, validationf("project_id and content are required")
	}
	if !input.Type.Valid() {
		return nil, validationf("unknown message type %q", input.Type)
	}

	if input.ProjectID == BroadcastTarget {
		return s.broadcast(ctx, identity, input)
	}

	project, err := loadProject(ctx, s.projects, input.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := authorize(identity, policy.ActionPostMessage, policy.Resource{OwnerID: project.UserID}); err != nil {
		return nil, err
	}

	message, err := s.create(ctx, identity, project.ID, input)
	if err != nil {
		return nil, err
	}
	return []models.Message{message}, nil
}

func (s *MessageService) broadcast(ctx context.Context, identity models.Identity, input PostMessageInput) ([]models.Message, error) {
	if err := authorize(identity, policy.ActionBroadcastMessage, policy.Resource{}); err != nil {
		return nil, err
	}

	projects, err := s.projects.ListAll(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	sent := make([]models.Message, 0, len(projects))
	for _, p := range projects {
		message, err := s.create(ctx, identity, p.ID, input)
		if err != nil {
			s.log.Error().Err(err).Int("sent", len(sent)).Int("total", len(projects)).Msg("broadcast interrupted")
			return sent, err
		}
		sent = append(sent, message)
	}
	return sent, nil
}

func (s *MessageService) create(ctx context.Context, identity models.Identity, projectID string, input PostMessageInput) (models.Message, error) {
	message := models.Message{
		ID:        ids.New(),
		ProjectID: projectID,
		SenderID:  identity.ID,
		Type:      input.Type,
		Content:   input.Content,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}
	return message, nil
}
