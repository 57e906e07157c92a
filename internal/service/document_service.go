package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"projecthub/internal/events"
	"projecthub/internal/ids"
	"projecthub/internal/media/sniffer"
	"projecthub/internal/media/svg"
	"projecthub/internal/models"
	"projecthub/internal/policy"
)

const (
	DocumentKindContract = "contract"
	DocumentKindPayment  = "payment"
)

// UploadFile is one multipart part. Body is read fully before storing.
type UploadFile struct {
	Filename string
	// DeclaredType is the part's Content-Type header. The stored type is
	// always sniffed; this is only compared against it.
	DeclaredType string
	Body         io.Reader
}

type UploadDocumentsInput struct {
	ProjectID string
	Contract  *UploadFile
	Payment   *UploadFile
}

type DocumentService struct {
	projects  ProjectStore
	documents DocumentStore
	store     ObjectStorage
	events    EventPublisher
	log       zerolog.Logger
	now       func() time.Time
}

func NewDocumentService(projects ProjectStore, documents DocumentStore, store ObjectStorage, publisher EventPublisher, log zerolog.Logger) *DocumentService {
	return &DocumentService{
		projects:  projects,
		documents: documents,
		store:     store,
		events:    publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the contract and payment proof and records them as one
// contract row. The object writes and the row insert are not atomic; when
// the insert fails the stored keys are handed to the worker for removal.
func (s *DocumentService) Upload(ctx context.Context, identity models.Identity, input UploadDocumentsInput) (models.Contract, error) {
	if input.Contract == nil || input.Payment == nil {
		return models.Contract{}, validationf("contract and payment files are required")
	}

	project, err := loadProject(ctx, s.projects, input.ProjectID)
	if err != nil {
		return models.Contract{}, err
	}
	if err := authorize(identity, policy.ActionUploadDocuments, policy.Resource{OwnerID: project.UserID}); err != nil {
		return models.Contract{}, err
	}

	now := s.now()
	contractKey, contractURL, err := s.put(ctx, project.ID, DocumentKindContract, input.Contract, now)
	if err != nil {
		return models.Contract{}, err
	}
	paymentKey, paymentURL, err := s.put(ctx, project.ID, DocumentKindPayment, input.Payment, now)
	if err != nil {
		s.orphan(ctx, project.ID, contractKey)
		return models.Contract{}, err
	}

	contract := models.Contract{
		ID:          ids.New(),
		ProjectID:   project.ID,
		ContractURL: contractURL,
		ContractKey: contractKey,
		PaymentURL:  paymentURL,
		PaymentKey:  paymentKey,
		CreatedAt:   now,
	}
	if err := s.documents.Create(ctx, contract); err != nil {
		s.orphan(ctx, project.ID, contractKey, paymentKey)
		return models.Contract{}, fmt.Errorf("save documents: %w", err)
	}

	s.log.Info().
		Str("project_id", project.ID).
		Str("contract_id", contract.ID).
		Msg("project documents uploaded")
	return contract, nil
}

func (s *DocumentService) put(ctx context.Context, projectID, kind string, file *UploadFile, now time.Time) (string, string, error) {
	if file.Body == nil {
		return "", "", validationf("%s file is empty", kind)
	}
	data, err := io.ReadAll(file.Body)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", kind, err)
	}
	if len(data) == 0 {
		return "", "", validationf("%s file is empty", kind)
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	detected := sniffer.Resolve(head, file.Filename)
	if file.DeclaredType != "" && file.DeclaredType != detected.MIME {
		s.log.Debug().
			Str("kind", kind).
			Str("declared", file.DeclaredType).
			Str("detected", detected.MIME).
			Msg("declared content type ignored")
	}

	if detected.Type == sniffer.TypeSVG {
		clean, err := svg.Sanitize(data)
		if err != nil {
			return "", "", validationf("%s: %v", kind, err)
		}
		data = clean
	}

	key := ObjectKey(projectID, kind, file.Filename, now)
	url, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), detected.MIME)
	if err != nil {
		return "", "", fmt.Errorf("store %s: %w", kind, err)
	}
	return key, url, nil
}

// ObjectKey builds projects/<id>/<kind>_<timestamp><ext>.
func ObjectKey(projectID, kind, filename string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	return path.Join("projects", projectID, fmt.Sprintf("%s_%s%s", kind, at.UTC().Format("20060102T150405.000000000"), ext))
}

func (s *DocumentService) orphan(ctx context.Context, projectID string, keys ...string) {
	err := s.events.Publish(ctx, events.Event{
		Type: events.TypeDocumentsOrphaned,
		Payload: events.DocumentsOrphaned{
			ProjectID: projectID,
			Bucket:    s.store.Bucket(),
			Keys:      keys,
		},
		OccurredAt: s.now(),
	})
	if err != nil {
		s.log.Error().Err(err).Str("project_id", projectID).Strs("keys", keys).Msg("publish orphaned documents failed")
	}
}

func (s *DocumentService) List(ctx context.Context, identity models.Identity, projectID string) ([]models.Contract, error) {
	project, err := loadProject(ctx, s.projects, projectID)
	if err != nil {
		return nil, err
	}
	if err := authorize(identity, policy.ActionViewDocuments, policy.Resource{OwnerID: project.UserID}); err != nil {
		return nil, err
	}

	contracts, err := s.documents.ListByProjects(ctx, []string{project.ID})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if contracts == nil {
		contracts = []models.Contract{}
	}
	return contracts, nil
}
