package exam

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/aaronlou/innergrow.ai/core"
	"github.com/aaronlou/innergrow.ai/core/ai"
	"github.com/aaronlou/innergrow.ai/core/user"
)

// Material upload rules
const (
	MaterialMaxSize   = 50 << 20
	materialKeyPrefix = "exam_materials"
)

var MaterialExts = []string{".pdf", ".doc", ".docx"}

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("exam not found")
	ErrNoMaterial       = core.NewNotFoundError("no material uploaded for this exam")
	ErrNotParticipant   = errors.New("You are not a participant of this exam group")
	ErrAlreadyJoined    = errors.New("You have already joined this exam group")
	errJoinAsCreator    = errors.New("You are the creator of this exam")
	errLeaveAsCreator   = errors.New("Exam creator cannot leave the group")
	errNoMaterialUpload = errors.New("no material uploaded")
)

// permission messages
const (
	msgUpdateForbidden = "Only the creator and participants can update this exam"
	msgDeleteForbidden = "Only the creator can delete this exam"
	msgAccessForbidden = "You do not have access to this exam"
)

type (
	Repository interface {
		CreateExam(ctx context.Context, e Exam) (Exam, error)
		// QueryExams returns every exam, newest first, with its participants count.
		QueryExams(ctx context.Context) ([]Exam, error)
		GetExamByID(ctx context.Context, id string) (Exam, error)
		UpdateExam(ctx context.Context, e Exam) (Exam, error)
		DeleteExam(ctx context.Context, id string) error
		// AddParticipant returns ErrAlreadyJoined when the user already participates.
		AddParticipant(ctx context.Context, examID, userID string, joinedAt time.Time) error
		// RemoveParticipant returns ErrNotParticipant when the user does not participate.
		RemoveParticipant(ctx context.Context, examID, userID string) error
		// ParticipatingExamIDs returns the set of exams the user participates in.
		ParticipatingExamIDs(ctx context.Context, userID string) (map[string]bool, error)
	}

	Service struct {
		repo         Repository
		storage      core.FileStorage
		ai           *ai.Service
		signedURLTTL time.Duration
	}
)

func NewService(repo Repository, storage core.FileStorage, aiSvc *ai.Service, signedURLTTL time.Duration) *Service {
	if signedURLTTL <= 0 {
		signedURLTTL = 60 * time.Minute
	}
	return &Service{repo: repo, storage: storage, ai: aiSvc, signedURLTTL: signedURLTTL}
}

func (svc *Service) decorate(ctx context.Context, usr user.User, exams []Exam) ([]Exam, error) {
	joined, err := svc.repo.ParticipatingExamIDs(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying participations")
	}
	for i := range exams {
		exams[i].IsCreator = exams[i].CreatorID == usr.ID
		exams[i].IsParticipant = joined[exams[i].ID]
	}
	return exams, nil
}

func (svc *Service) List(ctx context.Context, usr user.User) ([]Exam, error) {
	exams, err := svc.repo.QueryExams(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	return svc.decorate(ctx, usr, exams)
}

// GetByID returns the exam as seen by the user.
func (svc *Service) GetByID(ctx context.Context, usr user.User, id string) (Exam, error) {
	e, err := svc.repo.GetExamByID(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	exams, err := svc.decorate(ctx, usr, []Exam{e})
	if err != nil {
		return Exam{}, err
	}
	return exams[0], nil
}

func (svc *Service) Create(ctx context.Context, usr user.User, ne NewExam) (Exam, error) {
	now := time.Now().UTC()
	e, err := svc.repo.CreateExam(ctx, Exam{
		ID:        uuid.NewString(),
		Title:     ne.Title,
		Summary:   ne.Summary,
		ExamTime:  ne.ExamTime.UTC(),
		CreatorID: usr.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Exam{}, err
	}
	e.IsCreator = true
	return e, nil
}

func (svc *Service) Update(ctx context.Context, usr user.User, e Exam, ue UpdateExam) (Exam, error) {
	if !e.CanEdit(usr.ID) {
		return Exam{}, core.NewPermissionError(msgUpdateForbidden)
	}
	ue.apply(&e)
	e.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateExam(ctx, e); err != nil {
		return Exam{}, err
	}
	return svc.GetByID(ctx, usr, e.ID)
}

// Delete removes the exam and its material.
func (svc *Service) Delete(ctx context.Context, usr user.User, e Exam) error {
	if e.CreatorID != usr.ID {
		return core.NewPermissionError(msgDeleteForbidden)
	}
	if err := svc.repo.DeleteExam(ctx, e.ID); err != nil {
		return err
	}
	return svc.deleteObject(ctx, e.MaterialKey)
}

func (svc *Service) deleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := svc.storage.Delete(ctx, key); err != nil && errors.Cause(err) != core.ErrObjectNotFound {
		return errors.Wrap(err, "deleting exam material")
	}
	return nil
}

func (svc *Service) Join(ctx context.Context, usr user.User, e Exam) (Exam, error) {
	if e.CreatorID == usr.ID {
		return Exam{}, core.NewValidationError(errJoinAsCreator)
	}
	err := svc.repo.AddParticipant(ctx, e.ID, usr.ID, time.Now().UTC())
	if err != nil {
		if errors.Cause(err) == ErrAlreadyJoined {
			return Exam{}, core.NewValidationError(ErrAlreadyJoined)
		}
		return Exam{}, err
	}
	return svc.GetByID(ctx, usr, e.ID)
}

func (svc *Service) Leave(ctx context.Context, usr user.User, e Exam) (Exam, error) {
	if e.CreatorID == usr.ID {
		return Exam{}, core.NewValidationError(errLeaveAsCreator)
	}
	err := svc.repo.RemoveParticipant(ctx, e.ID, usr.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotParticipant {
			return Exam{}, core.NewValidationError(ErrNotParticipant)
		}
		return Exam{}, err
	}
	return svc.GetByID(ctx, usr, e.ID)
}

// UploadMaterial stores the study material and replaces the previous one.
func (svc *Service) UploadMaterial(ctx context.Context, usr user.User, e Exam, f *core.File) (Exam, error) {
	if !e.CanEdit(usr.ID) {
		return Exam{}, core.NewPermissionError(msgUpdateForbidden)
	}
	if f == nil {
		return Exam{}, core.NewValidationError(errNoMaterialUpload, core.FieldError{Field: "material", Error: "this field is required"})
	}
	if err := core.CheckUpload("material", *f, MaterialMaxSize, MaterialExts...); err != nil {
		return Exam{}, err
	}
	key := core.ObjectKey(materialKeyPrefix, f.Name)
	if _, err := svc.storage.Upload(ctx, key, *f); err != nil {
		return Exam{}, core.NewProviderError("uploading exam material", err)
	}
	oldKey := e.MaterialKey
	e.MaterialKey = key
	e.Material = null.StringFrom(f.Name)
	e.UpdatedAt = time.Now().UTC()
	if _, err := svc.repo.UpdateExam(ctx, e); err != nil {
		return Exam{}, err
	}
	if err := svc.deleteObject(ctx, oldKey); err != nil {
		return Exam{}, err
	}
	return svc.GetByID(ctx, usr, e.ID)
}

// MaterialLink returns a signed, expiring download URL for the material.
func (svc *Service) MaterialLink(ctx context.Context, e Exam) (MaterialLink, error) {
	if !e.HasMaterial() {
		return MaterialLink{}, ErrNoMaterial
	}
	info, err := svc.storage.Info(ctx, e.MaterialKey)
	if err != nil {
		if errors.Cause(err) == core.ErrObjectNotFound {
			return MaterialLink{}, ErrNoMaterial
		}
		return MaterialLink{}, core.NewProviderError("reading exam material", err)
	}
	url, err := svc.storage.SignedURL(ctx, e.MaterialKey, svc.signedURLTTL)
	if err != nil {
		return MaterialLink{}, core.NewProviderError("signing exam material url", err)
	}
	return MaterialLink{
		Name:      e.Material.String,
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(svc.signedURLTTL),
		Info:      info,
	}, nil
}

// DownloadMaterial opens the material; the caller must close the reader.
func (svc *Service) DownloadMaterial(ctx context.Context, e Exam) (io.ReadCloser, *core.ObjectInfo, error) {
	if !e.HasMaterial() {
		return nil, nil, ErrNoMaterial
	}
	rc, info, err := svc.storage.Download(ctx, e.MaterialKey)
	if err != nil {
		if errors.Cause(err) == core.ErrObjectNotFound {
			return nil, nil, ErrNoMaterial
		}
		return nil, nil, core.NewProviderError("downloading exam material", err)
	}
	return rc, info, nil
}

// StudyPlan asks the AI for a study plan; only the creator and participants may ask.
func (svc *Service) StudyPlan(ctx context.Context, usr user.User, e Exam, req ai.Request) ([]ai.Item, error) {
	if !svc.ai.Available() {
		return nil, core.NewUnavailableError("AI service not available")
	}
	if !e.CanEdit(usr.ID) {
		return nil, core.NewPermissionError(msgAccessForbidden)
	}
	return svc.ai.StudyPlan(ctx, e.Title, e.Summary, req)
}
