package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/clients/gcp"
	"github.com/studybits/studybits-backend/internal/data/repos"
	types "github.com/studybits/studybits-backend/internal/domain"
	"github.com/studybits/studybits-backend/internal/platform/logger"
)

const (
	// SagaActionKindDeleteOnCommit deletes a blob once the owning db
	// transaction has committed. Appended inside the transaction, so a
	// rollback discards the action with the rest of the writes.
	SagaActionKindDeleteOnCommit = "blob_delete_on_commit"

	// SagaActionKindDeleteOnAbort deletes a blob the caller uploaded
	// before opening the transaction. Appended on its own connection so
	// it survives a rollback; a successful commit cancels it.
	SagaActionKindDeleteOnAbort = "blob_delete_on_abort"
)

// SagaService keeps object storage consistent with multi-document
// transitions. The db is the source of truth; blob deletes are deferred
// to after commit and fresh uploads are compensated when the
// transaction fails.
type SagaService interface {
	CreateSaga(ctx context.Context, ownerUserID uuid.UUID) (uuid.UUID, error)
	AppendDeleteOnCommit(ctx context.Context, tx *gorm.DB, sagaID uuid.UUID, blobURL string) error
	AppendDeleteOnAbort(ctx context.Context, sagaID uuid.UUID, blobURL string) error
	// Finish runs after a successful commit: pending on-commit deletes
	// are executed, on-abort deletes are canceled.
	Finish(ctx context.Context, sagaID uuid.UUID) error
	// Abort runs after a rollback: pending on-abort deletes are
	// executed so fresh uploads don't leak.
	Abort(ctx context.Context, sagaID uuid.UUID) error
}

type sagaService struct {
	db      *gorm.DB
	log     *logger.Logger
	runs    repos.SagaRunRepo
	actions repos.SagaActionRepo
	bucket  gcp.BucketService
}

func NewSagaService(
	db *gorm.DB,
	baseLog *logger.Logger,
	runs repos.SagaRunRepo,
	actions repos.SagaActionRepo,
	bucket gcp.BucketService,
) SagaService {
	return &sagaService{
		db:      db,
		log:     baseLog.With("service", "SagaService"),
		runs:    runs,
		actions: actions,
		bucket:  bucket,
	}
}

// CreateSaga opens the run on its own connection so compensation
// entries survive whatever happens to the caller's transaction.
func (s *sagaService) CreateSaga(ctx context.Context, ownerUserID uuid.UUID) (uuid.UUID, error) {
	if ownerUserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("missing owner_user_id")
	}
	now := time.Now().UTC()
	row := &types.SagaRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		Status:      types.SagaStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.runs.Create(ctx, nil, []*types.SagaRun{row}); err != nil {
		return uuid.Nil, err
	}
	return row.ID, nil
}

func (s *sagaService) AppendDeleteOnCommit(ctx context.Context, tx *gorm.DB, sagaID uuid.UUID, blobURL string) error {
	if tx == nil {
		return fmt.Errorf("AppendDeleteOnCommit requires a db transaction")
	}
	return s.appendAction(ctx, tx, sagaID, SagaActionKindDeleteOnCommit, blobURL)
}

func (s *sagaService) AppendDeleteOnAbort(ctx context.Context, sagaID uuid.UUID, blobURL string) error {
	return s.appendAction(ctx, nil, sagaID, SagaActionKindDeleteOnAbort, blobURL)
}

type blobActionPayload struct {
	URL string `json:"url"`
}

func (s *sagaService) appendAction(ctx context.Context, tx *gorm.DB, sagaID uuid.UUID, kind string, blobURL string) error {
	if sagaID == uuid.Nil {
		return fmt.Errorf("missing saga_id")
	}
	blobURL = strings.TrimSpace(blobURL)
	if blobURL == "" {
		return nil
	}

	maxSeq, err := s.actions.GetMaxSeq(ctx, tx, sagaID)
	if err != nil {
		return err
	}

	raw, _ := json.Marshal(blobActionPayload{URL: blobURL})
	now := time.Now().UTC()
	row := &types.SagaAction{
		ID:        uuid.New(),
		SagaID:    sagaID,
		Seq:       maxSeq + 1,
		Kind:      kind,
		Payload:   datatypes.JSON(raw),
		Status:    types.SagaActionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.actions.Create(ctx, tx, []*types.SagaAction{row})
	return err
}

func (s *sagaService) Finish(ctx context.Context, sagaID uuid.UUID) error {
	return s.resolve(ctx, sagaID, SagaActionKindDeleteOnCommit, types.SagaStatusDone)
}

func (s *sagaService) Abort(ctx context.Context, sagaID uuid.UUID) error {
	return s.resolve(ctx, sagaID, SagaActionKindDeleteOnAbort, types.SagaStatusCompensated)
}

func (s *sagaService) resolve(ctx context.Context, sagaID uuid.UUID, executeKind string, finalStatus string) error {
	if sagaID == uuid.Nil {
		return fmt.Errorf("missing saga_id")
	}

	actions, err := s.actions.ListPending(ctx, nil, sagaID)
	if err != nil {
		return err
	}

	for _, a := range actions {
		if a.Kind != executeKind {
			_ = s.actions.UpdateFields(ctx, nil, a.ID, map[string]interface{}{
				"status": types.SagaActionStatusCanceled,
			})
			continue
		}

		nextStatus := types.SagaActionStatusDone
		if execErr := s.executeAction(ctx, a); execErr != nil {
			// Leave the action pending so it stays visible; blob
			// cleanup is best effort and the db already committed.
			s.log.Warn("saga blob action failed",
				"saga_id", sagaID.String(),
				"action_id", a.ID.String(),
				"kind", a.Kind,
				"seq", a.Seq,
				"err", execErr.Error(),
			)
			continue
		}
		_ = s.actions.UpdateFields(ctx, nil, a.ID, map[string]interface{}{"status": nextStatus})
	}

	return s.runs.UpdateFields(ctx, nil, sagaID, map[string]interface{}{"status": finalStatus})
}

func (s *sagaService) executeAction(ctx context.Context, a *types.SagaAction) error {
	var p blobActionPayload
	_ = json.Unmarshal(a.Payload, &p)
	url := strings.TrimSpace(p.URL)
	if url == "" {
		return nil
	}
	err := s.bucket.DeleteByURL(ctx, url)
	if isNotFoundErr(err) {
		return nil
	}
	return err
}

func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not found") ||
		strings.Contains(s, "doesn't exist") ||
		strings.Contains(s, "does not exist")
}
