package repos_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studybits/studybits-backend/internal/data/repos"
	"github.com/studybits/studybits-backend/internal/data/repos/testutil"
	types "github.com/studybits/studybits-backend/internal/domain"
)

func TestUserTokenRepoGetByRefreshToken(t *testing.T) {
	ctx := context.Background()
	tx := testutil.Tx(t, testutil.DB(t))
	repo := repos.NewUserTokenRepo(tx, testutil.Logger(t))

	user := testutil.SeedUser(t, ctx, tx, "tokens@studybits.dev")
	row := &types.UserToken{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	if _, err := repo.Create(ctx, tx, []*types.UserToken{row}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByRefreshToken(ctx, tx, row.RefreshToken)
	if err != nil {
		t.Fatalf("GetByRefreshToken: %v", err)
	}
	if got.ID != row.ID || got.UserID != user.ID {
		t.Fatalf("GetByRefreshToken: want id=%s got=%+v", row.ID, got)
	}

	// A spent or never-issued token is a typed miss, never a nil row.
	_, err = repo.GetByRefreshToken(ctx, tx, "never-issued")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetByRefreshToken miss: want=ErrRecordNotFound got=%v", err)
	}

	if err := repo.FullDeleteByIDs(ctx, tx, []uuid.UUID{row.ID}); err != nil {
		t.Fatalf("FullDeleteByIDs: %v", err)
	}
	_, err = repo.GetByRefreshToken(ctx, tx, row.RefreshToken)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetByRefreshToken after delete: want=ErrRecordNotFound got=%v", err)
	}
}
