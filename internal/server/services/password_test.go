package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "old")
	sess, err := f.svc.Login(ctx, "alice", "old")
	require.NoError(t, err)

	f.expectTx(true)
	require.NoError(t, f.svc.ChangePassword(ctx, alice.ID, "old", "new"))
	assert.Nil(t, f.users.stored(t, alice.ID).RefreshToken)

	_, err = f.svc.Login(ctx, "alice", "old")
	requireKind(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Login(ctx, "alice", "new")
	require.NoError(t, err)

	f.expectTx(false)
	_, err = f.svc.RefreshSession(ctx, sess.Tokens.RefreshToken)
	requireKind(t, err, common.ErrorUnauthorized)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestChangePassword_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "old")

	err := f.svc.ChangePassword(ctx, alice.ID, "wrong", "new")
	requireKind(t, err, common.ErrorUnauthorized)
	assert.Equal(t, "Invalid old password", common.MessageOf(err))

	requireKind(t, f.svc.ChangePassword(ctx, "", "old", "new"), common.ErrorUnauthorized)
	requireKind(t, f.svc.ChangePassword(ctx, alice.ID, "", "new"), common.ErrorValidation)
	requireKind(t, f.svc.ChangePassword(ctx, alice.ID, "old", "  "), common.ErrorValidation)
	requireKind(t, f.svc.ChangePassword(ctx, uuid.NewString(), "old", "new"), common.ErrorNotFound)

	_, err = f.svc.Login(ctx, "alice", "old")
	require.NoError(t, err)
}

func TestChangePassword_UpdateFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@x.com", "old")
	f.users.setPw = errors.New("deadlock detected")

	f.expectTx(false)
	err := f.svc.ChangePassword(ctx, alice.ID, "old", "new")
	requireKind(t, err, common.ErrorInternal)
	assert.Equal(t, "Something went wrong", common.MessageOf(err))
	require.NoError(t, f.mock.ExpectationsWereMet())
}
