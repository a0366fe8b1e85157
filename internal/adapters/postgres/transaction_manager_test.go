package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/alicia/internal/domain/models"
)

func TestTransactionManager_Commit(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)

	txMgr := NewTransactionManager(pool)
	users := NewUserRepository(pool)

	user := models.NewUser("u_tx_commit1", "test-user", "hash")

	err := txMgr.WithTransaction(context.Background(), func(txCtx context.Context) error {
		return users.Create(txCtx, user)
	})
	require.NoError(t, err)

	retrieved, err := users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, retrieved.ID)
}

func TestTransactionManager_Rollback(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)

	txMgr := NewTransactionManager(pool)
	users := NewUserRepository(pool)

	user := models.NewUser("u_tx_rollback1", "test-user", "hash")
	testErr := errors.New("test error")

	err := txMgr.WithTransaction(context.Background(), func(txCtx context.Context) error {
		if err := users.Create(txCtx, user); err != nil {
			return err
		}
		return testErr
	})
	require.ErrorIs(t, err, testErr)

	_, err = users.GetByID(context.Background(), user.ID)
	assert.Error(t, err, "user should have been rolled back")
}

func TestTransactionManager_NestedTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)

	txMgr := NewTransactionManager(pool)
	users := NewUserRepository(pool)

	user1 := models.NewUser("u_tx_nested1", "nested-1", "hash")
	user2 := models.NewUser("u_tx_nested2", "nested-2", "hash")

	err := txMgr.WithTransaction(context.Background(), func(txCtx context.Context) error {
		if err := users.Create(txCtx, user1); err != nil {
			return err
		}

		return txMgr.WithTransaction(txCtx, func(nestedCtx context.Context) error {
			return users.Create(nestedCtx, user2)
		})
	})
	require.NoError(t, err)

	_, err = users.GetByID(context.Background(), user1.ID)
	assert.NoError(t, err, "first user should be committed")
	_, err = users.GetByID(context.Background(), user2.ID)
	assert.NoError(t, err, "second user should be committed")
}

func TestTransactionManager_NestedRollback(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)

	txMgr := NewTransactionManager(pool)
	users := NewUserRepository(pool)

	user1 := models.NewUser("u_tx_nested_rb1", "nested-rb-1", "hash")
	user2 := models.NewUser("u_tx_nested_rb2", "nested-rb-2", "hash")
	testErr := errors.New("nested error")

	err := txMgr.WithTransaction(context.Background(), func(txCtx context.Context) error {
		if err := users.Create(txCtx, user1); err != nil {
			return err
		}

		return txMgr.WithTransaction(txCtx, func(nestedCtx context.Context) error {
			if err := users.Create(nestedCtx, user2); err != nil {
				return err
			}
			return testErr
		})
	})
	require.ErrorIs(t, err, testErr)

	_, err = users.GetByID(context.Background(), user1.ID)
	assert.Error(t, err, "first user should be rolled back")
	_, err = users.GetByID(context.Background(), user2.ID)
	assert.Error(t, err, "second user should be rolled back")
}

func TestTransactionManager_GetTx_NoTransaction(t *testing.T) {
	ctx := context.Background()

	tx := GetTx(ctx)
	assert.Nil(t, tx, "expected nil transaction in empty context")
}

func TestTransactionManager_GetTx_WithTransaction(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)

	txMgr := NewTransactionManager(pool)

	err := txMgr.WithTransaction(context.Background(), func(txCtx context.Context) error {
		tx := GetTx(txCtx)
		assert.NotNil(t, tx, "expected transaction in transaction context")
		return nil
	})
	require.NoError(t, err)
}

func TestTransactionManager_GetConn_Pool(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)

	ctx := context.Background()
	conn := GetConn(ctx, pool)
	assert.NotNil(t, conn, "expected connection from pool")
}

func TestTransactionManager_GetConn_Transaction(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDB(t)

	txMgr := NewTransactionManager(pool)

	err := txMgr.WithTransaction(context.Background(), func(txCtx context.Context) error {
		conn := GetConn(txCtx, pool)
		assert.NotNil(t, conn, "expected connection from transaction")

		tx := GetTx(txCtx)
		assert.NotNil(t, tx, "expected transaction in context")
		return nil
	})
	require.NoError(t, err)
}
