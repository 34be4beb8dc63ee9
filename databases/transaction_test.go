package databases

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeSession struct {
	started, committed, aborted int
	commitErr                   error
}

func (f *fakeSession) StartTransaction(...*options.TransactionOptions) error {
	f.started++
	return nil
}

func (f *fakeSession) CommitTransaction(context.Context) error {
	f.committed++
	return f.commitErr
}

func (f *fakeSession) AbortTransaction(context.Context) error {
	f.aborted++
	return nil
}

func TestRunTransaction(t *testing.T) {
	session := &fakeSession{}
	calls := 0
	err := runTransaction(context.Background(), session, func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, session.committed)
	assert.Equal(t, 0, session.aborted)
}

func TestRunTransactionAbortsOnError(t *testing.T) {
	session := &fakeSession{}
	boom := errors.New("insert failed")
	err := runTransaction(context.Background(), session, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, session.aborted)
	assert.Equal(t, 0, session.committed)
}

func TestRunTransactionDoesNotRetryTransientErrors(t *testing.T) {
	transient := mongo.CommandError{
		Code:   112,
		Name:   "WriteConflict",
		Labels: []string{"TransientTransactionError"},
	}
	session := &fakeSession{commitErr: transient}
	calls := 0
	err := runTransaction(context.Background(), session, func(context.Context) error {
		calls++
		return nil
	})

	var cmdErr mongo.CommandError
	assert.True(t, errors.As(err, &cmdErr))
	assert.True(t, cmdErr.HasErrorLabel("TransientTransactionError"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, session.started)
	assert.Equal(t, 1, session.committed)

	session = &fakeSession{}
	calls = 0
	err = runTransaction(context.Background(), session, func(context.Context) error {
		calls++
		return transient
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, session.started)
}
