package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/experta/session-engine/txn"
)

var _ txn.Provider = (*TxnProvider)(nil)

// TxnProvider implements txn.Provider over MongoDB driver sessions. Writes
// performed with the transaction context join a single multi-document
// transaction; concurrent transactions touching the same documents conflict
// at commit and surface as retryable write failures.
type TxnProvider struct {
	client *mongo.Client
}

func NewTxnProvider(client *mongo.Client) *TxnProvider {
	return &TxnProvider{client: client}
}

func (p *TxnProvider) Begin(ctx context.Context) (txn.Txn, error) {
	sess, err := p.client.StartSession()
	if err != nil {
		return nil, errors.Wrap(err, "start mongodb session")
	}
	if err := sess.StartTransaction(); err != nil {
		sess.EndSession(ctx)
		return nil, errors.Wrap(err, "start mongodb transaction")
	}
	return &mongoTxn{
		sess: sess,
		ctx:  mongo.NewSessionContext(ctx, sess),
		root: ctx,
	}, nil
}

type mongoTxn struct {
	sess *mongo.Session
	ctx  context.Context
	root context.Context
}

func (t *mongoTxn) Context() context.Context {
	return t.ctx
}

func (t *mongoTxn) Commit() error {
	return t.sess.CommitTransaction(t.root)
}

func (t *mongoTxn) Abort() error {
	return t.sess.AbortTransaction(t.root)
}

func (t *mongoTxn) End() {
	t.sess.EndSession(t.root)
}
