package seq

import (
	"context"
	"time"

	"SeqChat/module/chat/model"
	errs "SeqChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DAO is the durable side of the ordering engine: committed message rows
// plus the per-(conversation, sender) watermark the cold-start reconciler
// reads after a restart or a reap.
type DAO struct{ DB *mongo.Database }

func NewDAO(db *mongo.Database) *DAO { return &DAO{DB: db} }

func (d *DAO) msgColl() *mongo.Collection {
	return d.DB.Collection(model.MsgTableName)
}

func (d *DAO) seqColl() *mongo.Collection {
	return d.DB.Collection(model.SenderSeqTableName)
}

// LastSequence returns the highest committed sequence for the pair that is
// strictly below `below`: one FindOne, sorted descending, limit 1. When no
// message row matches (e.g. history was compacted) the sender_seq watermark
// answers instead, as long as it sits below the observed sequence.
func (d *DAO) LastSequence(ctx context.Context, conversationID, senderID string, below int64) (int64, bool, error) {
	filter := bson.M{
		model.MsgFieldConversationID: conversationID,
		model.MsgFieldSenderID:       senderID,
		model.MsgFieldSeq:            bson.M{"$gt": int64(0), "$lt": below},
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: model.MsgFieldSeq, Value: -1}}).
		SetProjection(bson.M{model.MsgFieldSeq: 1})

	var row struct {
		Seq int64 `bson:"seq"`
	}
	err := d.msgColl().FindOne(ctx, filter, opts).Decode(&row)
	if err == nil {
		return row.Seq, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return 0, false, errs.Wrapf(err, "query last seq conv=%s sender=%s", conversationID, senderID)
	}

	var wm model.SenderSeq
	err = d.seqColl().FindOne(ctx, bson.M{
		model.SenderSeqFieldConversationID: conversationID,
		model.SenderSeqFieldSenderID:       senderID,
	}).Decode(&wm)
	if err == mongo.ErrNoDocuments {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.Wrapf(err, "query sender_seq conv=%s sender=%s", conversationID, senderID)
	}
	if wm.MaxSeq <= 0 || wm.MaxSeq >= below {
		return 0, false, nil
	}
	return wm.MaxSeq, true, nil
}

// CommitDelivered persists one delivered message and, for ordered
// messages, $max-bumps the sender watermark so it never moves backwards.
func (d *DAO) CommitDelivered(ctx context.Context, m *model.Message) error {
	if m == nil {
		return errs.New("nil message")
	}
	if _, err := d.msgColl().InsertOne(ctx, m); err != nil {
		return errs.Wrapf(err, "insert message id=%s", m.ID)
	}
	if !m.Ordered() {
		return nil
	}

	now := time.Now()
	_, err := d.seqColl().UpdateOne(ctx,
		bson.M{
			model.SenderSeqFieldConversationID: m.ConversationID,
			model.SenderSeqFieldSenderID:       m.SenderID,
		},
		bson.M{
			"$max": bson.M{model.SenderSeqFieldMaxSeq: m.SeqValue()},
			"$set": bson.M{model.SenderSeqFieldUpdateTime: now},
			"$setOnInsert": bson.M{
				model.SenderSeqFieldConversationID: m.ConversationID,
				model.SenderSeqFieldSenderID:       m.SenderID,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errs.Wrapf(err, "bump sender_seq conv=%s sender=%s", m.ConversationID, m.SenderID)
	}
	return nil
}
