package seq

import (
	"context"
	"fmt"

	"SeqChat/module/chat/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the ordering paths rely on:
// the descending-sort LastSequence query and the unique watermark row.
func (d *DAO) EnsureIndexes(ctx context.Context) error {
	collections := map[string][]mongo.IndexModel{
		model.MsgTableName: {{
			Keys: bson.D{
				{Key: model.MsgFieldConversationID, Value: 1},
				{Key: model.MsgFieldSenderID, Value: 1},
				{Key: model.MsgFieldSeq, Value: 1},
			},
			Options: options.Index().SetName("ix_sender_seq"),
		}},
		model.SenderSeqTableName: {{
			Keys: bson.D{
				{Key: model.SenderSeqFieldConversationID, Value: 1},
				{Key: model.SenderSeqFieldSenderID, Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_conv_sender"),
		}},
	}

	for collName, indexes := range collections {
		coll := d.DB.Collection(collName)

		existing, err := coll.Indexes().ListSpecifications(ctx)
		if err != nil {
			return fmt.Errorf("list indexes for %s: %w", collName, err)
		}
		existingNames := make(map[string]struct{}, len(existing))
		for _, spec := range existing {
			existingNames[spec.Name] = struct{}{}
		}

		for _, idx := range indexes {
			if idx.Options != nil && idx.Options.Name != nil {
				if _, ok := existingNames[*idx.Options.Name]; ok {
					continue
				}
			}
			if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
				return fmt.Errorf("create index %s on %s: %w", *idx.Options.Name, collName, err)
			}
		}
	}
	return nil
}
