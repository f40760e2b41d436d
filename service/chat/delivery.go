package chat

import (
	"context"
	"time"

	"SeqChat/logger"
	"SeqChat/module/chat/model"
	"SeqChat/module/chat/seq"
	"SeqChat/service/natsx"
	"SeqChat/service/storage"

	"go.uber.org/zap"
)

// Delivery is the downstream side of the ordering engine: once a batch is
// released (in order or forced), it is committed to Mongo, the watermark
// cache is refreshed, and the batch is published for fan-out. Both the
// synchronous DATA path and the gap-timer sink run through Flush.
type Delivery struct {
	DAO   *seq.DAO
	Cache *storage.CachedSeqStore
	Nats  *natsx.Client

	CommitTimeout time.Duration
}

func NewDelivery(dao *seq.DAO, cache *storage.CachedSeqStore, nc *natsx.Client) *Delivery {
	return &Delivery{DAO: dao, Cache: cache, Nats: nc, CommitTimeout: 5 * time.Second}
}

// Flush persists and publishes one released batch. Per-message commit
// failures are logged and skipped rather than halting the batch; the
// engine has already advanced, so holding the batch back helps nobody.
func (d *Delivery) Flush(conversationID, senderID string, batch []*model.Message) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.CommitTimeout)
	defer cancel()

	maxSeq := int64(0)
	for _, m := range batch {
		if d.DAO != nil {
			if err := d.DAO.CommitDelivered(ctx, m); err != nil {
				logger.Error("commit delivered failed",
					zap.String("msg_id", m.ID),
					zap.String("conversation_id", conversationID),
					zap.Error(err))
				continue
			}
		}
		if m.Ordered() && m.SeqValue() > maxSeq {
			maxSeq = m.SeqValue()
		}
	}

	if d.Cache != nil && maxSeq > 0 {
		d.Cache.Remember(ctx, conversationID, senderID, maxSeq)
	}

	if d.Nats != nil {
		if err := d.Nats.PublishDelivery(conversationID, senderID, batch); err != nil {
			logger.Error("publish delivery failed",
				zap.String("conversation_id", conversationID),
				zap.Error(err))
		}
	}
}
