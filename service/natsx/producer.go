package natsx

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"SeqChat/module/chat/model"
	errs "SeqChat/tools/errs"

	"github.com/nats-io/nats.go"
)

const deliverSubjectPrefix = "chat.deliver."

// Config for Connect.
type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Client publishes ordered delivery batches. Which subscribers consume a
// conversation subject is somebody else's problem; this side only emits.
type Client struct {
	nc *nats.Conn
}

func Connect(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.Wrap(err, "nats connect")
	}
	return &Client{nc: nc}, nil
}

// DeliverSubject maps a conversation to its delivery subject.
func DeliverSubject(conversationID string) string {
	return deliverSubjectPrefix + conversationID
}

// PublishDelivery emits one ordered batch for a conversation. The batch is
// already sorted by the engine; sender and size ride along as headers.
func (c *Client) PublishDelivery(conversationID, senderID string, batch []*model.Message) error {
	if len(batch) == 0 {
		return nil
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return errs.Wrap(err, "marshal delivery batch")
	}

	msg := nats.NewMsg(DeliverSubject(conversationID))
	msg.Data = data
	msg.Header.Add("sender-id", senderID)
	msg.Header.Add("batch-size", strconv.Itoa(len(batch)))

	if err := c.nc.PublishMsg(msg); err != nil {
		return errs.Wrapf(err, "publish delivery conv=%s", conversationID)
	}
	return nil
}

func (c *Client) Close() {
	if c != nil && c.nc != nil {
		_ = c.nc.Drain()
	}
}
