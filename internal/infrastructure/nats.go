package infrastructure

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SnapshotSubjects is the JetStream subject space live trade snapshots are
// published on: trade.snapshot.<strategy>.<symbol>.
const SnapshotSubjects = "trade.snapshot.*.*"

func InitNATS(url string, logger *zap.Logger) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, nil, err
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "TRADING",
		Subjects: []string{SnapshotSubjects},
	})
	if err != nil {
		// If the stream exists, try updating it in place.
		_, err = js.UpdateStream(&nats.StreamConfig{
			Name:     "TRADING",
			Subjects: []string{SnapshotSubjects},
		})
		if err != nil {
			logger.Warn("failed to create or update stream", zap.Error(err))
		}
	}

	return nc, js, nil
}
