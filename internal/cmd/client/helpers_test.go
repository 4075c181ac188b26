package client

import (
	"github.com/rzbill/bifrost/internal/bifrost"
	"github.com/rzbill/bifrost/internal/envelope"
	"github.com/rzbill/bifrost/internal/logs"
)

func bifrostRecord(lsn logs.LSN, env envelope.Envelope) bifrost.LogRecord {
	return bifrost.LogRecord{LogID: 0, LSN: lsn, Envelope: env}
}
