package constants

import "time"

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ContentTypeJSON = "application/json"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
)

const (
	AgentKeyPrefix = "agent:config:"
)

const (
	TableDone = "done"
)
