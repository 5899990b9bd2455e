package models

import "encoding/json"

// LogLevel is the severity of a buffered log entry.
type LogLevel string

const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogCategory tags the subsystem that recorded an entry.
type LogCategory string

const (
	CategoryProxy      LogCategory = "proxy"
	CategoryConnection LogCategory = "connection"
	CategoryAuth       LogCategory = "auth"
	CategoryAdmin      LogCategory = "admin"
	CategoryRemote     LogCategory = "remote"
	CategorySystem     LogCategory = "system"
)

// LogEntry is one structured operational event. ID is assigned by the
// buffer on append and increases monotonically; entries handed to
// consumers are copies and are never mutated afterwards.
type LogEntry struct {
	ID          uint64          `json:"id"`
	TimestampMs int64           `json:"timestamp_ms"`
	Category    LogCategory     `json:"category"`
	Level       LogLevel        `json:"level"`
	Message     string          `json:"message"`
	Detail      json.RawMessage `json:"detail,omitempty"`
}

// OpType enumerates the mint operation kinds tracked by the activity
// buffer.
type OpType string

const (
	OpMintQuote OpType = "mint_quote"
	OpMint      OpType = "mint"
	OpMeltQuote OpType = "melt_quote"
	OpMelt      OpType = "melt"
	OpSwap      OpType = "swap"
	OpInfo      OpType = "info"
	OpKeys      OpType = "keys"
	OpRestore   OpType = "restore"
)

// ActivityRecord is one observed mint operation (business activity, as
// opposed to operational logging). Amount is nil for operations that
// carry no amount, such as info lookups.
type ActivityRecord struct {
	ID          uint64 `json:"id"`
	Op          OpType `json:"type"`
	Amount      *int64 `json:"amount,omitempty"`
	TimestampMs int64  `json:"timestamp_ms"`
	Source      string `json:"source"`
}
