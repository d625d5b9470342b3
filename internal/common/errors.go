package common

import "errors"

type ErrorCode string
type ErrorMessage string

const (
	ErrCodeConfigLoadFailed          ErrorCode = "CONFIG_LOAD_FAILED"
	ErrCodeGRPCConnectionFailed      ErrorCode = "GRPC_CONNECTION_FAILED"
	ErrCodeGRPCServeFailed           ErrorCode = "GRPC_SERVE_FAILED"
	ErrCodeHTTPServeFailed           ErrorCode = "HTTP_SERVE_FAILED"
	ErrCodeStoreOpenFailed           ErrorCode = "STORE_OPEN_FAILED"
	ErrCodeStoreUnavailable          ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeStoreQueryFailed          ErrorCode = "STORE_QUERY_FAILED"
	ErrCodeStoreAppendFailed         ErrorCode = "STORE_APPEND_FAILED"
	ErrCodeEmptySeries               ErrorCode = "EMPTY_SERIES"
	ErrCodeBackfillFailed            ErrorCode = "BACKFILL_FAILED"
	ErrCodeInvalidTimeframe          ErrorCode = "INVALID_TIMEFRAME"
	ErrCodeInvalidPosition           ErrorCode = "INVALID_POSITION"
	ErrCodeChannelFull               ErrorCode = "CHANNEL_FULL"
	ErrCodeStreamClosed              ErrorCode = "STREAM_CLOSED"
	ErrCodeGRPCConnectionCloseFailed ErrorCode = "GRPC_CONNECTION_CLOSE_FAILED"
	ErrCodeSchedulerStopped          ErrorCode = "SCHEDULER_STOPPED"
	ErrCodeWebsocketFailed           ErrorCode = "WEBSOCKET_FAILED"
)

const (
	ErrMsgConfigLoadFailed          ErrorMessage = "Failed to load configuration"
	ErrMsgGRPCConnectionFailed      ErrorMessage = "Failed to connect to gRPC server"
	ErrMsgGRPCServeFailed           ErrorMessage = "Failed to serve gRPC"
	ErrMsgHTTPServeFailed           ErrorMessage = "Failed to serve HTTP"
	ErrMsgStoreOpenFailed           ErrorMessage = "Failed to open tick store"
	ErrMsgStoreUnavailable          ErrorMessage = "Tick store is not ready"
	ErrMsgStoreQueryFailed          ErrorMessage = "Failed to query tick store"
	ErrMsgStoreAppendFailed         ErrorMessage = "Failed to append to tick store"
	ErrMsgEmptySeries               ErrorMessage = "No prior tick in the series"
	ErrMsgBackfillFailed            ErrorMessage = "Failed to backfill missing ticks"
	ErrMsgInvalidTimeframe          ErrorMessage = "Invalid timeframe"
	ErrMsgInvalidPosition           ErrorMessage = "Invalid position"
	ErrMsgChannelFull               ErrorMessage = "Channel is full, message dropped"
	ErrMsgStreamClosed              ErrorMessage = "Stream closed by server"
	ErrMsgGRPCConnectionCloseFailed ErrorMessage = "failed to close gRPC connection"
	ErrMsgSchedulerStopped          ErrorMessage = "Tick scheduler stopped with error"
	ErrMsgWebsocketFailed           ErrorMessage = "WebSocket stream failed"
)

func (e ErrorCode) String() string {
	return string(e)
}

func (m ErrorMessage) String() string {
	return string(m)
}

var (
	// ErrStoreUnavailable is returned while the tick store is not ready yet.
	ErrStoreUnavailable = errors.New("tick store unavailable")
	// ErrEmptySeries is returned when a prior tick is required but none is stored.
	ErrEmptySeries = errors.New("tick series is empty")
	// ErrInvalidTimeframe signals an unknown timeframe value.
	ErrInvalidTimeframe = errors.New("invalid timeframe")
	// ErrInvalidTick rejects malformed ticks at construction or append time.
	ErrInvalidTick = errors.New("invalid tick")
	// ErrInvalidBias rejects a bias configuration that cannot produce a direction or magnitude.
	ErrInvalidBias = errors.New("invalid bias config")
	// ErrInvalidPosition signals an unknown open position value.
	ErrInvalidPosition = errors.New("invalid position")
)
