package handlers

// Custom WebSocket close codes used by the lobby websocket handler. These
// give clients a more specific reason than the standard codes.
const (
	BadSubprotocolError   = 3000 // client connected with an unsupported subprotocol
	InvalidAuthTokenError = 3001 // guest identity could not be established
)

// Wire error kinds carried in error payloads, mirroring the command error
// taxonomy.
const (
	KindNotFound        = "NOT_FOUND"
	KindUnauthorized    = "UNAUTHORIZED"
	KindInvalidState    = "INVALID_STATE"
	KindOutOfTurn       = "OUT_OF_TURN"
	KindOutOfBounds     = "OUT_OF_BOUNDS"
	KindColumnFull      = "COLUMN_FULL"
	KindLobbyFull       = "CAPACITY_EXCEEDED"
	KindAlreadyJoined   = "DUPLICATE_MEMBERSHIP"
	KindAlreadyStarted  = "ALREADY_STARTED"
	KindInvalidSettings = "INVALID_SETTINGS"
	KindBadRequest      = "BAD_REQUEST"
	KindInternal        = "INTERNAL"
)
