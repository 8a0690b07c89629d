package websocket

// Inbound message types the core ingress accepts (§4.8 Transport Bindings).
const (
	MsgAuthenticate   = "authenticate"
	MsgSetContext     = "setContext"
	MsgJoinLobby      = "joinLobby"
	MsgLeaveLobby     = "leaveLobby"
	MsgJoinInProgress = "joinInProgress"
	MsgSubmitAnswer   = "submitAnswer"
	MsgStartSoloQuiz  = "startSoloQuiz"
	MsgCheckEvents    = "checkEvents"
	MsgHeartbeatAck   = "heartbeat_ack"
)
