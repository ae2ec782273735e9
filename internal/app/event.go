package app

import (
	"encoding/json"

	"labrelay/internal/core"
)

// Wire format: one JSON envelope per websocket frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Inbound event names.
const (
	EventJoinServer      = "join-server"
	EventLeaveServer     = "leave-server"
	EventActivityUpdate  = "activity-update"
	EventShutdown        = "shutdown"
	EventLogoff          = "logoff"
	EventReboot          = "reboot"
	EventPowerMonitoring = "power-monitoring-update"
	EventLogoutUser      = "logout-user"
	EventShareScreen     = "share-screen"
	EventJoinSubject     = "join-subject"
	EventLeaveSubject    = "leave-subject"
	EventLaunchWebpage   = "launch-webpage"
	EventUploadFileChunk = "upload-file-chunk"
	EventShowScreen      = "show-screen"
	EventHideScreen      = "hide-screen"
	EventScreenData      = "screen-data"
	EventStartLiveQuiz   = "start-live-quiz"
	EventPing            = "ping"
)

// Outbound-only event names.
const (
	EventPong               = "pong"
	EventUserCount          = "user count"
	EventRefreshPowerStatus = "refresh-power-status"
	EventStudentLoggedOut   = "student-logged-out"
	EventScreenShare        = "screen-share"
	EventStudentJoined      = "student-joined"
	EventStudentLeft        = "student-left"
)

type devicePayload struct {
	DeviceID string `json:"deviceId"`
}

type subjectUserPayload struct {
	UserID    string `json:"userId"`
	SubjectID string `json:"subjectId"`
}

type shareScreenPayload struct {
	UserID    string          `json:"userId"`
	SubjectID string          `json:"subjectId"`
	Stream    json.RawMessage `json:"stream"`
}

type launchWebpagePayload struct {
	DeviceID string `json:"deviceId"`
	URL      string `json:"url"`
}

type uploadChunkPayload struct {
	DeviceID    string `json:"deviceId"`
	Chunk       string `json:"chunk"`
	Filename    string `json:"filename"`
	SubjectName string `json:"subjectName"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
}

type showScreenPayload struct {
	DeviceID  string `json:"deviceId"`
	UserID    string `json:"userId"`
	SubjectID string `json:"subjectId"`
}

type screenDataPayload struct {
	UserID     string          `json:"userId"`
	SubjectID  string          `json:"subjectId"`
	ScreenData json.RawMessage `json:"screenData"`
}

type startLiveQuizPayload struct {
	DeviceID string `json:"deviceId"`
	QuizID   string `json:"quizId"`
}

type uploadedFilePayload struct {
	File        []byte `json:"file"`
	Filename    string `json:"filename"`
	SubjectName string `json:"subjectName"`
}

// marshalEvent builds an outbound frame. Marshal errors can only come
// from handler-constructed values, so they are treated as programmer
// errors and surfaced to the caller for logging.
func marshalEvent(event string, data any) (core.Frame, error) {
	b, err := json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{event, data})
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
