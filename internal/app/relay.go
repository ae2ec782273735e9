package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"labrelay/internal/core"
)

// Relay is the event table of the room server. Each inbound frame is a
// JSON envelope; the handler for its event name destructures the payload,
// resolves the target room, and fans out through the registry.
//
// Failures are local to the connection that caused them: a frame that is
// not valid JSON is dropped with a warning, missing payload fields relay
// as zero values, and an unknown event name is ignored.
type Relay struct {
	registry *core.Registry
	uploads  *Reassembler
	policy   core.Policy
	metrics  *Metrics
}

func NewRelay(registry *core.Registry, policy core.Policy, metrics *Metrics) *Relay {
	return &Relay{
		registry: registry,
		uploads:  NewReassembler(),
		policy:   policy,
		metrics:  metrics,
	}
}

// HandleConnect admits the connection and broadcasts the new presence
// count to everyone, the new connection included.
func (r *Relay) HandleConnect(id core.ConnID, conn core.Conn) {
	count := r.registry.Add(id, conn)
	r.metrics.ConnectedClients.Store(count)
	r.metrics.TotalConnections.Add(1)
	r.broadcastAll(EventUserCount, count)
}

// HandleDisconnect removes the connection from every room, evicts its
// in-flight upload sessions, and broadcasts the new presence count.
func (r *Relay) HandleDisconnect(id core.ConnID) {
	count := r.registry.Remove(id)
	r.uploads.EvictOwner(id)
	r.metrics.ConnectedClients.Store(count)
	r.metrics.TotalDisconnects.Add(1)
	r.broadcastAll(EventUserCount, count)
}

// HandleFrame dispatches one inbound frame from a connection.
func (r *Relay) HandleFrame(id core.ConnID, data []byte) {
	r.metrics.MessagesIn.Add(1)

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("conn", string(id)).Msg("dropping frame: bad json")
		return
	}

	switch env.Event {
	case EventJoinServer:
		var p devicePayload
		r.decode(env.Data, &p)
		r.registry.Join(id, p.DeviceID)
	case EventLeaveServer:
		var p devicePayload
		r.decode(env.Data, &p)
		r.registry.Leave(id, p.DeviceID)
	case EventActivityUpdate:
		var p devicePayload
		r.decode(env.Data, &p)
		r.emitRaw(p.DeviceID, id, EventActivityUpdate, env.Data)
	case EventShutdown:
		var p devicePayload
		r.decode(env.Data, &p)
		r.emit(p.DeviceID, id, EventShutdown, p.DeviceID)
	case EventLogoff:
		var p devicePayload
		r.decode(env.Data, &p)
		r.emit(p.DeviceID, id, EventLogoff, p.DeviceID)
	case EventReboot:
		var p devicePayload
		r.decode(env.Data, &p)
		r.emit(p.DeviceID, id, EventReboot, p.DeviceID)
	case EventPowerMonitoring:
		var p devicePayload
		r.decode(env.Data, &p)
		r.emitRaw(p.DeviceID, id, EventPowerMonitoring, env.Data)
		r.broadcastAll(EventRefreshPowerStatus, nil)
	case EventLogoutUser:
		var p subjectUserPayload
		r.decode(env.Data, &p)
		r.emit(p.SubjectID, id, EventStudentLoggedOut, p)
	case EventShareScreen:
		var p shareScreenPayload
		r.decode(env.Data, &p)
		r.emit(p.SubjectID, id, EventScreenShare, struct {
			UserID string          `json:"userId"`
			Stream json.RawMessage `json:"stream"`
		}{p.UserID, p.Stream})
	case EventJoinSubject:
		var p subjectUserPayload
		r.decode(env.Data, &p)
		r.emit(p.SubjectID, id, EventStudentJoined, p)
	case EventLeaveSubject:
		var p subjectUserPayload
		r.decode(env.Data, &p)
		r.emit(p.SubjectID, id, EventStudentLeft, p)
	case EventLaunchWebpage:
		var p launchWebpagePayload
		r.decode(env.Data, &p)
		r.emit(p.DeviceID, id, EventLaunchWebpage, struct {
			URL string `json:"url"`
		}{p.URL})
	case EventUploadFileChunk:
		var p uploadChunkPayload
		r.decode(env.Data, &p)
		if file, done := r.uploads.Add(id, p); done {
			r.metrics.UploadsCompleted.Add(1)
			r.emit(p.DeviceID, id, EventUploadFileChunk, file)
		}
	case EventShowScreen:
		var p showScreenPayload
		r.decode(env.Data, &p)
		r.emit(p.DeviceID, id, EventShowScreen, p)
	case EventHideScreen:
		var p devicePayload
		r.decode(env.Data, &p)
		r.emitRaw(p.DeviceID, id, EventHideScreen, env.Data)
	case EventScreenData:
		var p screenDataPayload
		r.decode(env.Data, &p)
		r.emit(p.SubjectID, id, EventScreenData, p)
	case EventStartLiveQuiz:
		var p startLiveQuizPayload
		r.decode(env.Data, &p)
		r.emit(p.DeviceID, id, EventStartLiveQuiz, struct {
			QuizID string `json:"quizId"`
		}{p.QuizID})
	case EventPing:
		r.sendTo(id, EventPong, nil)
	default:
		log.Warn().Str("module", "app.relay").Str("event", env.Event).Str("conn", string(id)).Msg("unknown event")
	}
}

// decode is deliberately permissive: absent or null data leaves the
// payload at its zero value, and a decode error only logs — the handler
// proceeds with whatever fields were present.
func (r *Relay) decode(raw json.RawMessage, v any) {
	if len(raw) == 0 {
		return
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Msg("bad payload")
	}
}

// emit fans a reshaped event out to a room, excluding the sender.
func (r *Relay) emit(roomKey string, from core.ConnID, event string, data any) {
	frame, err := marshalEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("marshal outbound event")
		return
	}
	res := r.registry.Broadcast(roomKey, from, frame)
	r.accountFanout(roomKey, res)
}

// emitRaw forwards the inbound payload unchanged under a (possibly
// renamed) event.
func (r *Relay) emitRaw(roomKey string, from core.ConnID, event string, raw json.RawMessage) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	r.emit(roomKey, from, event, raw)
}

func (r *Relay) broadcastAll(event string, data any) {
	frame, err := marshalEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("marshal outbound event")
		return
	}
	res := r.registry.BroadcastAll(frame)
	r.accountFanout("", res)
}

func (r *Relay) sendTo(id core.ConnID, event string, data any) {
	frame, err := marshalEvent(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("event", event).Msg("marshal outbound event")
		return
	}
	if err := r.registry.SendTo(id, frame); err != nil {
		log.Debug().Err(err).Str("module", "app.relay").Str("conn", string(id)).Msg("unicast failed")
	}
}

// accountFanout updates counters and applies the backpressure policy to
// members whose queue was full during the fan-out.
func (r *Relay) accountFanout(roomKey string, res core.PublishResult) {
	r.metrics.Broadcasts.Add(1)
	r.metrics.MessagesOut.Add(uint64(res.SentTo))
	r.metrics.DroppedSends.Add(uint64(len(res.Dropped)))
	if r.policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		if r.policy.OnBackpressure(roomKey, slow) != core.KickMember {
			continue
		}
		if conn, ok := r.registry.Conn(slow); ok {
			log.Warn().Str("module", "app.relay").Str("conn", string(slow)).Str("room", roomKey).Msg("kicking slow consumer")
			r.metrics.KickedSlow.Add(1)
			conn.Close()
		}
	}
}
