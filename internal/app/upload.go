package app

import (
	"encoding/base64"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"labrelay/internal/core"
)

// uploadSession accumulates base64 chunks for one in-flight file upload.
// Chunks arrive in any order and are stored by index; a session is
// complete when every slot has been filled at least once.
type uploadSession struct {
	owner       core.ConnID
	total       int
	filename    string
	subjectName string
	slots       []string
	received    []bool
	filled      int
}

// Reassembler buffers chunked file uploads keyed by the declared device
// id. Sessions are created on the first chunk for a device id and deleted
// on completion or when the owning connection disconnects.
//
// Two connections declaring the same device id interleave into one
// session; lab devices are the only chunk senders and a device id maps to
// one machine.
type Reassembler struct {
	mu       sync.Mutex
	sessions map[string]*uploadSession
}

func NewReassembler() *Reassembler {
	return &Reassembler{sessions: make(map[string]*uploadSession)}
}

// Add records one chunk. When the chunk completes its session, Add
// returns the decoded file with the filename and subject label declared
// on the session's first chunk, and deletes the session.
//
// Policy: the first-declared total wins. A chunk carrying a different
// total, an out-of-range index, or a non-positive total is dropped.
// Duplicate indices overwrite and never double-count toward completion.
func (ra *Reassembler) Add(owner core.ConnID, p uploadChunkPayload) (file uploadedFilePayload, done bool) {
	ra.mu.Lock()
	defer ra.mu.Unlock()

	sess, ok := ra.sessions[p.DeviceID]
	if !ok {
		if p.TotalChunks < 1 {
			log.Warn().Str("module", "app.upload").Str("device", p.DeviceID).Int("total", p.TotalChunks).Msg("dropping chunk: invalid total")
			return uploadedFilePayload{}, false
		}
		sess = &uploadSession{
			owner:       owner,
			total:       p.TotalChunks,
			filename:    p.Filename,
			subjectName: p.SubjectName,
			slots:       make([]string, p.TotalChunks),
			received:    make([]bool, p.TotalChunks),
		}
		ra.sessions[p.DeviceID] = sess
	}

	if p.TotalChunks != sess.total {
		log.Warn().Str("module", "app.upload").Str("device", p.DeviceID).Int("declared", p.TotalChunks).Int("session", sess.total).Msg("dropping chunk: total mismatch")
		return uploadedFilePayload{}, false
	}
	if p.ChunkIndex < 0 || p.ChunkIndex >= sess.total {
		log.Warn().Str("module", "app.upload").Str("device", p.DeviceID).Int("index", p.ChunkIndex).Int("total", sess.total).Msg("dropping chunk: index out of range")
		return uploadedFilePayload{}, false
	}

	sess.slots[p.ChunkIndex] = p.Chunk
	if !sess.received[p.ChunkIndex] {
		sess.received[p.ChunkIndex] = true
		sess.filled++
	}
	if sess.filled < sess.total {
		return uploadedFilePayload{}, false
	}

	delete(ra.sessions, p.DeviceID)
	decoded, err := base64.StdEncoding.DecodeString(strings.Join(sess.slots, ""))
	if err != nil {
		log.Warn().Err(err).Str("module", "app.upload").Str("device", p.DeviceID).Str("filename", sess.filename).Msg("discarding upload: chunk data is not valid base64")
		return uploadedFilePayload{}, false
	}
	log.Info().Str("module", "app.upload").Str("device", p.DeviceID).Str("filename", sess.filename).Int("chunks", sess.total).Int("bytes", len(decoded)).Msg("upload reassembled")
	return uploadedFilePayload{
		File:        decoded,
		Filename:    sess.filename,
		SubjectName: sess.subjectName,
	}, true
}

// EvictOwner drops every in-flight session created by the given
// connection. Called on disconnect so abandoned partial uploads do not
// leak until process restart.
func (ra *Reassembler) EvictOwner(id core.ConnID) {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	for device, sess := range ra.sessions {
		if sess.owner == id {
			delete(ra.sessions, device)
			log.Info().Str("module", "app.upload").Str("device", device).Str("conn", string(id)).Msg("evicted abandoned upload session")
		}
	}
}

// Pending reports the number of in-flight sessions.
func (ra *Reassembler) Pending() int {
	ra.mu.Lock()
	defer ra.mu.Unlock()
	return len(ra.sessions)
}
