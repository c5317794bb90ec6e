package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"finetune-orchestrator/core/broadcast"
	"finetune-orchestrator/core/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// origin filtering happens in the CORS layer; the feed itself is
	// read-only job state
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler serves the per-job live snapshot feed over WebSocket
type StreamHandler struct {
	orch *orchestrator.Orchestrator
	bc   *broadcast.Broadcaster
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(orch *orchestrator.Orchestrator, bc *broadcast.Broadcaster) *StreamHandler {
	return &StreamHandler{orch: orch, bc: bc}
}

// StreamJob handles GET /v1/jobs/{id}/stream. The feed begins with the
// current snapshot from the store, then pushes one message per monitor
// update until the job is retired or the client goes away. A client
// that cannot keep up is dropped by the broadcaster, never waited on.
func (h *StreamHandler) StreamJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := h.orch.GetStatus(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Stream %s: upgrade failed: %v", jobID, err)
		return
	}
	defer conn.Close()

	sub := h.bc.Subscribe(jobID)
	defer h.bc.Unsubscribe(sub)

	if err := conn.WriteJSON(job); err != nil {
		return
	}
	// nothing further will arrive for a terminal job
	if job.State.Terminal() {
		return
	}

	// detect client disconnect; the feed is server-push only
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-clientGone:
			return
		case snapshot, ok := <-sub.C:
			if !ok {
				// dropped or retired
				return
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
		}
	}
}
