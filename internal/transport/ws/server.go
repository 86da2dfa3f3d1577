package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"lifegen.ai/internal/genes/sprite"
	"lifegen.ai/internal/lab/nursery"
	"lifegen.ai/internal/protocol"
)

// Lab is the part of the nursery the socket exposes.
type Lab interface {
	Spawn(ctx context.Context) (nursery.Birth, error)
	Breed(ctx context.Context, motherID, fatherID string) (nursery.Birth, error)
	Get(id string) (nursery.Birth, error)
	Sprite(id string) (sprite.View, error)
}

// Limiter decides whether the client behind an upgrade request may create
// another genome.
type Limiter interface {
	AllowRequest(r *http.Request) bool
}

type Server struct {
	lab   Lab
	limit Limiter
	log   *log.Logger

	upgrader websocket.Upgrader
}

// NewServer serves lab over a websocket. A nil limit leaves SPAWN and BREED
// unlimited.
func NewServer(lab Lab, limit Limiter, logger *log.Logger) *Server {
	return &Server{
		lab:   lab,
		limit: limit,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Handler answers every text frame with exactly one GENOME or ERROR frame.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 8)
		done := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			b, err := json.Marshal(s.handle(ctx, r, msg))
			if err != nil {
				s.logf("ws: marshal reply: %v", err)
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
		cancel()
		<-done
	}
}

// handle answers one frame. r is the upgrade request, which identifies the
// client for rate limiting.
func (s *Server) handle(ctx context.Context, r *http.Request, msg []byte) any {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.ErrorFrom(protocol.ErrProtoBadRequest, "invalid json", "")
	}
	rid := base.RequestID
	if base.ProtocolVersion != protocol.Version {
		return protocol.ErrorFrom(protocol.ErrProtoVersion, "bad protocol_version", rid)
	}

	var b nursery.Birth
	switch base.Type {
	case protocol.TypeSpawn:
		if !s.allow(r) {
			return protocol.ErrorFrom(protocol.ErrRateLimit, "rate limit exceeded", rid)
		}
		b, err = s.lab.Spawn(ctx)
	case protocol.TypeBreed:
		var m protocol.BreedMsg
		if err := json.Unmarshal(msg, &m); err != nil || m.MotherID == "" || m.FatherID == "" {
			return protocol.ErrorFrom(protocol.ErrProtoBadRequest, "mother_id and father_id required", rid)
		}
		if !s.allow(r) {
			return protocol.ErrorFrom(protocol.ErrRateLimit, "rate limit exceeded", rid)
		}
		b, err = s.lab.Breed(ctx, m.MotherID, m.FatherID)
	case protocol.TypeSprite:
		var m protocol.SpriteMsg
		if err := json.Unmarshal(msg, &m); err != nil || m.GenomeID == "" {
			return protocol.ErrorFrom(protocol.ErrProtoBadRequest, "genome_id required", rid)
		}
		b, err = s.lab.Get(m.GenomeID)
	default:
		return protocol.ErrorFrom(protocol.ErrProtoBadRequest, "unknown type "+base.Type, rid)
	}
	if err != nil {
		return s.errorReply(err, rid)
	}
	v, err := s.lab.Sprite(b.ID)
	if err != nil {
		return s.errorReply(err, rid)
	}
	return protocol.GenomeFrom(b, v, rid)
}

func (s *Server) allow(r *http.Request) bool {
	return s.limit == nil || s.limit.AllowRequest(r)
}

func (s *Server) errorReply(err error, rid string) protocol.ErrorMsg {
	code := protocol.CodeFor(err)
	if code == protocol.ErrInternal {
		s.logf("ws: request_id=%s err=%v", rid, err)
	}
	return protocol.ErrorFrom(code, err.Error(), rid)
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
