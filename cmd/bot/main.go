package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"lifegen.ai/internal/genes/random"
	"lifegen.ai/internal/protocol"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		founders    = flag.Int("founders", 4, "genomes spawned before breeding")
		generations = flag.Int("generations", 3, "generations to breed")
		seed        = flag.Int64("seed", 0, "pair selection seed (0 = fresh)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	rng, s, err := random.FromSeed(*seed)
	if err != nil {
		logger.Fatalf("seed: %v", err)
	}
	logger.Printf("seed=%d", s)

	b := &breeder{conn: conn, rng: rng, log: logger}
	if _, err := b.run(*founders, *generations); err != nil {
		logger.Fatalf("%v", err)
	}
}

type breeder struct {
	conn *websocket.Conn
	rng  *rand.Rand
	log  *log.Logger
	seq  int
}

// run spawns founders and then breeds each generation from random pairs of
// the previous one. Generation sizes stay constant.
func (b *breeder) run(founders, generations int) ([]protocol.GenomeMsg, error) {
	if founders < 2 {
		return nil, fmt.Errorf("need at least 2 founders")
	}
	gen := make([]protocol.GenomeMsg, 0, founders)
	for i := 0; i < founders; i++ {
		g, err := b.call(protocol.SpawnMsg{Type: protocol.TypeSpawn, ProtocolVersion: protocol.Version})
		if err != nil {
			return nil, err
		}
		gen = append(gen, g)
	}
	for n := 1; n <= generations; n++ {
		next := make([]protocol.GenomeMsg, 0, len(gen))
		for range gen {
			i := b.rng.IntN(len(gen))
			j := b.rng.IntN(len(gen) - 1)
			if j >= i {
				j++
			}
			g, err := b.call(protocol.BreedMsg{
				Type:            protocol.TypeBreed,
				ProtocolVersion: protocol.Version,
				MotherID:        gen[i].GenomeID,
				FatherID:        gen[j].GenomeID,
			})
			if err != nil {
				return nil, err
			}
			next = append(next, g)
		}
		b.log.Printf("generation=%d size=%d", n, len(next))
		gen = next
	}
	return gen, nil
}

// call sends one request and waits for its reply.
func (b *breeder) call(req any) (protocol.GenomeMsg, error) {
	b.seq++
	rid := fmt.Sprintf("R%d", b.seq)
	switch m := req.(type) {
	case protocol.SpawnMsg:
		m.RequestID = rid
		req = m
	case protocol.BreedMsg:
		m.RequestID = rid
		req = m
	}

	_ = b.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := b.conn.WriteJSON(req); err != nil {
		return protocol.GenomeMsg{}, fmt.Errorf("send: %w", err)
	}
	_ = b.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := b.conn.ReadMessage()
	if err != nil {
		return protocol.GenomeMsg{}, fmt.Errorf("read: %w", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.GenomeMsg{}, err
	}
	if base.RequestID != rid {
		return protocol.GenomeMsg{}, fmt.Errorf("reply for %q, want %q", base.RequestID, rid)
	}
	switch base.Type {
	case protocol.TypeGenome:
		var g protocol.GenomeMsg
		if err := json.Unmarshal(msg, &g); err != nil {
			return g, err
		}
		b.log.Printf("GENOME id=%s mother=%s father=%s code=%s", g.GenomeID, g.MotherID, g.FatherID, g.Code)
		return g, nil
	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		return protocol.GenomeMsg{}, fmt.Errorf("server error %s: %s", e.Code, e.Message)
	default:
		return protocol.GenomeMsg{}, fmt.Errorf("unexpected reply type %q", base.Type)
	}
}
