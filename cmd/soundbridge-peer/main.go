// soundbridge-peer is the peer-side harness: it owns the listening end of
// the audio socket, consumes the bridge's rendered playback frames and feeds
// a steady test tone back as captured microphone audio. Useful for soak
// testing the bridge without a real peer process.
package main

import (
	"encoding/binary"
	"flag"
	"log"
	"math"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"soundbridge/internal/bridge"
)

var (
	flagSocket        = flag.String("socket", "/run/soundbridge/audio.sock", "Unix socket path to listen on")
	flagToneHz        = flag.Float64("tone", 440, "Test tone frequency in Hz (0 = send no input audio)")
	flagStats         = flag.Bool("stats", true, "Log frame stats")
	flagStatsInterval = flag.Duration("stats-interval", 5*time.Second, "Stats logging interval")
)

// One 20 ms cycle of mono S16LE at 48 kHz.
const toneSamples = bridge.SampleRate / 50

func main() {
	flag.Parse()

	if *flagStatsInterval <= 0 {
		log.Fatal("--stats-interval must be > 0")
	}

	if err := os.Remove(*flagSocket); err != nil && !os.IsNotExist(err) {
		log.Fatalf("remove stale socket: %v", err)
	}
	ln, err := net.Listen("unix", *flagSocket)
	if err != nil {
		log.Fatalf("listen %q: %v", *flagSocket, err)
	}
	defer ln.Close()
	log.Printf("listening on %s", *flagSocket)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Fatalf("accept: %v", err)
		}
		id := uuid.NewString()
		log.Printf("[%s] bridge connected", id)
		serve(id, conn)
		log.Printf("[%s] bridge disconnected", id)
	}
}

func serve(id string, conn net.Conn) {
	defer conn.Close()

	ch := bridge.NewChannel(conn)

	var g errgroup.Group
	g.Go(func() error { return readLoop(id, ch) })
	if *flagToneHz > 0 {
		g.Go(func() error { return toneLoop(ch) })
	}
	if err := g.Wait(); err != nil {
		log.Printf("[%s] connection closed: %v", id, err)
	}
}

// readLoop drains rendered playback frames coming from the bridge.
func readLoop(id string, ch *bridge.Channel) error {
	var ticker *time.Ticker
	if *flagStats {
		ticker = time.NewTicker(*flagStatsInterval)
		defer ticker.Stop()
	}

	var frames, bytes int64
	for {
		tag, payload, err := ch.ReceiveFrame()
		if err != nil {
			return err
		}
		if tag != bridge.TagOutput {
			log.Printf("[%s] unexpected inbound tag 0x%02x", id, tag)
			continue
		}
		frames++
		bytes += int64(len(payload))

		if ticker != nil {
			select {
			case <-ticker.C:
				log.Printf("[%s] playback stats frames=%d bytes=%d", id, frames, bytes)
			default:
			}
		}
	}
}

// toneLoop sends 20 ms sine frames as captured microphone audio.
func toneLoop(ch *bridge.Channel) error {
	buf := make([]byte, toneSamples*2)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var phase float64
	step := 2 * math.Pi * *flagToneHz / bridge.SampleRate

	for range ticker.C {
		for i := 0; i < toneSamples; i++ {
			sample := int16(0.3 * math.MaxInt16 * math.Sin(phase))
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
			phase += step
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
		if err := ch.SendFrame(bridge.TagInput, buf); err != nil {
			return err
		}
	}
	return nil
}
