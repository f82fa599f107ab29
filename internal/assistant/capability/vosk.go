package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/campusconnect-poc/server/internal/assistant/model"
	"github.com/gorilla/websocket"
)

const voskSampleRate = 16000

// voskChunkBytes is 0.5s of 16 kHz mono 16-bit PCM per frame, matching the
// block size the vosk-server examples stream.
const voskChunkBytes = voskSampleRate

// VoskTranscriber streams PCM audio to a vosk-server websocket and collects
// the recognized text.
type VoskTranscriber struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
}

func NewVoskTranscriber(url string, timeout time.Duration) *VoskTranscriber {
	if url == "" {
		url = "ws://localhost:2700"
	}
	return &VoskTranscriber{
		url:     url,
		timeout: timeout,
		dialer:  websocket.DefaultDialer,
	}
}

// voskResult is the recognizer's JSON reply. Partial hypotheses arrive under
// "partial" and are ignored; committed segments arrive under "text".
type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func (v *VoskTranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio input")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	conn, _, err := v.dialer.DialContext(ctx, v.url, nil)
	if err != nil {
		return "", fmt.Errorf("dial vosk server: %w", err)
	}
	defer conn.Close()

	cfg := fmt.Sprintf(`{"config": {"sample_rate": %d}}`, voskSampleRate)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cfg)); err != nil {
		return "", fmt.Errorf("send recognizer config: %w", err)
	}

	var segments []string
	for off := 0; off < len(audio); off += voskChunkBytes {
		end := off + voskChunkBytes
		if end > len(audio) {
			end = len(audio)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[off:end]); err != nil {
			return "", fmt.Errorf("send audio chunk: %w", err)
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("read recognizer reply: %w", err)
		}
		if text := committedText(msg); text != "" {
			segments = append(segments, text)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof" : 1}`)); err != nil {
		return "", fmt.Errorf("send eof: %w", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("read final result: %w", err)
	}
	if text := committedText(msg); text != "" {
		segments = append(segments, text)
	}

	transcript := strings.TrimSpace(strings.Join(segments, " "))
	if transcript == "" {
		return "", fmt.Errorf("recognizer produced no text")
	}
	return transcript, nil
}

func committedText(msg []byte) string {
	var res voskResult
	if err := json.Unmarshal(msg, &res); err != nil {
		return ""
	}
	return strings.TrimSpace(res.Text)
}

var _ model.Transcriber = (*VoskTranscriber)(nil)
