package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

var closeStream = []byte(`{"type":"CloseStream"}`)

// exchange sends one buffered utterance over conn and collects the results
// until the server closes the socket. conn is closed on return.
func exchange(ctx context.Context, conn *websocket.Conn, audio []byte, chunkSize int) (string, error) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	sent := make(chan error, 1)
	go func() {
		sent <- sendUtterance(conn, audio, chunkSize)
	}()

	var text transcript
	readErr := readResults(conn, &text)
	_ = conn.Close()
	writeErr := <-sent

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if raw := text.String(); raw != "" {
		return raw, nil
	}
	if readErr != nil {
		return "", readErr
	}
	return "", writeErr
}

func sendUtterance(conn *websocket.Conn, audio []byte, chunkSize int) error {
	for offset := 0; offset < len(audio); offset += chunkSize {
		end := min(offset+chunkSize, len(audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[offset:end]); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, closeStream); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

func readResults(conn *websocket.Conn, text *transcript) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				return nil
			}
			return fmt.Errorf("failed to read provider event: %w", err)
		}

		var msg message
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}
		if strings.EqualFold(msg.Type, "Error") {
			return msg.err()
		}
		text.add(msg.transcript(), msg.IsFinal || msg.SpeechFinal)
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

type alternative struct {
	Transcript string `json:"transcript"`
}

type message struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
}

func (m message) transcript() string {
	if len(m.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
}

func (m message) err() error {
	if text := strings.TrimSpace(m.Message); text != "" {
		return errors.New(text)
	}
	return errors.New("deepgram returned an unknown error")
}
