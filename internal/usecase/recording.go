package usecase

import (
	"context"

	"talkbridge/internal/domain"
	"talkbridge/internal/ports"
)

const meterBuffer = 8

type activeRecording struct {
	cancel    context.CancelFunc
	audio     ports.AudioSession
	buffer    *captureBuffer
	pumpDone  chan struct{}
	meterDone chan struct{}
}

func startRecording(
	ctx context.Context,
	capture ports.AudioCapture,
	cfg ports.AudioConfig,
	chunkSize int,
	speaker domain.Speaker,
	events ports.EventSink,
) (*activeRecording, error) {
	recordCtx, cancel := context.WithCancel(ctx)
	session, err := capture.Start(recordCtx, cfg)
	if err != nil {
		cancel()
		return nil, domain.Wrap(domain.KindCapture, "start", err)
	}

	rec := &activeRecording{
		cancel:    cancel,
		audio:     session,
		buffer:    &captureBuffer{},
		pumpDone:  make(chan struct{}),
		meterDone: make(chan struct{}),
	}

	meter := make(chan float64, meterBuffer)
	go pumpAudio(rec.audio, chunkSize, rec.buffer, meter, rec.pumpDone)
	go forwardLevels(meter, speaker, events, rec.meterDone)
	return rec, nil
}

// finish stops capture and returns the recorded audio. stopErr reports an
// unclean stop of the device; readErr a failure while capturing.
func (r *activeRecording) finish() (audio []byte, readErr error, stopErr error) {
	r.buffer.stopping.Store(true)
	stopErr = r.audio.Stop()
	<-r.pumpDone
	<-r.meterDone
	r.cancel()

	audio, readErr = r.buffer.result()
	return audio, readErr, stopErr
}

// discard stops capture and drops everything recorded so far.
func (r *activeRecording) discard() {
	r.buffer.stopping.Store(true)
	r.cancel()
	_ = r.audio.Stop()
	_ = r.audio.Close()
	<-r.pumpDone
	<-r.meterDone
}
