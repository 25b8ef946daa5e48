package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/voxpod/voxpod/pkg/audio"
	"github.com/voxpod/voxpod/pkg/speech"
	"github.com/voxpod/voxpod/pkg/store"
	"github.com/voxpod/voxpod/pkg/tool"
)

const (
	// transcribeChunk is 25s of 16kHz mono int16 PCM, the longest
	// segment the transcription backend handles reliably.
	transcribeChunk = 25 * audio.SampleRate * 2

	// minMeetingDuration discards accidental recordings.
	minMeetingDuration = time.Second
)

// MeetingBlobPath is where a meeting's raw PCM lands in blob storage.
func MeetingBlobPath(deviceID, meetingID string) string {
	return fmt.Sprintf("meetings/%s/%s.pcm", deviceID, meetingID)
}

func registerMeeting(reg *tool.Registry, deps *Deps) error {
	defs := []*tool.Definition{
		{
			Name:        "meeting.start",
			Description: "Start recording a meeting",
			Params: []tool.Param{
				{Name: "title", Description: "meeting title"},
			},
			Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
				if call.Session.Meeting().Active {
					return tool.Speak("已经在录音中了"), nil
				}
				title := call.Args["title"]
				m, err := deps.Store.StartMeeting(ctx, call.Session.DeviceID, title)
				if err != nil {
					return nil, fmt.Errorf("start meeting: %w", err)
				}
				call.Session.StartMeeting(m.ID)

				display := title
				if display == "" {
					display = "会议"
				}
				slog.Info("meeting started",
					"device_id", call.Session.DeviceID, "meeting_id", m.ID, "title", display)
				return tool.Speak(fmt.Sprintf("开始录制%s，每次对话的语音都会被记录。说\"结束会议\"来停止。", display)), nil
			},
		},
		{
			Name:        "meeting.end",
			Description: "End the current meeting recording",
			Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
				if !call.Session.Meeting().Active {
					return tool.Speak("当前没有在录音"), nil
				}
				meetingID, pcm := call.Session.EndMeeting()
				duration := time.Duration(len(pcm)/2) * time.Second / audio.SampleRate
				slog.Info("meeting ended",
					"device_id", call.Session.DeviceID,
					"meeting_id", meetingID,
					"duration", duration.Round(time.Second))

				if duration < minMeetingDuration {
					deps.Store.DeleteMeeting(ctx, call.Session.DeviceID, meetingID)
					return tool.Speak("录音时间太短，未保存"), nil
				}

				path := MeetingBlobPath(call.Session.DeviceID, meetingID)
				if err := deps.Blobs.Put(ctx, path, bytes.NewReader(pcm)); err != nil {
					return nil, fmt.Errorf("store meeting audio: %w", err)
				}

				m, err := deps.Store.GetMeeting(ctx, call.Session.DeviceID, meetingID)
				if err != nil {
					return nil, fmt.Errorf("load meeting: %w", err)
				}
				m.Status = store.MeetingEnded
				m.AudioPath = path
				m.DurationS = int(duration / time.Second)
				m.EndedAt = time.Now()
				if err := deps.Store.PutMeeting(ctx, m); err != nil {
					return nil, fmt.Errorf("save meeting: %w", err)
				}

				return tool.Speak(fmt.Sprintf("会议录音已结束，共%d秒。说\"转录\"可以获取文字内容。", m.DurationS)), nil
			},
		},
		{
			Name:        "meeting.transcribe",
			Description: "Transcribe the recorded meeting audio to text",
			LongRunning: true,
			Handler: func(ctx context.Context, call tool.Call) (*tool.Result, error) {
				m, err := latestEndedMeeting(ctx, deps.Store, call.Session.DeviceID)
				if err != nil {
					return nil, err
				}
				if m == nil {
					return tool.Speak("没有可转录的录音"), nil
				}

				rc, err := deps.Blobs.Open(ctx, m.AudioPath)
				if err != nil {
					return nil, fmt.Errorf("open meeting audio: %w", err)
				}
				pcm, err := io.ReadAll(rc)
				rc.Close()
				if err != nil {
					return nil, fmt.Errorf("read meeting audio: %w", err)
				}

				transcript, err := transcribePCM(ctx, deps.ASR, call.Session.Config, pcm)
				if err != nil {
					return nil, err
				}
				if transcript == "" {
					return tool.Speak("录音转写为空，可能没有清晰的语音内容"), nil
				}

				m.Transcript = transcript
				m.Status = store.MeetingTranscribed
				if err := deps.Store.PutMeeting(ctx, m); err != nil {
					return nil, fmt.Errorf("save transcript: %w", err)
				}

				summary := truncateRunes(transcript, 200)
				return tool.Speak("会议内容：" + summary), nil
			},
		},
	}
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// latestEndedMeeting returns the most recently ended, untranscribed
// meeting, falling back to the most recent transcribed one. Nil when
// the device has nothing to transcribe.
func latestEndedMeeting(ctx context.Context, s *store.Store, deviceID string) (*store.Meeting, error) {
	meetings, err := s.ListMeetings(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	var best *store.Meeting
	for _, status := range []string{store.MeetingEnded, store.MeetingTranscribed} {
		for _, m := range meetings {
			if m.Status != status {
				continue
			}
			if best == nil || m.EndedAt.After(best.EndedAt) {
				best = m
			}
		}
		if best != nil {
			break
		}
	}
	return best, nil
}

// transcribePCM splits long recordings into 25s chunks and joins the
// per-chunk transcripts.
func transcribePCM(ctx context.Context, asr speech.Transcriber, cfg store.UserConfig, pcm []byte) (string, error) {
	model := cfg.Get(cfg.ASRModel, "whisper-1")
	var parts []string
	total := (len(pcm) + transcribeChunk - 1) / transcribeChunk
	for i := 0; i < len(pcm); i += transcribeChunk {
		end := min(i+transcribeChunk, len(pcm))
		text, err := asr.Transcribe(ctx, model, pcm[i:end])
		if err != nil {
			return "", fmt.Errorf("transcribe chunk %d/%d: %w", i/transcribeChunk+1, total, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
