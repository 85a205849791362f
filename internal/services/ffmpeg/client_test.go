package ffmpeg_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"comicreel/internal/services"
	"comicreel/internal/services/ffmpeg"
	"comicreel/internal/testsupport"
)

func encodeRequest() ffmpeg.EncodeRequest {
	return ffmpeg.EncodeRequest{
		ManifestPath:    "/scratch/list.txt",
		AudioPath:       "/music/track.mp3",
		OutputPath:      "/out/video.mp4",
		FrameRate:       4,
		ExpectedSeconds: 3,
	}
}

func progressLine(clock string) string {
	return fmt.Sprintf("frame=   12 fps= 4.0 q=28.0 size=      64KiB time=%s bitrate=  174.9kbits/s speed=1.2x", clock)
}

func TestEncodeProgressIsMonotonic(t *testing.T) {
	exec := &testsupport.ScriptedExecutor{Lines: []string{
		"Input #1, mp3, from '/music/track.mp3':",
		"  Duration: 00:03:21.74, start: 0.000000, bitrate: 320 kb/s",
		progressLine("00:00:01.00"),
		progressLine("00:00:00.50"),
		progressLine("00:00:02.00"),
	}}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	var seen []float64
	result, err := client.Encode(context.Background(), encodeRequest(), func(update ffmpeg.ProgressUpdate) {
		seen = append(seen, update.Seconds)
	})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	// 1.0 and 2.0 pass through, 0.5 is a regression and is dropped, and the
	// final update pins the bar to the expected total.
	want := []float64{1, 2, 3}
	if len(seen) != len(want) {
		t.Fatalf("expected %d updates, got %d (%v)", len(want), len(seen), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("update %d = %v, want %v", i, seen[i], want[i])
		}
	}

	if result.AudioSeconds != 201.74 {
		t.Fatalf("expected audio duration 201.74, got %v", result.AudioSeconds)
	}
}

func TestEncodeFinalUpdateIsFull(t *testing.T) {
	exec := &testsupport.ScriptedExecutor{Lines: []string{progressLine("00:00:01.00")}}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	var last ffmpeg.ProgressUpdate
	if _, err := client.Encode(context.Background(), encodeRequest(), func(update ffmpeg.ProgressUpdate) {
		last = update
	}); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if last.Percent != 100 {
		t.Fatalf("expected final update at 100 percent, got %v", last.Percent)
	}
	if last.Seconds != 3 {
		t.Fatalf("expected final update at expected duration, got %v", last.Seconds)
	}
}

func TestEncodeWrapsFailureWithTail(t *testing.T) {
	exec := &testsupport.ScriptedExecutor{
		Lines: []string{"Error while filtering: broken pipe"},
		Err:   errors.New("wait command: exit status 1"),
	}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = client.Encode(context.Background(), encodeRequest(), nil)
	if err == nil {
		t.Fatal("expected encode error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("expected diagnostic tail in error, got %v", err)
	}
}

func TestEncodeValidatesRequest(t *testing.T) {
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(&testsupport.ScriptedExecutor{}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	req := encodeRequest()
	req.AudioPath = ""
	if _, err := client.Encode(context.Background(), req, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyImagePassesAndFails(t *testing.T) {
	okExec := &testsupport.ScriptedExecutor{}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(okExec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := client.VerifyImage(context.Background(), "/scratch/page1.png"); err != nil {
		t.Fatalf("VerifyImage returned error: %v", err)
	}
	gotArgs := okExec.Calls()[0]
	wantArgs := []string{"-v", "error", "-i", "/scratch/page1.png", "-vf", "scale=1:1", "-f", "null", "-"}
	if len(gotArgs) != len(wantArgs) {
		t.Fatalf("unexpected verify args: %v", gotArgs)
	}
	for i := range wantArgs {
		if gotArgs[i] != wantArgs[i] {
			t.Fatalf("verify arg %d = %q, want %q", i, gotArgs[i], wantArgs[i])
		}
	}

	badExec := &testsupport.ScriptedExecutor{
		Lines: []string{"page2.png: Invalid data found when processing input"},
		Err:   errors.New("wait command: exit status 1"),
	}
	client, err = ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(badExec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	err = client.VerifyImage(context.Background(), "/scratch/page2.png")
	if err == nil {
		t.Fatal("expected verification failure")
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected diagnostic in error, got %v", err)
	}
}

func TestVersionReturnsFirstLine(t *testing.T) {
	exec := &testsupport.ScriptedExecutor{Lines: []string{"ffmpeg version 7.1 Copyright (c) 2000-2024", "built with gcc"}}
	client, err := ffmpeg.New("ffmpeg", ffmpeg.WithExecutor(exec))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	version, err := client.Version(context.Background())
	if err != nil {
		t.Fatalf("Version returned error: %v", err)
	}
	if !strings.HasPrefix(version, "ffmpeg version 7.1") {
		t.Fatalf("unexpected version line: %q", version)
	}
}
