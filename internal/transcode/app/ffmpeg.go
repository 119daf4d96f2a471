package app

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	errprocess "media_transcode_service/pkg/err"
	"media_transcode_service/pkg/logger"
)

// Engine 轉碼引擎的窄介面。Transcode 會把 0~100 的進度值送進 progress，
// 回報可能亂序或遺漏，單調性由 JobStateMachine 保證；回傳前必須 close(progress)。
type Engine interface {
	Probe(ctx context.Context, inputPath string) (float64, error)
	Transcode(ctx context.Context, inputPath, outputPath string, progress chan<- int) error
}

// FFmpegEngine 以 os/exec 驅動 ffmpeg / ffprobe
type FFmpegEngine struct{}

// NewFFmpegEngine create a FFmpegEngine
func NewFFmpegEngine() *FFmpegEngine {
	return &FFmpegEngine{}
}

// Probe 取得影片長度（秒）
func (e *FFmpegEngine) Probe(ctx context.Context, inputPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, errprocess.Set(fmt.Sprintf("ffprobe 取得影片長度失敗: %v", err))
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, errprocess.Set(fmt.Sprintf("解析影片長度失敗: %v", err))
	}
	return duration, nil
}

// Transcode 將 inputPath 轉碼成 4K H.265 mp4，透過 -progress pipe:1 回報進度
func (e *FFmpegEngine) Transcode(ctx context.Context, inputPath, outputPath string, progress chan<- int) error {
	defer close(progress)

	duration, err := e.Probe(ctx, inputPath)
	if err != nil {
		return err
	}

	cmdArgs := []string{
		"-i", inputPath,
		"-c:v", "libx265",
		"-s", "3840x2160",
		"-b:a", "320k",
		"-b:v", "8000k",
		"-preset", "slow",
		"-crf", "18",
		"-threads", "0",
		"-progress", "pipe:1",
		"-nostats",
		"-y",
		outputPath,
	}
	logger.Log.Infof("執行 FFmpeg: ffmpeg", cmdArgs)
	cmd := exec.CommandContext(ctx, "ffmpeg", cmdArgs...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errprocess.Set(fmt.Sprintf("建立 ffmpeg stdout pipe 失敗: %v", err))
	}
	if err := cmd.Start(); err != nil {
		return errprocess.Set(fmt.Sprintf("啟動 ffmpeg 失敗: %v", err))
	}

	// -progress pipe:1 會持續輸出 key=value，out_time_ms 換算成百分比
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "out_time_ms=") {
			continue
		}
		outTimeMs, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_ms="), 10, 64)
		if err != nil {
			continue
		}
		percent := percentFromOutTime(outTimeMs, duration)
		select {
		case progress <- percent:
		case <-ctx.Done():
			// 丟棄進度，讓 ffmpeg 收到 kill 後自己結束
		}
	}

	if err := cmd.Wait(); err != nil {
		return errprocess.Set(fmt.Sprintf("ffmpeg 轉碼失敗: %v", err))
	}
	return nil
}

// percentFromOutTime out_time_ms 實際單位是微秒
func percentFromOutTime(outTimeMs int64, durationSec float64) int {
	if durationSec <= 0 {
		return 0
	}
	percent := int(float64(outTimeMs) / 1e6 / durationSec * 100)
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	return percent
}
