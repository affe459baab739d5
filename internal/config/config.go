// Package config handles recorder configuration
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultFormatCandidates is the encoding preference order, most specific first.
var DefaultFormatCandidates = []string{
	"video/webm; codecs=vp9",
	"video/webm; codecs=vp8",
	"video/webm",
}

// FinalizeMargin is how much longer the session waits for a stopping encoder
// than the encoder waits for ffmpeg, so output flushed just before the kill
// still reaches the artifact.
const FinalizeMargin = 2 * time.Second

type Config struct {
	HTTPAddr         string
	GRPCAddr         string
	LogLevel         slog.Level
	FormatCandidates []string
	FFmpegPath       string
	CaptureFrameRate float64 // Hz
	ChunkInterval    time.Duration
	StopTimeout      time.Duration
	DownloadFilename string
	SceneCutDistance int // pHash Hamming distance
}

func Load() *Config {
	return &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8000"),
		GRPCAddr:         getEnv("GRPC_ADDR", ":50061"),
		LogLevel:         getEnvLevel("LOG_LEVEL", slog.LevelDebug),
		FormatCandidates: getEnvList("FORMAT_CANDIDATES", "|", DefaultFormatCandidates),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		CaptureFrameRate: getEnvFloat("CAPTURE_FRAME_RATE", 5.0),
		ChunkInterval:    getEnvMillis("CHUNK_INTERVAL_MS", time.Second),
		StopTimeout:      getEnvMillis("STOP_TIMEOUT_MS", 10*time.Second),
		DownloadFilename: getEnv("DOWNLOAD_FILENAME", "recording.webm"),
		SceneCutDistance: getEnvInt("SCENE_CUT_DISTANCE", 10),
	}
}

// FinalizeTimeout bounds how long a stop may wait for the encoder's final
// output before the recording is finalized without it.
func (c *Config) FinalizeTimeout() time.Duration {
	return c.StopTimeout + FinalizeMargin
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func getEnvMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func getEnvLevel(key string, def slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err == nil {
			return lvl
		}
	}
	return def
}

func getEnvList(key, sep string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, sep)
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return append([]string(nil), def...)
}
