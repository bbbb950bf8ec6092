// Package config provides the fall-detection core's configuration
// surface: a JSON-file-backed, pointer-field configuration struct where
// every tunable has a hardcoded default accessed via a Get*() method, so
// partial config files are always safe to load.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the canonical defaults file for this product.
const DefaultConfigPath = "config/falldetect.defaults.json"

// FallConfig is the root configuration for the fall-detection core, per
// the configuration surface in spec §6. Fields are pointers so that a
// partial JSON file (only the keys an operator wants to override) loads
// cleanly; the Get*() accessors supply the spec defaults for anything left
// nil.
type FallConfig struct {
	// analysis.*
	FallThresholdAspect *float64 `json:"analysis_fall_threshold_aspect,omitempty"`
	AngleThresholdDeg   *float64 `json:"analysis_angle_threshold_deg,omitempty"`
	DelaySec            *float64 `json:"analysis_delay_sec,omitempty"`
	SameEventWindow     *float64 `json:"analysis_same_event_window,omitempty"`
	ReNotifyInterval    *float64 `json:"analysis_re_notify_interval,omitempty"`

	// recording.*
	BufferSeconds  *float64 `json:"recording_buffer_seconds,omitempty"`
	ClipBeforeSec  *float64 `json:"recording_clip_before_sec,omitempty"`
	ClipAfterSec   *float64 `json:"recording_clip_after_sec,omitempty"`

	// detection.*
	UsePose            *bool    `json:"detection_use_pose,omitempty"`
	EnableSmoothing    *bool    `json:"detection_enable_smoothing,omitempty"`
	SmoothingMinCutoff *float64 `json:"detection_smoothing_min_cutoff,omitempty"`
	SmoothingBeta      *float64 `json:"detection_smoothing_beta,omitempty"`

	// lifecycle.*
	AutoSkeletonExtract *bool   `json:"lifecycle_auto_skeleton_extract,omitempty"`
	SkeletonOutputDir   *string `json:"lifecycle_skeleton_output_dir,omitempty"`

	// notify.*
	PushWebhookURL *string `json:"notify_push_webhook_url,omitempty"`
	PushEnabled    *bool   `json:"notify_push_enabled,omitempty"`
	SirenSerialPort *string `json:"notify_siren_serial_port,omitempty"`
	SirenEnabled    *bool   `json:"notify_siren_enabled,omitempty"`

	// store.*
	SQLitePath *string `json:"store_sqlite_path,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// EmptyFallConfig returns a FallConfig with every field nil; Get*()
// accessors then fall back to hardcoded defaults for all of them.
func EmptyFallConfig() *FallConfig {
	return &FallConfig{}
}

// LoadFallConfig loads a FallConfig from a JSON file, validating the path
// extension and file size the same way the tuning config loader does.
func LoadFallConfig(path string) (*FallConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyFallConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultFallConfig loads the canonical defaults file, searching
// from the current directory up through common parent directories.
// Panics if not found; intended for test setup.
func MustLoadDefaultFallConfig() *FallConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
		"../../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadFallConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks structural constraints on any fields that are set.
func (c *FallConfig) Validate() error {
	if c.DelaySec != nil && *c.DelaySec < 0 {
		return fmt.Errorf("analysis_delay_sec must be non-negative, got %f", *c.DelaySec)
	}
	if c.SameEventWindow != nil && *c.SameEventWindow < 0 {
		return fmt.Errorf("analysis_same_event_window must be non-negative, got %f", *c.SameEventWindow)
	}
	if c.ReNotifyInterval != nil && *c.ReNotifyInterval <= 0 {
		return fmt.Errorf("analysis_re_notify_interval must be positive, got %f", *c.ReNotifyInterval)
	}
	if c.BufferSeconds != nil && c.ClipBeforeSec != nil && c.ClipAfterSec != nil && c.DelaySec != nil {
		margin := *c.BufferSeconds - (*c.DelaySec + *c.ClipBeforeSec + *c.ClipAfterSec)
		if margin < 0 {
			return fmt.Errorf("recording_buffer_seconds (%f) must be >= delay_sec+clip_before_sec+clip_after_sec", *c.BufferSeconds)
		}
	}
	if c.SmoothingBeta != nil && *c.SmoothingBeta < 0 {
		return fmt.Errorf("detection_smoothing_beta must be non-negative, got %f", *c.SmoothingBeta)
	}
	return nil
}

// GetFallThresholdAspect returns the bbox aspect-ratio threshold or the
// spec default of 1.3.
func (c *FallConfig) GetFallThresholdAspect() float64 {
	if c.FallThresholdAspect == nil {
		return 1.3
	}
	return *c.FallThresholdAspect
}

// GetAngleThresholdDeg returns the torso-angle threshold or the spec
// default of 60.0 degrees.
func (c *FallConfig) GetAngleThresholdDeg() float64 {
	if c.AngleThresholdDeg == nil {
		return 60.0
	}
	return *c.AngleThresholdDeg
}

// GetDelaySec returns the Suspected-state delay or the spec default of 3.0.
func (c *FallConfig) GetDelaySec() float64 {
	if c.DelaySec == nil {
		return 3.0
	}
	return *c.DelaySec
}

// GetSameEventWindow returns the same-event merge window or the spec
// default of 60.0.
func (c *FallConfig) GetSameEventWindow() float64 {
	if c.SameEventWindow == nil {
		return 60.0
	}
	return *c.SameEventWindow
}

// GetReNotifyInterval returns the re-notify cadence or the spec default of
// 120.0.
func (c *FallConfig) GetReNotifyInterval() float64 {
	if c.ReNotifyInterval == nil {
		return 120.0
	}
	return *c.ReNotifyInterval
}

// GetBufferSeconds returns the rolling-buffer window or the spec default
// of 15.
func (c *FallConfig) GetBufferSeconds() float64 {
	if c.BufferSeconds == nil {
		return 15.0
	}
	return *c.BufferSeconds
}

// GetClipBeforeSec returns the pre-event clip window or the spec default
// of 5.
func (c *FallConfig) GetClipBeforeSec() float64 {
	if c.ClipBeforeSec == nil {
		return 5.0
	}
	return *c.ClipBeforeSec
}

// GetClipAfterSec returns the post-event clip window or the spec default
// of 5.
func (c *FallConfig) GetClipAfterSec() float64 {
	if c.ClipAfterSec == nil {
		return 5.0
	}
	return *c.ClipAfterSec
}

// GetUsePose returns whether pose-based detection is enabled; default
// false (bbox mode).
func (c *FallConfig) GetUsePose() bool {
	if c.UsePose == nil {
		return false
	}
	return *c.UsePose
}

// GetEnableSmoothing returns whether keypoint smoothing is enabled;
// default false.
func (c *FallConfig) GetEnableSmoothing() bool {
	if c.EnableSmoothing == nil {
		return false
	}
	return *c.EnableSmoothing
}

// GetSmoothingMinCutoff returns the One-Euro min_cutoff or the spec
// default of 1.0.
func (c *FallConfig) GetSmoothingMinCutoff() float64 {
	if c.SmoothingMinCutoff == nil {
		return 1.0
	}
	return *c.SmoothingMinCutoff
}

// GetSmoothingBeta returns the One-Euro beta or the spec default of 0.007.
func (c *FallConfig) GetSmoothingBeta() float64 {
	if c.SmoothingBeta == nil {
		return 0.007
	}
	return *c.SmoothingBeta
}

// GetAutoSkeletonExtract returns whether the collector runs automatically;
// default false.
func (c *FallConfig) GetAutoSkeletonExtract() bool {
	if c.AutoSkeletonExtract == nil {
		return false
	}
	return *c.AutoSkeletonExtract
}

// GetSkeletonOutputDir returns the collector's output directory or a
// sensible default relative path.
func (c *FallConfig) GetSkeletonOutputDir() string {
	if c.SkeletonOutputDir == nil {
		return "data/skeletons"
	}
	return *c.SkeletonOutputDir
}

// GetPushEnabled returns whether the HTTP push notifier is enabled;
// default false.
func (c *FallConfig) GetPushEnabled() bool {
	if c.PushEnabled == nil {
		return false
	}
	return *c.PushEnabled
}

// GetPushWebhookURL returns the push-notifier webhook URL, or "" if unset.
func (c *FallConfig) GetPushWebhookURL() string {
	if c.PushWebhookURL == nil {
		return ""
	}
	return *c.PushWebhookURL
}

// GetSirenEnabled returns whether the serial siren relay is enabled;
// default false.
func (c *FallConfig) GetSirenEnabled() bool {
	if c.SirenEnabled == nil {
		return false
	}
	return *c.SirenEnabled
}

// GetSirenSerialPort returns the configured serial port for the siren
// relay, or "" if unset.
func (c *FallConfig) GetSirenSerialPort() string {
	if c.SirenSerialPort == nil {
		return ""
	}
	return *c.SirenSerialPort
}

// GetSQLitePath returns the event store's database path or a sensible
// default relative path.
func (c *FallConfig) GetSQLitePath() string {
	if c.SQLitePath == nil {
		return "fallwatch.db"
	}
	return *c.SQLitePath
}
