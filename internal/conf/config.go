// config.go: settings struct and loading for the CountNet-Go service
package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/countnet/countnet-go/internal/errors"
)

// MainSettings contains top-level application settings.
type MainSettings struct {
	Name    string // instance name used in logs and metrics
	DataDir string // root directory for uploads, segmented images and few-shot data
	Log     struct {
		Enabled bool   // true to write a rotated log file in addition to stdout
		Path    string // path to the log file
	}
}

// SafetySettings controls the safety gate.
type SafetySettings struct {
	Enabled        bool     // false disables the gate entirely (every request allowed)
	FailClosed     bool     // block instead of allowing when the gate itself fails
	BlockThreshold float64  // image-content probability at or above which a request is blocked
	ModelPath      string   // optional TFLite classifier; heuristic classifier used when empty
	ExtraBlocklist []string // deployment-specific terms appended to the built-in blocklist
}

// DetectorSettings controls the detection engine.
type DetectorSettings struct {
	ModelPath            string             // path to the TFLite detection model
	InputSize            int                // square input resolution expected by the model
	Threshold            float64            // default per-detection confidence threshold
	TypeThresholds       map[string]float64 // per-category threshold overrides
	EquivalenceThreshold float64            // threshold for equivalence-group matches
	EquivalencePenalty   float64            // confidence scale factor for equivalence-group matches
	InferenceSlots       int64              // number of concurrent inference slots
	SaveSegmented        bool               // write annotated images for non-zero counts
}

// FewShotSettings controls the few-shot category manager.
type FewShotSettings struct {
	MinTrainingImages int // minimum number of example images required to learn a category
}

// OutputSettings selects and configures the datastore backend.
type OutputSettings struct {
	SQLite struct {
		Enabled bool
		Path    string
	}
	MySQL struct {
		Enabled  bool
		Username string
		Password string
		Database string
		Host     string
		Port     string
	}
}

// WebServerSettings configures the HTTP API server.
type WebServerSettings struct {
	Port  string
	Debug bool
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// Settings is the root configuration struct for the application.
type Settings struct {
	Debug     bool
	Main      MainSettings
	Safety    SafetySettings
	Detector  DetectorSettings
	FewShot   FewShotSettings
	Output    OutputSettings
	WebServer WebServerSettings
	Sentry    SentrySettings
}

// Load reads the configuration from disk (or defaults) and validates it.
func Load() (*Settings, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if configDir, err := os.UserConfigDir(); err == nil {
		viper.AddConfigPath(filepath.Join(configDir, "countnet-go"))
	}
	viper.SetEnvPrefix("countnet")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		// No config file is fine, defaults apply.
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks settings for values the rest of the system relies on.
func Validate(s *Settings) error {
	if s.Detector.InputSize <= 0 {
		return validationError("detector input size must be positive, got %d", s.Detector.InputSize)
	}
	if s.Detector.Threshold < 0 || s.Detector.Threshold > 1 {
		return validationError("detector threshold must be within [0,1], got %f", s.Detector.Threshold)
	}
	if s.Safety.BlockThreshold < 0 || s.Safety.BlockThreshold > 1 {
		return validationError("safety block threshold must be within [0,1], got %f", s.Safety.BlockThreshold)
	}
	if s.Detector.InferenceSlots < 1 {
		return validationError("at least one inference slot is required, got %d", s.Detector.InferenceSlots)
	}
	if s.FewShot.MinTrainingImages < 1 {
		return validationError("minimum training images must be positive, got %d", s.FewShot.MinTrainingImages)
	}
	if !s.Output.SQLite.Enabled && !s.Output.MySQL.Enabled {
		return validationError("no datastore enabled, enable either sqlite or mysql output")
	}
	if s.Output.SQLite.Enabled && s.Output.MySQL.Enabled {
		return validationError("both sqlite and mysql outputs enabled, pick one")
	}
	return nil
}

// EnsureDirectories creates the data directories the service writes to.
func (s *Settings) EnsureDirectories() error {
	for _, dir := range []string{
		s.Main.DataDir,
		s.UploadsDir(),
		s.SegmentedDir(),
		s.FewShotDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
	}
	return nil
}

// UploadsDir returns the directory where uploaded images are stored.
func (s *Settings) UploadsDir() string {
	return filepath.Join(s.Main.DataDir, "uploads")
}

// SegmentedDir returns the directory for annotated detection images.
func (s *Settings) SegmentedDir() string {
	return filepath.Join(s.Main.DataDir, "segmented")
}

// FewShotDir returns the root directory for few-shot training images.
func (s *Settings) FewShotDir() string {
	return filepath.Join(s.Main.DataDir, "fewshot")
}

// WriteDefaultConfig writes the current effective configuration as a YAML file.
func WriteDefaultConfig(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	header := []byte("# CountNet-Go configuration\n# Generated defaults, adjust as needed.\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}

func validationError(format string, args ...any) error {
	return errors.New(fmt.Errorf(format, args...)).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Build()
}
