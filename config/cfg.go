package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	// EditorConfig keeps geometry bounds and document conventions for the
	// editing surface. All pixel values are CSS pixels.
	EditorConfig struct {
		MinImageWidth  int      `yaml:"min_image_width" validate:"min=1"`
		MinImageHeight int      `yaml:"min_image_height" validate:"min=1"`
		MinTableWidth  int      `yaml:"min_table_width" validate:"min=1"`
		TableMaxFactor float64  `yaml:"table_max_factor" validate:"gt=1.0"`
		MinFontSize    int      `yaml:"min_font_size" validate:"min=1"`
		MaxFontSize    int      `yaml:"max_font_size" validate:"gtefield=MinFontSize"`
		LocalPrefixes  []string `yaml:"local_prefixes" validate:"min=1,dive,required,startswith=/"`
	}

	// IngestConfig controls how the asset store accepts and lays out uploads.
	IngestConfig struct {
		UploadDir     string `yaml:"upload_dir" sanitize:"path_clean" validate:"required"`
		PublicPrefix  string `yaml:"public_prefix" validate:"required,startswith=/"`
		ImageMaxBytes int64  `yaml:"image_max_bytes" validate:"min=1"`
		MediaMaxBytes int64  `yaml:"media_max_bytes" validate:"min=1"`
		NameTemplate  string `yaml:"name_template" validate:"required"`
		MaxDimension  int    `yaml:"max_dimension" validate:"gte=0"`
		JPEGQuality   int    `yaml:"jpeg_quality" validate:"min=40,max=100"`
		RasterizeSVG  bool   `yaml:"rasterize_svg"`
		IndexPath     string `yaml:"index_path,omitempty" sanitize:"path_clean,assure_dir_exists_for_file" validate:"omitempty,filepath"`
	}

	// ServerConfig describes the ingestion gateway HTTP endpoint.
	ServerConfig struct {
		Listen        string       `yaml:"listen" validate:"required"`
		AdminToken    SecretString `yaml:"admin_token,omitempty"`
		ReadTimeoutS  int          `yaml:"read_timeout_sec" validate:"min=1"`
		WriteTimeoutS int          `yaml:"write_timeout_sec" validate:"min=1"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Editor    EditorConfig   `yaml:"editor"`
		Ingest    IngestConfig   `yaml:"ingest"`
		Server    ServerConfig   `yaml:"server"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

// NOTE: must match yaml field name above, alternative is to use struct
// field name and reflection which I want to avoid for now
const NameTemplateFieldName = "name_template"

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(NameTemplateFieldName),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
