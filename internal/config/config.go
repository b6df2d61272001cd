// Package config loads analysis and infrastructure settings from YAML files,
// legacy settings.cfg files and MCHROMA_* environment variables.
package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"mchroma/pkg/domain"
)

// DefaultColors is the palette assigned to imported traces in order.
var DefaultColors = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// Settings is the effective configuration of a session.
type Settings struct {
	NoiseTolerance float64  `yaml:"noise_tolerance" validate:"gt=0"`
	SamplingRate   float64  `yaml:"sampling_rate" validate:"gt=0"`
	SearchRadius   int      `yaml:"search_radius" validate:"gte=0"`
	AreaMode       string   `yaml:"area_mode" validate:"oneof=bb vv bv vb"`
	Colors         []string `yaml:"colors" validate:"min=1,dive,required"`

	Storage StorageSettings `yaml:"storage"`
	Blob    BlobSettings    `yaml:"blob"`
}

// StorageSettings selects where session history is persisted.
type StorageSettings struct {
	Driver      string `yaml:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// BlobSettings selects where exports are published and raw traces fetched.
type BlobSettings struct {
	Driver       string `yaml:"driver" validate:"oneof=fs s3 memory"`
	FSRoot       string `yaml:"fs_root"`
	S3Bucket     string `yaml:"s3_bucket" validate:"required_if=Driver s3"`
	S3Region     string `yaml:"s3_region"`
	S3Endpoint   string `yaml:"s3_endpoint" validate:"omitempty,url"`
	S3PathStyle  bool   `yaml:"s3_path_style"`
	ExportPrefix string `yaml:"export_prefix"`
}

var validate = validator.New()

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		NoiseTolerance: domain.DefaultNoiseTolerance,
		SamplingRate:   domain.DefaultSamplingRate,
		AreaMode:       string(domain.AreaBaseBase),
		Colors:         append([]string(nil), DefaultColors...),
		Storage:        StorageSettings{Driver: "memory", SQLitePath: "mchroma.db"},
		Blob:           BlobSettings{Driver: "fs", FSRoot: "./blobdata", ExportPrefix: "exports/"},
	}
}

// Load starts from Default, applies each file in order, then the environment,
// and validates the result. Files ending in .cfg use the legacy line format;
// anything else is YAML. Missing files are an error.
func Load(paths ...string) (Settings, error) {
	s := Default()
	for _, p := range paths {
		if p == "" {
			continue
		}
		// #nosec G304 -- settings paths are supplied by the operator
		data, err := os.ReadFile(p)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", p, err)
		}
		if strings.EqualFold(filepath.Ext(p), ".cfg") {
			err = s.applyLegacy(bytes.NewReader(data))
		} else {
			err = s.applyYAML(data)
		}
		if err != nil {
			return Settings{}, fmt.Errorf("parse settings %s: %w", p, err)
		}
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks field constraints.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func (s *Settings) applyYAML(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return yaml.Unmarshal(data, s)
}

// applyLegacy reads "KEY value..." lines. Unknown keys are ignored.
func (s *Settings) applyLegacy(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		key, vals := fields[0], fields[1:]
		if len(vals) == 0 {
			continue
		}
		var err error
		switch key {
		case "DEFAULT_COLORS":
			s.Colors = append([]string(nil), vals...)
		case "NOISE_TOLERANCE":
			s.NoiseTolerance, err = strconv.ParseFloat(vals[0], 64)
		case "SAMPLING_RATE":
			s.SamplingRate, err = strconv.ParseFloat(vals[0], 64)
		case "SEARCH_RADIUS":
			s.SearchRadius, err = strconv.Atoi(vals[0])
		case "AREA_MODE":
			s.AreaMode = vals[0]
		}
		if err != nil {
			return fmt.Errorf("line %d: %s: %w", line, key, err)
		}
	}
	return sc.Err()
}

// ApplyEnv overrides fields from MCHROMA_* variables.
//
//	MCHROMA_NOISE_TOLERANCE, MCHROMA_SAMPLING_RATE, MCHROMA_SEARCH_RADIUS
//	MCHROMA_AREA_MODE, MCHROMA_COLORS (space or comma separated)
//	MCHROMA_STORAGE_DRIVER: memory|sqlite|postgres
//	MCHROMA_SQLITE_PATH, MCHROMA_POSTGRES_DSN
//	MCHROMA_BLOB_DRIVER: fs|s3|memory
//	MCHROMA_BLOB_FS_ROOT, MCHROMA_BLOB_S3_BUCKET, MCHROMA_BLOB_S3_REGION
//	MCHROMA_BLOB_S3_ENDPOINT, MCHROMA_BLOB_S3_PATH_STYLE, MCHROMA_EXPORT_PREFIX
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}
	floatVar := func(key string, dst *float64) error {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = f
		}
		return nil
	}
	strVar := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	if err := floatVar("MCHROMA_NOISE_TOLERANCE", &s.NoiseTolerance); err != nil {
		return err
	}
	if err := floatVar("MCHROMA_SAMPLING_RATE", &s.SamplingRate); err != nil {
		return err
	}
	if v, ok := get("MCHROMA_SEARCH_RADIUS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MCHROMA_SEARCH_RADIUS: %w", err)
		}
		s.SearchRadius = n
	}
	if v, ok := get("MCHROMA_COLORS"); ok {
		s.Colors = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}
	strVar("MCHROMA_AREA_MODE", &s.AreaMode)
	strVar("MCHROMA_STORAGE_DRIVER", &s.Storage.Driver)
	strVar("MCHROMA_SQLITE_PATH", &s.Storage.SQLitePath)
	strVar("MCHROMA_POSTGRES_DSN", &s.Storage.PostgresDSN)
	strVar("MCHROMA_BLOB_DRIVER", &s.Blob.Driver)
	strVar("MCHROMA_BLOB_FS_ROOT", &s.Blob.FSRoot)
	strVar("MCHROMA_BLOB_S3_BUCKET", &s.Blob.S3Bucket)
	strVar("MCHROMA_BLOB_S3_REGION", &s.Blob.S3Region)
	strVar("MCHROMA_BLOB_S3_ENDPOINT", &s.Blob.S3Endpoint)
	strVar("MCHROMA_EXPORT_PREFIX", &s.Blob.ExportPrefix)
	if v, ok := get("MCHROMA_BLOB_S3_PATH_STYLE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MCHROMA_BLOB_S3_PATH_STYLE: %w", err)
		}
		s.Blob.S3PathStyle = b
	}
	return nil
}

// TimeScale returns minutes per sample for the configured sampling rate.
func (s Settings) TimeScale() float64 { return 1 / s.SamplingRate }

// TraceOptions builds construction options for a trace named name. The
// color is taken from the palette at position n, cycling.
func (s Settings) TraceOptions(name string, n int) domain.TraceOptions {
	return domain.TraceOptions{
		Name:           name,
		Color:          s.Color(n),
		TimeScale:      s.TimeScale(),
		NoiseTolerance: s.NoiseTolerance,
		SearchRadius:   s.SearchRadius,
	}
}

// Color returns the palette entry for the n-th trace.
func (s Settings) Color(n int) string {
	if len(s.Colors) == 0 {
		return DefaultColors[n%len(DefaultColors)]
	}
	if n < 0 {
		n = 0
	}
	return s.Colors[n%len(s.Colors)]
}

// DefaultAreaMode parses the configured area mode.
func (s Settings) DefaultAreaMode() domain.AreaMode {
	m, err := domain.ParseAreaMode(s.AreaMode)
	if err != nil {
		return domain.AreaBaseBase
	}
	return m
}
