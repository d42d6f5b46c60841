package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kairuizhang035-crypto/yinguo/internal/model"
	"github.com/kairuizhang035-crypto/yinguo/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Trace  TraceConfig  `yaml:"trace" mapstructure:"trace"`
	S3     S3Config     `yaml:"s3" mapstructure:"s3"`
	Fusion FusionConfig `yaml:"fusion" mapstructure:"fusion"`
}

// StoreConfig configures the run ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TraceConfig configures stage tracing.
type TraceConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	File        string `yaml:"file" mapstructure:"file"` // empty = stdout
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// S3Config holds object storage credentials for s3:// table locations.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Region    string `yaml:"region" mapstructure:"region"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// FusionConfig configures one evidence-fusion batch.
type FusionConfig struct {
	Seed            uint64              `yaml:"seed" mapstructure:"seed" json:"seed"`
	Concurrency     int                 `yaml:"concurrency" mapstructure:"concurrency" json:"-"`
	EntitySeparator string              `yaml:"entity_separator" mapstructure:"entity_separator" json:"entity_separator"`
	PriorFile       string              `yaml:"prior_file" mapstructure:"prior_file" json:"prior_file"`
	Producers       []ProducerConfig    `yaml:"producers" mapstructure:"producers" json:"producers"`
	ParameterTables []string            `yaml:"parameter_tables" mapstructure:"parameter_tables" json:"parameter_tables"`
	MediationTables []string            `yaml:"mediation_tables" mapstructure:"mediation_tables" json:"mediation_tables"`
	Scoring         ScoringConfig       `yaml:"scoring" mapstructure:"scoring" json:"scoring"`
	Tiers           []TierRule          `yaml:"tiers" mapstructure:"tiers" json:"tiers"`
	Threshold       ThresholdConfig     `yaml:"threshold" mapstructure:"threshold" json:"threshold"`
	Triangulation   TriangulationConfig `yaml:"triangulation" mapstructure:"triangulation" json:"triangulation"`
	Output          OutputConfig        `yaml:"output" mapstructure:"output" json:"-"`
}

// ProducerConfig declares one upstream candidate-discovery producer.
type ProducerConfig struct {
	Name     string  `yaml:"name" mapstructure:"name" json:"name"`
	Category string  `yaml:"category" mapstructure:"category" json:"category"`
	Location string  `yaml:"location" mapstructure:"location" json:"location"`
	Weight   float64 `yaml:"weight" mapstructure:"weight" json:"weight"` // 0 = default 1.0
}

// EffectiveWeight returns the declared weight, defaulting to 1.
func (p ProducerConfig) EffectiveWeight() float64 {
	if p.Weight == 0 {
		return 1
	}
	return p.Weight
}

// ScoringConfig configures the ensemble combiner.
type ScoringConfig struct {
	Weights map[string]float64 `yaml:"weights" mapstructure:"weights" json:"weights"`
}

// TierRule is one row of the tier table.
type TierRule struct {
	Name         string  `yaml:"name" mapstructure:"name" json:"name"`
	MinScore     float64 `yaml:"min_score" mapstructure:"min_score" json:"min_score"`
	MinSupport   int     `yaml:"min_support" mapstructure:"min_support" json:"min_support"`
	MinFrequency int     `yaml:"min_frequency" mapstructure:"min_frequency" json:"min_frequency"`
}

// ThresholdConfig configures the adaptive threshold heuristics.
type ThresholdConfig struct {
	KneeDefault       float64       `yaml:"knee_default" mapstructure:"knee_default" json:"knee_default"`
	KneeMinSamples    int           `yaml:"knee_min_samples" mapstructure:"knee_min_samples" json:"knee_min_samples"`
	ClusterDefault    float64       `yaml:"cluster_default" mapstructure:"cluster_default" json:"cluster_default"`
	ClusterMinSamples int           `yaml:"cluster_min_samples" mapstructure:"cluster_min_samples" json:"cluster_min_samples"`
	ClusterEps        float64       `yaml:"cluster_eps" mapstructure:"cluster_eps" json:"cluster_eps"`
	ClusterMinPoints  int           `yaml:"cluster_min_points" mapstructure:"cluster_min_points" json:"cluster_min_points"`
	OutlierDefault    float64       `yaml:"outlier_default" mapstructure:"outlier_default" json:"outlier_default"`
	OutlierMinSamples int           `yaml:"outlier_min_samples" mapstructure:"outlier_min_samples" json:"outlier_min_samples"`
	Contamination     float64       `yaml:"contamination" mapstructure:"contamination" json:"contamination"`
	Trees             int           `yaml:"trees" mapstructure:"trees" json:"trees"`
	MaxSamples        int           `yaml:"max_samples" mapstructure:"max_samples" json:"max_samples"`
	Budget            time.Duration `yaml:"budget" mapstructure:"budget" json:"-"`
}

// TriangulationConfig configures Stage B.
type TriangulationConfig struct {
	Weights                 map[string]float64 `yaml:"weights" mapstructure:"weights" json:"weights"`
	ConfidenceThreshold     float64            `yaml:"confidence_threshold" mapstructure:"confidence_threshold" json:"confidence_threshold"`
	QualityThreshold        float64            `yaml:"quality_threshold" mapstructure:"quality_threshold" json:"quality_threshold"`
	ParameterFallbackFactor float64            `yaml:"parameter_fallback_factor" mapstructure:"parameter_fallback_factor" json:"parameter_fallback_factor"`
	NonSignificantFactor    float64            `yaml:"non_significant_factor" mapstructure:"non_significant_factor" json:"non_significant_factor"`
	ExpertObservedWeight    float64            `yaml:"expert_observed_weight" mapstructure:"expert_observed_weight" json:"expert_observed_weight"`
	MissingParameterQuality float64            `yaml:"missing_parameter_quality" mapstructure:"missing_parameter_quality" json:"missing_parameter_quality"`
	MissingMediationQuality float64            `yaml:"missing_mediation_quality" mapstructure:"missing_mediation_quality" json:"missing_mediation_quality"`
	MissingExpertQuality    float64            `yaml:"missing_expert_quality" mapstructure:"missing_expert_quality" json:"missing_expert_quality"`
}

// OutputConfig configures the artifacts written by a batch.
type OutputConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	XLSX bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// DefaultDimensionWeights returns the ensemble weights used when none are configured.
func DefaultDimensionWeights() map[string]float64 {
	return map[string]float64{
		string(model.DimFrequency):       0.30,
		string(model.DimDiversity):       0.25,
		string(model.DimConsistency):     0.25,
		string(model.DimNetworkPosition): 0.20,
	}
}

// DefaultPillarWeights returns the triangulation weights used when none are configured.
func DefaultPillarWeights() map[string]float64 {
	return map[string]float64{
		string(model.PillarStructural): 0.35,
		string(model.PillarParameter):  0.25,
		string(model.PillarMediation):  0.25,
		string(model.PillarExpert):     0.15,
	}
}

// DefaultTiers returns the tier table, highest tier first.
func DefaultTiers() []TierRule {
	return []TierRule{
		{Name: string(model.TierPlatinum), MinScore: 0.80, MinSupport: 4, MinFrequency: 3},
		{Name: string(model.TierGold), MinScore: 0.65, MinSupport: 3, MinFrequency: 2},
		{Name: string(model.TierSilver), MinScore: 0.50, MinSupport: 2, MinFrequency: 2},
		{Name: string(model.TierBronze), MinScore: 0.30, MinSupport: 1, MinFrequency: 1},
	}
}

// Load reads configuration from file and environment. An empty path searches
// the working directory for config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("YINGUO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "yinguo.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.service_name", "yinguo")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("fusion.seed", 42)
	v.SetDefault("fusion.concurrency", 8)
	v.SetDefault("fusion.entity_separator", "_")
	v.SetDefault("fusion.threshold.knee_default", 0.6)
	v.SetDefault("fusion.threshold.knee_min_samples", 2)
	v.SetDefault("fusion.threshold.cluster_default", 0.65)
	v.SetDefault("fusion.threshold.cluster_min_samples", 6)
	v.SetDefault("fusion.threshold.cluster_eps", 0.3)
	v.SetDefault("fusion.threshold.cluster_min_points", 2)
	v.SetDefault("fusion.threshold.outlier_default", 0.7)
	v.SetDefault("fusion.threshold.outlier_min_samples", 11)
	v.SetDefault("fusion.threshold.contamination", 0.3)
	v.SetDefault("fusion.threshold.trees", 100)
	v.SetDefault("fusion.threshold.max_samples", 256)
	v.SetDefault("fusion.threshold.budget", 10*time.Second)
	v.SetDefault("fusion.triangulation.confidence_threshold", 0.6)
	v.SetDefault("fusion.triangulation.quality_threshold", 0.6)
	v.SetDefault("fusion.triangulation.parameter_fallback_factor", 0.5)
	v.SetDefault("fusion.triangulation.non_significant_factor", 0.3)
	v.SetDefault("fusion.triangulation.expert_observed_weight", 0.6)
	v.SetDefault("fusion.triangulation.missing_parameter_quality", 0.3)
	v.SetDefault("fusion.triangulation.missing_mediation_quality", 0.3)
	v.SetDefault("fusion.triangulation.missing_expert_quality", 0.5)
	v.SetDefault("fusion.output.dir", "out")
	v.SetDefault("fusion.output.xlsx", false)

	// Read config file (optional when searching, required when named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills map and list settings. Viper merges nested defaults key
// by key, so weight sets and the tier table default here as whole values.
func (c *Config) applyDefaults() {
	if len(c.Fusion.Scoring.Weights) == 0 {
		c.Fusion.Scoring.Weights = DefaultDimensionWeights()
	}
	if len(c.Fusion.Triangulation.Weights) == 0 {
		c.Fusion.Triangulation.Weights = DefaultPillarWeights()
	}
	if len(c.Fusion.Tiers) == 0 {
		c.Fusion.Tiers = DefaultTiers()
	}
}

// Validate checks the settings that are not owned by a domain package. Every
// problem is reported in one ConfigurationError.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}

	f := c.Fusion
	if len(f.Producers) == 0 {
		errs = append(errs, "fusion.producers must declare at least one producer")
	}
	seen := make(map[string]bool, len(f.Producers))
	for i, p := range f.Producers {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("fusion.producers[%d].name is required", i))
		} else if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("fusion.producers[%d].name %q is duplicated", i, p.Name))
		}
		seen[p.Name] = true
		if !model.ProducerCategory(p.Category).Valid() {
			errs = append(errs, fmt.Sprintf("fusion.producers[%d].category %q is unknown", i, p.Category))
		}
		if p.Location == "" {
			errs = append(errs, fmt.Sprintf("fusion.producers[%d].location is required", i))
		}
		if p.Weight < 0 {
			errs = append(errs, fmt.Sprintf("fusion.producers[%d].weight must be >= 0", i))
		}
	}
	if f.Concurrency < 0 {
		errs = append(errs, "fusion.concurrency must be >= 0")
	}
	if f.EntitySeparator == "" {
		errs = append(errs, "fusion.entity_separator is required")
	}
	if f.Output.Dir == "" {
		errs = append(errs, "fusion.output.dir is required")
	}

	if ct := f.Threshold.Contamination; ct <= 0 || ct > 0.5 {
		errs = append(errs, fmt.Sprintf("fusion.threshold.contamination %g must be in (0, 0.5]", ct))
	}
	tri := f.Triangulation
	for _, u := range []struct {
		name string
		v    float64
	}{
		{"confidence_threshold", tri.ConfidenceThreshold},
		{"quality_threshold", tri.QualityThreshold},
		{"parameter_fallback_factor", tri.ParameterFallbackFactor},
		{"non_significant_factor", tri.NonSignificantFactor},
		{"expert_observed_weight", tri.ExpertObservedWeight},
		{"missing_parameter_quality", tri.MissingParameterQuality},
		{"missing_mediation_quality", tri.MissingMediationQuality},
		{"missing_expert_quality", tri.MissingExpertQuality},
	} {
		if u.v < 0 || u.v > 1 {
			errs = append(errs, fmt.Sprintf("fusion.triangulation.%s %g must be in [0,1]", u.name, u.v))
		}
	}

	if len(errs) > 0 {
		return resilience.NewConfigurationError(
			eris.Errorf("config: validation failed: %s", strings.Join(errs, "; ")), errs...)
	}
	return nil
}

// Fingerprint returns a stable hash of the settings that affect batch
// results. Two runs with equal fingerprints and equal inputs produce equal
// artifacts.
func (c *Config) Fingerprint() (string, error) {
	b, err := json.Marshal(c.Fusion)
	if err != nil {
		return "", eris.Wrap(err, "config: marshal fingerprint")
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
