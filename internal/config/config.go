// Package config holds the tiling configuration consumed by the kernel
// generators. Configurations are plain values; they are loaded from YAML
// tiling profiles and checked with Validate before use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/gpgpu/internal/shape"
)

// MatMulVariant selects the tiling strategy of the matrix multiply kernel.
type MatMulVariant string

// MatMul tiling strategies. All produce the same result.
const (
	// MatMulBasic: square TileSize tiles, one output texel per invocation.
	MatMulBasic MatMulVariant = "basic"
	// MatMulWPT: WorkPerThread output rows per invocation.
	MatMulWPT MatMulVariant = "wpt"
	// MatMulWPT2D: WorkPerThread x WorkPerThread outputs per invocation.
	MatMulWPT2D MatMulVariant = "wpt2d"
	// MatMulBlocked: independent TileM, TileN, TileK with cooperative loads.
	MatMulBlocked MatMulVariant = "blocked"
)

// ConvVariant selects the convolution kernel.
type ConvVariant string

// Convolution strategies.
const (
	// ConvCached fills a shared receptive-field cache per output row tile.
	ConvCached ConvVariant = "cached"
	// ConvBlock caches one input block and reads storage directly where
	// the block does not cover the receptive field.
	ConvBlock ConvVariant = "block"
	// ConvNaive reads storage directly, one output element per invocation.
	ConvNaive ConvVariant = "naive"
)

// MatMul is the tiling of the matrix multiply kernel. Sizes count packed
// texels, so one tile of TileSize covers 2*TileSize logical rows.
type MatMul struct {
	Variant MatMulVariant `yaml:"variant"`

	// TileSize and WorkPerThread serve basic, wpt and wpt2d.
	TileSize      int `yaml:"tile_size"`
	WorkPerThread int `yaml:"work_per_thread"`

	// The blocked variant.
	TileM          int `yaml:"tile_m"`
	TileN          int `yaml:"tile_n"`
	TileK          int `yaml:"tile_k"`
	WorkPerThreadM int `yaml:"work_per_thread_m"`
	WorkPerThreadN int `yaml:"work_per_thread_n"`
}

// Conv is the tiling of the convolution kernels.
type Conv struct {
	Variant ConvVariant `yaml:"variant"`

	// TileWidth output columns and TileChannels output channels per
	// workgroup of the cached variant.
	TileWidth    int `yaml:"tile_width"`
	TileChannels int `yaml:"tile_channels"`

	// BlockHeight x BlockWidth output positions per workgroup of the block
	// variant.
	BlockHeight int `yaml:"block_height"`
	BlockWidth  int `yaml:"block_width"`
}

// Config is a complete tiling profile.
type Config struct {
	MatMul MatMul `yaml:"matmul"`
	Conv   Conv   `yaml:"conv"`
	// Production disables the NaN checks of generated kernels.
	Production bool `yaml:"production"`
	// MaxTextureSize bounds either side of a storage texture.
	MaxTextureSize int `yaml:"max_texture_size"`
}

// Default returns the default profile.
func Default() Config {
	return Config{
		MatMul: MatMul{
			Variant:        MatMulBasic,
			TileSize:       8,
			WorkPerThread:  2,
			TileM:          16,
			TileN:          16,
			TileK:          8,
			WorkPerThreadM: 2,
			WorkPerThreadN: 2,
		},
		Conv: Conv{
			Variant:      ConvCached,
			TileWidth:    8,
			TileChannels: 8,
			BlockHeight:  8,
			BlockWidth:   8,
		},
		MaxTextureSize: shape.DefaultMaxTextureSize,
	}
}

// Load reads a YAML profile. Fields the file omits keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML profile over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Marshal encodes c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.MatMul.Validate(); err != nil {
		return err
	}
	if err := c.Conv.Validate(); err != nil {
		return err
	}
	if c.MaxTextureSize < 2 {
		return &ConfigError{Field: "MaxTextureSize", Reason: "must be at least 2"}
	}
	return nil
}

// Validate checks the fields the selected variant uses.
func (m MatMul) Validate() error {
	switch m.Variant {
	case MatMulBasic:
		return positive("MatMul.TileSize", m.TileSize)
	case MatMulWPT, MatMulWPT2D:
		if err := positive("MatMul.TileSize", m.TileSize); err != nil {
			return err
		}
		if err := positive("MatMul.WorkPerThread", m.WorkPerThread); err != nil {
			return err
		}
		if m.TileSize%m.WorkPerThread != 0 {
			return &ConfigError{Field: "MatMul.WorkPerThread", Reason: "must divide TileSize"}
		}
		return nil
	case MatMulBlocked:
		for _, f := range []struct {
			name string
			v    int
		}{
			{"MatMul.TileM", m.TileM},
			{"MatMul.TileN", m.TileN},
			{"MatMul.TileK", m.TileK},
			{"MatMul.WorkPerThreadM", m.WorkPerThreadM},
			{"MatMul.WorkPerThreadN", m.WorkPerThreadN},
		} {
			if err := positive(f.name, f.v); err != nil {
				return err
			}
		}
		if m.TileM%m.WorkPerThreadM != 0 {
			return &ConfigError{Field: "MatMul.WorkPerThreadM", Reason: "must divide TileM"}
		}
		if m.TileN%m.WorkPerThreadN != 0 {
			return &ConfigError{Field: "MatMul.WorkPerThreadN", Reason: "must divide TileN"}
		}
		threads := m.Threads()
		if (m.TileM*m.TileK)%threads != 0 {
			return &ConfigError{Field: "MatMul.TileK", Reason: fmt.Sprintf("TileM*TileK must be a multiple of the %d threads", threads)}
		}
		if (m.TileK*m.TileN)%threads != 0 {
			return &ConfigError{Field: "MatMul.TileK", Reason: fmt.Sprintf("TileK*TileN must be a multiple of the %d threads", threads)}
		}
		return nil
	default:
		return &ConfigError{Field: "MatMul.Variant", Reason: fmt.Sprintf("unknown variant %q", m.Variant)}
	}
}

// Threads returns the number of invocations per workgroup of the blocked
// variant.
func (m MatMul) Threads() int {
	if m.WorkPerThreadM == 0 || m.WorkPerThreadN == 0 {
		return 0
	}
	return (m.TileM / m.WorkPerThreadM) * (m.TileN / m.WorkPerThreadN)
}

// Validate checks the fields the selected variant uses.
func (c Conv) Validate() error {
	switch c.Variant {
	case ConvCached:
		if err := positive("Conv.TileWidth", c.TileWidth); err != nil {
			return err
		}
		return positive("Conv.TileChannels", c.TileChannels)
	case ConvBlock:
		if err := positive("Conv.BlockHeight", c.BlockHeight); err != nil {
			return err
		}
		return positive("Conv.BlockWidth", c.BlockWidth)
	case ConvNaive:
		return nil
	default:
		return &ConfigError{Field: "Conv.Variant", Reason: fmt.Sprintf("unknown variant %q", c.Variant)}
	}
}

func positive(field string, v int) error {
	if v < 1 {
		return &ConfigError{Field: field, Reason: "must be positive"}
	}
	return nil
}

// ConfigError reports an invalid tiling configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "config: invalid " + e.Field + ": " + e.Reason
}
