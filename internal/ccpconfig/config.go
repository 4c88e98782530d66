// Package ccpconfig loads the daemon's TOML configuration, adapted from
// cmd/berith/config.go's tomlSettings/loadConfig pattern: struct field
// names double as TOML keys, and *toml.LineError gets the file name
// prepended.
package ccpconfig

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
)

var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// RPCEndpoint is the `[RPCEndpoint]` TOML section.
type RPCEndpoint struct {
	Host              string `toml:",omitempty"`
	Port              int    `toml:",omitempty"`
	UtilityThreadIDs  []uint32
}

// PrometheusEndpoint is the `[PrometheusEndpoint]` TOML section. An empty
// Host means the endpoint is disabled.
type PrometheusEndpoint struct {
	Host string `toml:",omitempty"`
	Port int    `toml:",omitempty"`
}

// Optimizations is the `[Optimizations]` TOML section, mapping directly to
// the RandomX flags and thread allocation policy of §4.2/§6.
type Optimizations struct {
	LargePages    bool   `toml:",omitempty"`
	HardAES       bool   `toml:",omitempty"`
	JIT           bool   `toml:",omitempty"`
	Secure        bool   `toml:",omitempty"`
	Argon2        string `toml:",omitempty"` // "avx2" | "ssse3" | "default"
	MSREnabled    bool   `toml:",omitempty"`
	ThreadsPerCore *int  `toml:",omitempty"` // nil => Optimal; n => Exact{n}
}

// Logs is the `[Logs]` TOML section.
type Logs struct {
	ReportHashrate bool   `toml:",omitempty"`
	LogLevel       string `toml:",omitempty"` // off|error|warn|info|debug|trace
}

// State is the `[State]` TOML section.
type State struct {
	Path string `toml:",omitempty"`
}

// Config is the daemon's full configuration, the union of §6's TOML
// sections. Section and key names are the Go field names verbatim
// (`[RPCEndpoint]`, `UtilityThreadIDs`, ...); kebab-case spellings such as
// `[rpc-endpoint]` or `utility-thread-ids` are not mapped and are rejected
// as undefined fields.
type Config struct {
	RPCEndpoint        RPCEndpoint
	PrometheusEndpoint PrometheusEndpoint
	Optimizations      Optimizations
	Logs               Logs
	State              State
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		RPCEndpoint: RPCEndpoint{Host: "127.0.0.1", Port: 9383, UtilityThreadIDs: []uint32{1}},
		Logs:        Logs{LogLevel: "info"},
		State:       State{Path: "state.json"},
	}
}

// Load reads and decodes file into cfg, starting from Default() and
// overlaying whatever the file specifies.
func Load(file string) (Config, error) {
	cfg := Default()

	f, err := os.Open(file)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return cfg, err
	}

	if cfg.State.Path != "" && !filepath.IsAbs(cfg.State.Path) {
		cfg.State.Path = filepath.Join(filepath.Dir(file), cfg.State.Path)
	}
	return cfg, nil
}

// Dump marshals cfg back to TOML, for the `dumpconfig` CLI subcommand.
func Dump(w io.Writer, cfg Config) error {
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
