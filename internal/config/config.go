package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hydro-dispatch/internal/model"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrMissingSection is returned when a case lacks hydro or thermal.
var ErrMissingSection = model.ErrMissingSection

const (
	defaultPeriodHours = 1.0
	defaultDeficitCost = 1000.0
	defaultSolver      = "simplex"
)

var validate = validator.New()

// CaseConfig is the on-disk case shape (YAML, or JSON which parses as YAML).
// A nil section means the technology is absent.
type CaseConfig struct {
	Meta      MetaConfig       `yaml:"meta" json:"meta"`
	Hydro     *HydroConfig     `yaml:"hydro,omitempty" json:"hydro,omitempty"`
	Thermal   *ThermalConfig   `yaml:"thermal,omitempty" json:"thermal,omitempty"`
	Renewable *RenewableConfig `yaml:"renewable,omitempty" json:"renewable,omitempty"`
	Storage   *StorageConfig   `yaml:"storage,omitempty" json:"storage,omitempty"`
}

type MetaConfig struct {
	Name        string    `yaml:"name" json:"name"`
	Horizon     int       `yaml:"horizon" json:"horizon" validate:"gte=1"`
	PeriodHours float64   `yaml:"period_hours" json:"period_hours" validate:"gte=0"`
	Start       string    `yaml:"start,omitempty" json:"start,omitempty"`
	Demand      []float64 `yaml:"demand" json:"demand" validate:"required,dive,gte=0"`
	// DeficitCost is a pointer so an explicit 0 is kept.
	DeficitCost   *float64       `yaml:"deficit_cost,omitempty" json:"deficit_cost,omitempty" validate:"omitempty,gte=0"`
	MaxDeficit    float64        `yaml:"max_deficit" json:"max_deficit" validate:"gte=0"`
	Solver        string         `yaml:"solver" json:"solver"`
	SolverOptions map[string]any `yaml:"solver_options,omitempty" json:"solver_options,omitempty"`
}

// Every section may name a file whose units are loaded first; inline units
// with the same name replace the file's.
type HydroConfig struct {
	File  string                     `yaml:"file,omitempty" json:"file,omitempty"`
	Units map[string]HydroUnitConfig `yaml:"units" json:"units" validate:"dive"`
}

type ThermalConfig struct {
	File  string                       `yaml:"file,omitempty" json:"file,omitempty"`
	Units map[string]ThermalUnitConfig `yaml:"units" json:"units" validate:"dive"`
}

type RenewableConfig struct {
	File  string                         `yaml:"file,omitempty" json:"file,omitempty"`
	Units map[string]RenewableUnitConfig `yaml:"units" json:"units" validate:"dive"`
}

type StorageConfig struct {
	File  string                       `yaml:"file,omitempty" json:"file,omitempty"`
	Units map[string]StorageUnitConfig `yaml:"units" json:"units" validate:"dive"`
}

type HydroUnitConfig struct {
	VMin         float64   `yaml:"v_min" json:"v_min" validate:"gte=0"`
	VMax         float64   `yaml:"v_max" json:"v_max" validate:"gtefield=VMin"`
	VIni         float64   `yaml:"v_ini" json:"v_ini" validate:"gtefield=VMin,ltefield=VMax"`
	QMax         float64   `yaml:"q_max" json:"q_max" validate:"gt=0"`
	Productivity float64   `yaml:"productivity" json:"productivity" validate:"gte=0"`
	SpillCost    float64   `yaml:"spill_cost" json:"spill_cost" validate:"gte=0"`
	Inflow       []float64 `yaml:"inflow,omitempty" json:"inflow,omitempty" validate:"dive,gte=0"`
}

type ThermalUnitConfig struct {
	GMin float64 `yaml:"g_min" json:"g_min" validate:"gte=0"`
	GMax float64 `yaml:"g_max" json:"g_max" validate:"gtefield=GMin"`
	Cost float64 `yaml:"cost" json:"cost" validate:"gte=0"`
}

type RenewableUnitConfig struct {
	GMax    float64   `yaml:"g_max" json:"g_max" validate:"gte=0"`
	Cost    float64   `yaml:"cost" json:"cost" validate:"gte=0"`
	Profile []float64 `yaml:"profile,omitempty" json:"profile,omitempty" validate:"dive,gte=0,lte=1"`
}

type StorageUnitConfig struct {
	EMin          float64 `yaml:"e_min" json:"e_min" validate:"gte=0"`
	EMax          float64 `yaml:"e_max" json:"e_max" validate:"gtefield=EMin"`
	EIni          float64 `yaml:"e_ini" json:"e_ini" validate:"gtefield=EMin,ltefield=EMax"`
	PChargeMax    float64 `yaml:"p_charge_max" json:"p_charge_max" validate:"gte=0"`
	PDischargeMax float64 `yaml:"p_discharge_max" json:"p_discharge_max" validate:"gte=0"`
	EffCharge     float64 `yaml:"eff_charge" json:"eff_charge" validate:"gte=0,lte=1"`
	EffDischarge  float64 `yaml:"eff_discharge" json:"eff_discharge" validate:"gte=0,lte=1"`
}

// Load reads, merges, defaults and validates a case file.
func Load(path string) (*model.Case, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	return c.Build()
}

// Parse does for an in-memory document what Load does for a file.
// Section files resolve against baseDir.
func Parse(raw []byte, baseDir string) (*model.Case, error) {
	c, err := ParseUnchecked(raw, baseDir)
	if err != nil {
		return nil, err
	}
	return c.Build()
}

// ParseConfined is Parse for documents from untrusted callers: section
// files must be relative paths that stay inside baseDir.
func ParseConfined(raw []byte, baseDir string) (*model.Case, error) {
	var c CaseConfig
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	for _, f := range c.sectionFiles() {
		if *f.path == "" {
			continue
		}
		full, err := confine(root, *f.path)
		if err != nil {
			return nil, fmt.Errorf("%s.file: %w", f.section, err)
		}
		*f.path = full
	}
	if err := c.mergeFiles(root); err != nil {
		return nil, err
	}
	return c.Build()
}

type sectionFile struct {
	section string
	path    *string
}

func (c *CaseConfig) sectionFiles() []sectionFile {
	var out []sectionFile
	if c.Hydro != nil {
		out = append(out, sectionFile{"hydro", &c.Hydro.File})
	}
	if c.Thermal != nil {
		out = append(out, sectionFile{"thermal", &c.Thermal.File})
	}
	if c.Renewable != nil {
		out = append(out, sectionFile{"renewable", &c.Renewable.File})
	}
	if c.Storage != nil {
		out = append(out, sectionFile{"storage", &c.Storage.File})
	}
	return out
}

// confine joins p onto root and rejects anything that lands outside it.
func confine(root, p string) (string, error) {
	if filepath.IsAbs(p) {
		return "", errors.New("must be relative to the case directory")
	}
	full := filepath.Join(root, p)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("must stay inside the case directory")
	}
	return full, nil
}

// LoadUnchecked loads and merges a case, but does not validate it.
// Useful for debugging/printing partial cases.
func LoadUnchecked(path string) (*CaseConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseUnchecked(raw, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func ParseUnchecked(raw []byte, baseDir string) (*CaseConfig, error) {
	var c CaseConfig
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	if err := c.mergeFiles(baseDir); err != nil {
		return nil, err
	}
	return &c, nil
}

// Build defaults, validates and converts the case.
func (c *CaseConfig) Build() (*model.Case, error) {
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c.ToModel()
}

// ApplyDefaults fills in the optional fields left at zero.
func (c *CaseConfig) ApplyDefaults() {
	m := &c.Meta
	if m.PeriodHours == 0 {
		m.PeriodHours = defaultPeriodHours
	}
	if m.DeficitCost == nil {
		d := defaultDeficitCost
		m.DeficitCost = &d
	}
	if m.Solver == "" {
		m.Solver = defaultSolver
	}
	if c.Hydro != nil {
		for name, h := range c.Hydro.Units {
			if h.Productivity == 0 {
				h.Productivity = 1
			}
			if len(h.Inflow) == 0 {
				h.Inflow = make([]float64, m.Horizon)
			}
			c.Hydro.Units[name] = h
		}
	}
	if c.Renewable != nil {
		for name, r := range c.Renewable.Units {
			if len(r.Profile) == 0 {
				r.Profile = make([]float64, m.Horizon)
				for t := range r.Profile {
					r.Profile[t] = 1
				}
			}
			c.Renewable.Units[name] = r
		}
	}
	if c.Storage != nil {
		for name, s := range c.Storage.Units {
			if s.EffCharge == 0 {
				s.EffCharge = 1
			}
			if s.EffDischarge == 0 {
				s.EffDischarge = 1
			}
			c.Storage.Units[name] = s
		}
	}
}

// Validate checks required sections first, then field tags, then the
// cross-field rules of the assembled case.
func (c *CaseConfig) Validate() error {
	if c == nil {
		return errors.New("case is nil")
	}
	if c.Hydro == nil {
		return fmt.Errorf("%w: hydro", ErrMissingSection)
	}
	if c.Thermal == nil {
		return fmt.Errorf("%w: thermal", ErrMissingSection)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("case config invalid: %w", describe(err))
	}
	if _, err := c.parseStart(); err != nil {
		return err
	}
	mc, err := c.ToModel()
	if err != nil {
		return err
	}
	if err := mc.Validate(); err != nil {
		return fmt.Errorf("case config invalid: %w", err)
	}
	return nil
}

// describe flattens validator errors into one readable line.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		parts = append(parts, msg)
	}
	return errors.New(strings.Join(parts, "; "))
}

func (c *CaseConfig) parseStart() (time.Time, error) {
	if c.Meta.Start == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.Meta.Start)
	if err != nil {
		return time.Time{}, fmt.Errorf("meta.start: %w", err)
	}
	return t, nil
}

// ToModel converts to the model representation with units sorted by name.
func (c *CaseConfig) ToModel() (*model.Case, error) {
	start, err := c.parseStart()
	if err != nil {
		return nil, err
	}
	deficitCost := defaultDeficitCost
	if c.Meta.DeficitCost != nil {
		deficitCost = *c.Meta.DeficitCost
	}
	mc := &model.Case{
		Meta: model.Meta{
			Name:          c.Meta.Name,
			Horizon:       c.Meta.Horizon,
			PeriodHours:   c.Meta.PeriodHours,
			Start:         start,
			Demand:        append([]float64(nil), c.Meta.Demand...),
			DeficitCost:   deficitCost,
			MaxDeficit:    c.Meta.MaxDeficit,
			Solver:        c.Meta.Solver,
			SolverOptions: c.Meta.SolverOptions,
		},
	}
	if c.Hydro != nil {
		mc.Hydro = &model.HydroSection{}
		for name, h := range c.Hydro.Units {
			mc.Hydro.Units = append(mc.Hydro.Units, model.HydroUnit{
				Name:         name,
				VMin:         h.VMin,
				VMax:         h.VMax,
				VIni:         h.VIni,
				QMax:         h.QMax,
				Productivity: h.Productivity,
				SpillCost:    h.SpillCost,
				Inflow:       append([]float64(nil), h.Inflow...),
			})
		}
	}
	if c.Thermal != nil {
		mc.Thermal = &model.ThermalSection{}
		for name, g := range c.Thermal.Units {
			mc.Thermal.Units = append(mc.Thermal.Units, model.ThermalUnit{Name: name, GMin: g.GMin, GMax: g.GMax, Cost: g.Cost})
		}
	}
	if c.Renewable != nil {
		mc.Renewable = &model.RenewableSection{}
		for name, r := range c.Renewable.Units {
			mc.Renewable.Units = append(mc.Renewable.Units, model.RenewableUnit{
				Name:    name,
				GMax:    r.GMax,
				Cost:    r.Cost,
				Profile: append([]float64(nil), r.Profile...),
			})
		}
	}
	if c.Storage != nil {
		mc.Storage = &model.StorageSection{}
		for name, s := range c.Storage.Units {
			mc.Storage.Units = append(mc.Storage.Units, model.StorageUnit{
				Name:          name,
				EMin:          s.EMin,
				EMax:          s.EMax,
				EIni:          s.EIni,
				PChargeMax:    s.PChargeMax,
				PDischargeMax: s.PDischargeMax,
				EffCharge:     s.EffCharge,
				EffDischarge:  s.EffDischarge,
			})
		}
	}
	mc.Sort()
	return mc, nil
}

func (c *CaseConfig) mergeFiles(baseDir string) error {
	var err error
	if c.Hydro != nil && c.Hydro.File != "" {
		if c.Hydro.Units, err = mergeUnitsFile(baseDir, c.Hydro.File, c.Hydro.Units); err != nil {
			return fmt.Errorf("hydro.file: %w", err)
		}
	}
	if c.Thermal != nil && c.Thermal.File != "" {
		if c.Thermal.Units, err = mergeUnitsFile(baseDir, c.Thermal.File, c.Thermal.Units); err != nil {
			return fmt.Errorf("thermal.file: %w", err)
		}
	}
	if c.Renewable != nil && c.Renewable.File != "" {
		if c.Renewable.Units, err = mergeUnitsFile(baseDir, c.Renewable.File, c.Renewable.Units); err != nil {
			return fmt.Errorf("renewable.file: %w", err)
		}
	}
	if c.Storage != nil && c.Storage.File != "" {
		if c.Storage.Units, err = mergeUnitsFile(baseDir, c.Storage.File, c.Storage.Units); err != nil {
			return fmt.Errorf("storage.file: %w", err)
		}
	}
	return nil
}

type unitsFile[T any] struct {
	Units map[string]T `yaml:"units"`
}

// mergeUnitsFile loads the units of a section file and lays inline overrides on top.
func mergeUnitsFile[T any](baseDir, file string, inline map[string]T) (map[string]T, error) {
	raw, err := os.ReadFile(resolvePath(baseDir, file))
	if err != nil {
		return nil, err
	}
	var f unitsFile[T]
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	out := make(map[string]T, len(f.Units)+len(inline))
	for name, u := range f.Units {
		out[name] = u
	}
	for name, u := range inline {
		out[name] = u
	}
	return out, nil
}

// resolvePath prefers interpreting relative paths as relative to baseDir,
// but falls back to the provided path (relative to cwd) if that doesn't exist.
func resolvePath(baseDir, p string) string {
	if filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	cand := filepath.Join(baseDir, p)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return p
}
