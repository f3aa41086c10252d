package worldcore

import (
	"os"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

var ErrScenarioInvalid = errors.New("scenario could not be parsed, probably invalid json")
var ErrRunSpecInvalid = errors.New("invalid run spec")

// RunSpec is the YAML description of one run: which components to
// compose, the numerical parameters, where initial values come from and
// where output goes.
type RunSpec struct {
	Run struct {
		T0          float64 `yaml:"t0"`
		T1          float64 `yaml:"t1"`
		Dt          float64 `yaml:"dt"`
		Integrator  string  `yaml:"integrator"`
		RecordEvery float64 `yaml:"record_every"`
		Seed        int64   `yaml:"seed"`
	} `yaml:"run"`

	Components []string `yaml:"components"`

	// Scenario is the path of the JSON initial-value file.
	Scenario string `yaml:"scenario"`

	Output string `yaml:"output"`

	Snapshots struct {
		Path     string  `yaml:"path"`
		Every    float64 `yaml:"every"`
		Keep     int     `yaml:"keep"`
		Strategy string  `yaml:"strategy"`
	} `yaml:"snapshots"`

	Forcing struct {
		Path    string `yaml:"path"`
		TimeVar string `yaml:"time_var"`
		Var     string `yaml:"var"`
		Target  string `yaml:"target"`
	} `yaml:"forcing"`
}

// LoadRunSpec reads and validates a YAML run spec.
func LoadRunSpec(path string) (*RunSpec, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read run spec %s", path)
	}

	var rs RunSpec
	if err := yaml.Unmarshal(bs, &rs); err != nil {
		return nil, errors.Wrapf(ErrRunSpecInvalid, "%s: %s", path, err.Error())
	}

	if len(rs.Components) == 0 {
		return nil, errors.Wrapf(ErrRunSpecInvalid, "%s names no components", path)
	}

	return &rs, nil
}

// Config converts the run section into a runner Config; defaults apply in
// NewRunner.
func (rs *RunSpec) Config() Config {
	return Config{
		T0:            rs.Run.T0,
		T1:            rs.Run.T1,
		Dt:            rs.Run.Dt,
		Integrator:    Integrator(rs.Run.Integrator),
		RecordEvery:   rs.Run.RecordEvery,
		SnapshotEvery: rs.Snapshots.Every,
		Seed:          rs.Run.Seed,
	}
}

// reserved scenario keys that reference other entities instead of
// holding variable values
const (
	refWorld        = "world"
	refSocialSystem = "social_system"
	refNextHigher   = "next_higher"
	refCell         = "cell"
)

// BuildUniverse populates a fresh universe from a scenario JSON document:
// entity instances per kind with codename/value pairs, relationship
// references by index, and acquaintance links by individual index.
func BuildUniverse(m *Model, doc []byte) (*Universe, error) {
	if !gjson.ValidBytes(doc) {
		return nil, ErrScenarioInvalid
	}

	u := NewUniverse()
	root := gjson.ParseBytes(doc)

	for wi, wObj := range root.Get("worlds").Array() {
		w := u.NewWorld()
		if err := applyValues(m, w, wObj, nil); err != nil {
			return nil, errors.Wrapf(err, "worlds.%d", wi)
		}
	}

	for si, sObj := range root.Get("social_systems").Array() {
		w, err := refIndex(sObj, refWorld, len(u.worlds))
		if err != nil {
			return nil, errors.Wrapf(err, "social_systems.%d", si)
		}
		s := u.NewSocialSystem(u.worlds[w], nil)
		if hi := sObj.Get(refNextHigher); hi.Exists() {
			h := int(hi.Int())
			if h < 0 || h >= si {
				return nil, errors.Wrapf(ErrScenarioInvalid,
					"social_systems.%d: next_higher %d must point to an earlier system", si, h)
			}
			s.SetNextHigher(u.socialSystems[h])
		}
		if err := applyValues(m, s, sObj, []string{refWorld, refNextHigher}); err != nil {
			return nil, errors.Wrapf(err, "social_systems.%d", si)
		}
	}

	for ci, cObj := range root.Get("cells").Array() {
		w, err := refIndex(cObj, refWorld, len(u.worlds))
		if err != nil {
			return nil, errors.Wrapf(err, "cells.%d", ci)
		}
		var s *SocialSystem
		if si := cObj.Get(refSocialSystem); si.Exists() {
			idx := int(si.Int())
			if idx < 0 || idx >= len(u.socialSystems) {
				return nil, errors.Wrapf(ErrScenarioInvalid,
					"cells.%d: social_system %d out of range", ci, idx)
			}
			s = u.socialSystems[idx]
		}
		c := u.NewCell(u.worlds[w], s)
		if err := applyValues(m, c, cObj, []string{refWorld, refSocialSystem}); err != nil {
			return nil, errors.Wrapf(err, "cells.%d", ci)
		}
	}

	for ii, iObj := range root.Get("individuals").Array() {
		c, err := refIndex(iObj, refCell, len(u.cells))
		if err != nil {
			return nil, errors.Wrapf(err, "individuals.%d", ii)
		}
		ind := u.NewIndividual(u.cells[c])
		if err := applyValues(m, ind, iObj, []string{refCell}); err != nil {
			return nil, errors.Wrapf(err, "individuals.%d", ii)
		}
	}

	for name, taxon := range map[string]Holder{
		"nature":     u.nature,
		"metabolism": u.metabolism,
		"culture":    u.culture,
	} {
		if obj := root.Get(name); obj.Exists() {
			if err := applyValues(m, taxon, obj, nil); err != nil {
				return nil, errors.Wrap(err, name)
			}
		}
	}

	for li, link := range root.Get("links").Array() {
		pair := link.Array()
		if len(pair) != 2 {
			return nil, errors.Wrapf(ErrScenarioInvalid, "links.%d is not a pair", li)
		}
		a, b := int(pair[0].Int()), int(pair[1].Int())
		if a < 0 || a >= len(u.individuals) || b < 0 || b >= len(u.individuals) {
			return nil, errors.Wrapf(ErrScenarioInvalid, "links.%d [%d %d] out of range", li, a, b)
		}
		u.culture.network.Link(u.individuals[a], u.individuals[b])
	}

	return u, nil
}

func refIndex(obj gjson.Result, key string, n int) (int, error) {
	r := obj.Get(key)
	if !r.Exists() {
		return 0, errors.Wrapf(ErrScenarioInvalid, "missing %q reference", key)
	}
	idx := int(r.Int())
	if idx < 0 || idx >= n {
		return 0, errors.Wrapf(ErrScenarioInvalid, "%s %d out of range", key, idx)
	}
	return idx, nil
}

func applyValues(m *Model, h Holder, obj gjson.Result, reserved []string) error {
	var applyErr error
	obj.ForEach(func(key, val gjson.Result) bool {
		code := key.String()
		for _, r := range reserved {
			if code == r {
				return true
			}
		}

		v, ok := m.Variable(code)
		if !ok {
			applyErr = errors.Wrapf(ErrUnknownVariable, "%q", code)
			return false
		}
		if v.Owner() != h.entityKind() {
			applyErr = errors.Wrapf(ErrScenarioInvalid,
				"%q belongs to %s, not %s", code, v.Owner(), h.entityKind())
			return false
		}
		if err := v.Set(h, val.Value()); err != nil {
			applyErr = errors.Wrapf(err, "%q", code)
			return false
		}
		return true
	})
	return applyErr
}
