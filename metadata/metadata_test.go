package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `NWBFile:
  session_description: mouse in open field
  session_start_time: "2020-03-01T12:00:00"
  experimenter:
    - Jane Doe
Ecephys:
  Device:
    - name: Probe
      description: 64 channel silicon probe
  ElectrodeGroup:
    - name: shank0
      location: CA1
`

func TestLoadSaveKeepsShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	v, ok := m.String("NWBFile.session_start_time")
	require.True(t, ok)
	assert.Equal(t, "2020-03-01T12:00:00", v)

	out := filepath.Join(dir, "copy.yml")
	require.NoError(t, m.Save(out))
	again, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, m, again)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files are left behind")
}

func TestParseRejectsNonMapping(t *testing.T) {
	_, err := Parse([]byte("- a\n- b\n"))
	assert.Error(t, err)

	m, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestMergeCallerWins(t *testing.T) {
	base := Metadata{
		"NWBFile": map[string]any{
			"session_description": "default",
			"identifier":          "abc",
		},
		"Ecephys": map[string]any{"Device": []any{map[string]any{"name": "Device"}}},
	}
	override := Metadata{
		"NWBFile": map[string]any{"session_description": "mine", "lab": "Buzsaki"},
		"Ecephys": map[string]any{"Device": []any{map[string]any{"name": "Probe"}}},
		"Subject": map[string]any{"subject_id": "m1"},
	}
	merged := Merge(base, override)

	assert.Equal(t, Metadata{
		"NWBFile": map[string]any{
			"session_description": "mine",
			"identifier":          "abc",
			"lab":                 "Buzsaki",
		},
		"Ecephys": map[string]any{"Device": []any{map[string]any{"name": "Probe"}}},
		"Subject": map[string]any{"subject_id": "m1"},
	}, merged)

	// Inputs are untouched.
	assert.Equal(t, "default", base.Section("NWBFile")["session_description"])
	assert.NotContains(t, base, "Subject")
	merged.Section("Subject")["subject_id"] = "changed"
	assert.Equal(t, "m1", override.Section("Subject")["subject_id"])
}

func TestMergeNil(t *testing.T) {
	merged := Merge(nil, Metadata{"NWBFile": map[string]any{"lab": "x"}})
	assert.Equal(t, "x", merged.Section("NWBFile")["lab"])
	assert.Empty(t, Merge(nil, nil))
}

func TestSetPathGetDelete(t *testing.T) {
	m := Metadata{}
	require.NoError(t, m.SetPath("NWBFile.session_start_time", "2021-01-01T00:00:00"))
	require.NoError(t, m.SetPath("Subject.age", "P90D"))
	v, ok := m.Get("Subject.age")
	require.True(t, ok)
	assert.Equal(t, "P90D", v)

	err := m.SetPath("Subject.age.unit", "days")
	assert.Error(t, err)
	assert.Error(t, m.SetPath("NWBFile..x", 1))

	assert.Equal(t, []string{"NWBFile.session_start_time", "Subject.age"}, m.Paths())
	assert.True(t, m.Delete("Subject.age"))
	assert.False(t, m.Delete("Subject.age"))
	_, ok = m.Get("Subject.age")
	assert.False(t, ok)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 3, ParseValue("3"))
	assert.Equal(t, 2.5, ParseValue("2.5"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, []any{"a", "b"}, ParseValue("[a, b]"))
	assert.Equal(t, "CA1", ParseValue("CA1"))
	assert.Equal(t, "", ParseValue(""))
	assert.Equal(t, "[a, b]", FormatValue([]any{"a", "b"}))
}

func TestDecodeSection(t *testing.T) {
	m := Metadata{"Ecephys": map[string]any{"num_channels": "4", "gain": 0.195}}
	var out struct {
		NumChannels int     `mapstructure:"num_channels"`
		Gain        float64 `mapstructure:"gain"`
	}
	require.NoError(t, m.Decode("Ecephys", &out))
	assert.Equal(t, 4, out.NumChannels)
	assert.Equal(t, 0.195, out.Gain)
}
