package admin

import (
	"strings"
	"testing"
)

func TestSubstitute(t *testing.T) {
	testCases := []struct {
		name          string
		descriptor    string
		substitutions map[string]string
		want          string
	}{
		{
			name:          "single_variable",
			descriptor:    `<application name="test" dir="${test.dir}"/>`,
			substitutions: map[string]string{"test.dir": "/tmp/test"},
			want:          `<application name="test" dir="/tmp/test"/>`,
		},
		{
			name:       "multiple_variables",
			descriptor: `<server exe="${ice.dir}/bin/server" pwd="${test.dir}"/>`,
			substitutions: map[string]string{
				"ice.dir":  "/opt/ice",
				"test.dir": "/tmp/test",
			},
			want: `<server exe="/opt/ice/bin/server" pwd="/tmp/test"/>`,
		},
		{
			name:          "unknown_variable_untouched",
			descriptor:    `<node name="${node}"/>`,
			substitutions: map[string]string{"other": "x"},
			want:          `<node name="${node}"/>`,
		},
		{
			name:       "longer_name_first",
			descriptor: `<dir a="${test.dir.extra}" b="${test.dir}"/>`,
			substitutions: map[string]string{
				"test.dir":       "/short",
				"test.dir.extra": "/long",
			},
			want: `<dir a="/long" b="/short"/>`,
		},
		{
			name:          "repeated_reference",
			descriptor:    `${v} and ${v}`,
			substitutions: map[string]string{"v": "x"},
			want:          `x and x`,
		},
		{
			name:          "no_substitutions",
			descriptor:    `<application/>`,
			substitutions: nil,
			want:          `<application/>`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := string(Substitute([]byte(tc.descriptor), tc.substitutions))
			if got != tc.want {
				t.Errorf("Substitute = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateXML(t *testing.T) {
	t.Run("well_formed", func(t *testing.T) {
		doc := `<icegrid><application name="test"><node name="localnode"/></application></icegrid>`
		if err := ValidateXML([]byte(doc)); err != nil {
			t.Errorf("ValidateXML = %v, want nil", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		doc := `<icegrid><application name="test">`
		err := ValidateXML([]byte(doc))
		if err == nil {
			t.Fatal("expected error for unclosed elements")
		}
		if !strings.Contains(err.Error(), "malformed") {
			t.Errorf("error should mention malformed XML: %v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if err := ValidateXML(nil); err != nil {
			t.Errorf("ValidateXML(nil) = %v, want nil", err)
		}
	})
}
