package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NormalizeLocation(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{" Visby ", "visby"},
		{"VISBY!", "visby"},
		{"Åre", "are"},
		{"Sankt-Anna", "sanktanna"},
		{"Norra  Kusten", "norrakusten"},
		{"Tromsø", "tromso"},
		{"Ærøskøbing", "aeroskobing"},
		{"Þingvellir", "thingvellir"},
		{"  ", ""},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			assert.Equal(t, c.expected, NormalizeLocation(c.input))
		})
	}
}
