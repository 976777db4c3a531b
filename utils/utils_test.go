package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidURL(t *testing.T) {
	cases := map[string]bool{
		"https://example.com/products/shoe": true,
		"http://example.com":                true,
		"ftp://example.com/file":            false,
		"/relative/path":                    false,
		"https://example.com/logo.PNG":      false,
		"https://example.com/app.js?v=2":    false,
		"":                                  false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsValidURL(in), in)
	}
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com/", NormalizeURL("https://example.com#top"))
	assert.Equal(t, "https://example.com/a?b=1", NormalizeURL("https://example.com/a?b=1#c"))
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"/products/shoe?ref=ad", "/products/shoe"},
		{"/products/shoe", "/products/shoe"},
		{"/products/shoe/", "/products/shoe"},
		{"https://shop.example.com/products/shoe/?ref=ad#reviews", "/products/shoe"},
		{"products/shoe", "/products/shoe"},
		{"https://shop.example.com", "/"},
		{"/", "/"},
		{"", "/"},
		{"?utm=1", "/"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePath(tc.in), tc.in)
	}
}
