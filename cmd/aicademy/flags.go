package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/ryhan5/aicademy/internal/record"
)

// ContentTypeFlag accepts any content type case-insensitively.
type ContentTypeFlag record.ContentType

// Set implements pflag.Value.
func (c *ContentTypeFlag) Set(v string) error {
	ct, err := record.ParseContentType(v)
	if err != nil {
		return fmt.Errorf("invalid value %q, valid values are %v", v, record.ContentTypes)
	}
	*c = ContentTypeFlag(ct)
	return nil
}

// String implements pflag.Value.
func (c *ContentTypeFlag) String() string {
	if c == nil {
		return ""
	}
	return string(*c)
}

// Type implements pflag.Value.
func (c *ContentTypeFlag) Type() string {
	return "ContentType"
}

type OutputFlag string

const (
	OutputText OutputFlag = "text"
	OutputJSON OutputFlag = "json"
	OutputYAML OutputFlag = "yaml"
)

// Set implements pflag.Value.
func (o *OutputFlag) Set(v string) error {
	switch OutputFlag(v) {
	case OutputText, OutputJSON, OutputYAML:
		*o = OutputFlag(v)
	default:
		return fmt.Errorf("invalid value %q, valid values are %q, %q or %q", v, OutputText, OutputJSON, OutputYAML)
	}
	return nil
}

// String implements pflag.Value.
func (o *OutputFlag) String() string {
	if o == nil {
		return ""
	}
	return string(*o)
}

// Type implements pflag.Value.
func (o *OutputFlag) Type() string {
	return "OutputFlag"
}

var (
	_ pflag.Value = (*ContentTypeFlag)(nil)
	_ pflag.Value = (*OutputFlag)(nil)
)
