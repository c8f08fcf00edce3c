package main

import (
	"github.com/spf13/pflag"

	"procmem/pattern"
)

// modeValue adapts pattern.Mode to a command line flag
type modeValue struct {
	mode *pattern.Mode
}

var _ pflag.Value = (*modeValue)(nil)

func newModeValue(mode *pattern.Mode) *modeValue {
	*mode = pattern.Normal
	return &modeValue{mode: mode}
}

func (v *modeValue) String() string {
	if v.mode == nil {
		return pattern.Normal.String()
	}
	return v.mode.String()
}

func (v *modeValue) Set(s string) error {
	mode, err := pattern.ParseMode(s)
	if err != nil {
		return err
	}
	*v.mode = mode
	return nil
}

func (v *modeValue) Type() string {
	return "mode"
}
