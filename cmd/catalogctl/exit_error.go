package main

import "fmt"

type exitError struct {
	code   int
	err    error
	silent bool
}

// configError marks err as a usage/configuration failure.
func configError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitCodeConfig, err: err}
}

func (e *exitError) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func (e *exitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}
