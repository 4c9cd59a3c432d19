package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/incr/internal/config"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data, func(w io.Writer) error {
		t.Fatal("text renderer called in json mode")
		return nil
	})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("W003", "unit build: no roots", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "W003", resp.Error.Code)
	assert.Equal(t, "unit build: no roots", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	t.Run("renderer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}

		err := formatter.Success(42, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, "rendered")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, "rendered\n", buf.String())
	})

	t.Run("plain", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}

		require.NoError(t, formatter.Success("all units up to date", nil))
		assert.Equal(t, "all units up to date\n", buf.String())
	})
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("EXECUTION_FAILED", "compile failed", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [EXECUTION_FAILED]")
	assert.Contains(t, buf.String(), "compile failed")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"file": "incr.yaml"}
	err := formatter.Error("W002", "parse failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [W002]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("inspecting %s", "compile")

			assert.Empty(t, buf.String())
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "inspecting compile")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain_error", errors.New("boom"), ExitFailure},
		{"command_error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped", fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "load", errors.New("inner"))), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := WrapExitError(ExitCommandError, "failed to open history", errors.New("disk full"))
	assert.Equal(t, "failed to open history: disk full", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "disk full")
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())
}

func TestReportError(t *testing.T) {
	t.Run("marks_exit_error_silent", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}

		loadErr := &config.LoadError{Code: config.ErrCodeInvalid, Message: "unit a: no roots"}
		err := reportError(formatter, WrapExitError(ExitCommandError, "failed to load workfile", loadErr))

		assert.True(t, IsSilent(err))
		assert.Equal(t, ExitCommandError, GetExitCode(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, config.ErrCodeInvalid, resp.Error.Code)
	})

	t.Run("wraps_plain_error", func(t *testing.T) {
		formatter := &OutputFormatter{Format: "text", Writer: io.Discard}
		err := reportError(formatter, errors.New("boom"))
		assert.True(t, IsSilent(err))
		assert.Equal(t, ExitFailure, GetExitCode(err))
	})

	assert.False(t, IsSilent(errors.New("not printed")))
}
