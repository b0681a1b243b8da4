package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"fraud-gate/pkg/detector"
	"fraud-gate/pkg/engine"
	"fraud-gate/pkg/model"
	"fraud-gate/pkg/transaction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ensemblePath = filepath.Join("..", "..", "pkg", "model", "testdata", "ensemble.json")

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("FRAUD_METRICS_BACKEND", "none")
	t.Setenv("FRAUD_LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestEncode(t *testing.T) {
	out, _, err := run(t, "encode", "-t", "transfer", "-a", "181", "--oldbalance-org", "181")
	require.NoError(t, err)
	assert.Contains(t, out, "amount")
	assert.Contains(t, out, "181")
	assert.Contains(t, out, "TRANSFER")
}

func TestEncode_NeedsNoModel(t *testing.T) {
	out, _, err := run(t, "--model", "does-not-exist.json", "encode", "-t", "PAYMENT", "-a", "10", "--json")
	require.NoError(t, err)

	var named []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &named))
	require.Len(t, named, 11)
	assert.Equal(t, "step", named[0]["name"])
	assert.Equal(t, 1.0, named[9]["value"], "PAYMENT slot")
}

func TestClassify(t *testing.T) {
	out, _, err := run(t, "--model", ensemblePath, "classify",
		"-t", "TRANSFER", "-a", "50000", "--oldbalance-org", "50000")
	require.NoError(t, err)
	assert.Contains(t, out, "Decision:    FRAUD")
	assert.Contains(t, out, "Confidence:  93.")
	assert.Contains(t, out, "Vector:")
}

func TestClassify_SafeConfidenceIsFraudProbability(t *testing.T) {
	out, _, err := run(t, "--model", ensemblePath, "classify", "-t", "PAYMENT", "-a", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "Decision:    SAFE")

	var confidence, p float64
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "Confidence:"):
			_, err := fmt.Sscanf(line, "Confidence: %f%%", &confidence)
			require.NoError(t, err)
		case strings.HasPrefix(line, "P(fraud):"):
			_, err := fmt.Sscanf(line, "P(fraud): %f", &p)
			require.NoError(t, err)
		}
	}
	assert.Less(t, confidence, 50.0)
	assert.InDelta(t, p*100, confidence, 0.01)
}

func TestClassify_JSON(t *testing.T) {
	out, _, err := run(t, "--model", ensemblePath, "classify", "-t", "PAYMENT", "-a", "10", "--json")
	require.NoError(t, err)

	var res detector.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, engine.LabelSafe, res.Decision.Label)
	assert.Equal(t, 10.0, res.Vector[1])
}

func TestClassify_Unavailable(t *testing.T) {
	out, errOut, err := run(t, "--model", filepath.Join(t.TempDir(), "missing.json"), "classify", "-t", "TRANSFER", "-a", "5")
	require.Error(t, err)
	assert.Empty(t, out, "no decision may be printed")
	assert.Contains(t, errOut, "no decision available")
	assert.Equal(t, exitUnavailable, exitCode(err))
}

func TestClassify_InvalidInput(t *testing.T) {
	_, _, err := run(t, "--model", ensemblePath, "classify", "-t", "CASH_IN", "-a", "5")
	require.Error(t, err)
	assert.Equal(t, exitInvalid, exitCode(err))

	_, _, err = run(t, "--model", ensemblePath, "classify", "-t", "DEBIT", "-a", "5", "--step", "0")
	assert.Equal(t, exitInvalid, exitCode(err))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{&transaction.ValidationError{}, exitInvalid},
		{fmt.Errorf("%w: boom", model.ErrModelUnavailable), exitUnavailable},
		{&engine.InferenceError{Reason: engine.ReasonPanic, Cause: errors.New("x")}, exitInference},
		{errors.New("flag parse"), exitError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}
