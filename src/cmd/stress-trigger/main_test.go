package main

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{}))
	assert.Equal(t, 50, opts.n)
	assert.Equal(t, "clipboard", opts.trigger)
	assert.Equal(t, 5*time.Second, opts.deadline)
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags([]string{"--n", "3", "--trigger", "text", "--deadline", "7s"}))
	assert.Equal(t, stressOptions{n: 3, trigger: "text", deadline: 7 * time.Second}, *opts)
}

type countingClient struct {
	calls atomic.Int32
}

// Every third call fails and every third is not delegated.
func (c *countingClient) Delegate(context.Context, string) (bool, error) {
	switch c.calls.Add(1) % 3 {
	case 0:
		return false, errors.New("connection reset")
	case 1:
		return false, nil
	default:
		return true, nil
	}
}

func TestStressTallies(t *testing.T) {
	client := &countingClient{}
	res := stress(client, 9, "clipboard", time.Second)
	assert.EqualValues(t, 9, client.calls.Load())
	assert.EqualValues(t, 3, res.ok.Load())
	assert.EqualValues(t, 3, res.absent.Load())
	assert.EqualValues(t, 3, res.failed.Load())
}

func TestRunRejectsUnknownTrigger(t *testing.T) {
	var out bytes.Buffer
	err := runWithOptions(stressOptions{n: 1, trigger: "nope", deadline: time.Second}, &countingClient{}, &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRunReportsSummary(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runWithOptions(stressOptions{n: 3, trigger: "text", deadline: time.Second}, &countingClient{}, &out))
	assert.Contains(t, out.String(), "launched=3 ok=1 no_resident=1 err=1")
}
