package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mediaflow/internal/config"
	"mediaflow/internal/processor"
	"mediaflow/internal/protocol"
)

func setupCLI(t *testing.T) *bytes.Buffer {
	t.Helper()
	cfg = config.Default()
	logger = zap.NewNop()
	runProcessor, runArgs, runExecute = "", "", nil
	processorsJSON = false
	t.Cleanup(func() {
		runProcessor, runArgs, runExecute = "", "", nil
		processorsJSON = false
	})
	return &bytes.Buffer{}
}

func testCommand(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	return cmd
}

func decodeLines(t *testing.T, out *bytes.Buffer) []printedEvent {
	t.Helper()
	var events []printedEvent
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var ev printedEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	return events
}

func TestRunCmdTransform(t *testing.T) {
	out := setupCLI(t)
	runProcessor = "core.SetAttributes"
	runArgs = `{"attrs":{"foo.bar":1}}`

	require.NoError(t, runDebug(testCommand(out), []string{"/media/a.jpg", "/media/b.jpg"}))

	events := decodeLines(t, out)
	var objects, stats int
	for _, ev := range events {
		switch ev.Type {
		case protocol.TypeObject:
			objects++
			doc := ev.Payload.(map[string]any)["object"].(map[string]any)["document"].(map[string]any)
			assert.EqualValues(t, 1, doc["foo"].(map[string]any)["bar"])
		case protocol.TypeStats:
			stats++
		}
	}
	assert.Equal(t, 2, objects)
	assert.Equal(t, 1, stats)
}

func TestRunCmdGenerator(t *testing.T) {
	out := setupCLI(t)
	runProcessor = "core.PathGenerator"
	runArgs = `{"paths":["/a/1.png","/a/2.png","/a/3.png"]}`
	runExecute = []string{"core.SetAttributes"}

	require.NoError(t, runDebug(testCommand(out), nil))

	events := decodeLines(t, out)
	require.NotEmpty(t, events)
	assert.Equal(t, protocol.TypeExpand, events[0].Type)
	payload := events[0].Payload.(map[string]any)
	assert.Len(t, payload["assets"], 3)
	assert.Len(t, payload["execute"], 1)
}

func TestRunCmdUnknownProcessor(t *testing.T) {
	out := setupCLI(t)
	runProcessor = "core.Nope"
	err := runDebug(testCommand(out), []string{"/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, processor.ErrUnknownProcessor)
	assert.Empty(t, out.String())
}

func TestRunCmdBadArgs(t *testing.T) {
	out := setupCLI(t)
	runProcessor = "core.SetAttributes"
	runArgs = `{not json`
	assert.Error(t, runDebug(testCommand(out), nil))
}

func TestScriptEndsWithTeardownAndStop(t *testing.T) {
	ref := processor.Ref{ClassName: "core.Collect"}
	envs := script(processor.KindCollect, ref, nil, []string{"/a", "/b"})
	require.Len(t, envs, 3)
	assert.Equal(t, protocol.TypeCollect, envs[0].Type)
	assert.Len(t, envs[0].Payload.(protocol.CollectPayload).Objects, 2)
	assert.Equal(t, protocol.TypeTeardown, envs[1].Type)
	assert.Equal(t, protocol.TypeStop, envs[2].Type)

	envs = script(processor.KindTransform, ref, nil, []string{"/a", "/b"})
	require.Len(t, envs, 4)
	assert.Equal(t, protocol.TypeExecute, envs[1].Type)
}

func TestProcessorsCmd(t *testing.T) {
	out := setupCLI(t)
	require.NoError(t, runProcessors(testCommand(out), nil))
	text := out.String()
	assert.Contains(t, text, "NAME")
	assert.Contains(t, text, "core.SetAttributes")
	assert.Contains(t, text, "storage.BucketGenerator")
	assert.Contains(t, text, "index.PostgresCollector")
}

func TestProcessorsCmdJSON(t *testing.T) {
	out := setupCLI(t)
	processorsJSON = true
	require.NoError(t, runProcessors(testCommand(out), nil))

	var listings []processorListing
	require.NoError(t, json.Unmarshal(out.Bytes(), &listings))
	kinds := map[string]string{}
	for _, l := range listings {
		kinds[l.Name] = l.Kind
	}
	assert.Equal(t, "transform", kinds["core.SetAttributes"])
	assert.Equal(t, "generate", kinds["core.FileGenerator"])
	assert.Equal(t, "collect", kinds["index.PostgresCollector"])
}
